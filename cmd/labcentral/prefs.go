package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appI18n "github.com/labcentral/labcentral/internal/i18n"
	"github.com/labcentral/labcentral/internal/store"
)

func prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change local preferences",
	}

	dark := &cobra.Command{
		Use:       "dark-mode [on|off]",
		Short:     "Toggle dark mode, or set it explicitly",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			var on bool
			var err error
			switch {
			case len(args) == 0:
				on, err = a.store.ToggleDarkMode(store.LocalSessionID)
			case args[0] == "on" || args[0] == "off":
				on = args[0] == "on"
				err = a.store.SetDarkMode(store.LocalSessionID, on)
			default:
				return fmt.Errorf("invalid value %q (on, off)", args[0])
			}
			if err != nil {
				return err
			}
			label := "DarkModeOff"
			if on {
				label = "DarkModeOn"
			}
			success(a.out, a.t(label))
			return nil
		}),
	}

	lang := &cobra.Command{
		Use:       "lang es|en",
		Short:     "Set the language of command output",
		Args:      cobra.ExactArgs(1),
		ValidArgs: appI18n.Supported,
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			l := appI18n.Normalize(args[0])
			if l != args[0] {
				return fmt.Errorf("unsupported language %q", args[0])
			}
			if err := a.store.SetLang(store.LocalSessionID, l); err != nil {
				return err
			}
			success(a.out, appI18n.T(appI18n.WithLocalizer(a.ctx, appI18n.NewLocalizer(l)), "Lang_"+l))
			return nil
		}),
	}

	cmd.AddCommand(dark, lang)
	return cmd
}
