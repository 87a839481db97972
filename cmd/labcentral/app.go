package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/labcentral/labcentral/internal/api"
	appI18n "github.com/labcentral/labcentral/internal/i18n"
	"github.com/labcentral/labcentral/internal/lifecycle"
	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/session"
	"github.com/labcentral/labcentral/internal/store"
)

// messageCtx carries the localizer used to print command errors.
var messageCtx context.Context

// app is what every command except serve works with: the local session
// under store.LocalSessionID and a client for the backend.
type app struct {
	v        *viper.Viper
	ctx      context.Context
	store    *store.Store
	sessions *session.Manager
	out      io.Writer
	dark     bool // brighter palette for dark terminals
}

func openApp(cmd *cobra.Command) (*app, error) {
	v := viperForCmd(cmd)
	setupLogging(v)

	if err := appI18n.Init(appI18n.DefaultLang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}

	path := v.GetString("state")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	lang := v.GetString("lang")
	if !cmd.Flags().Changed("lang") && os.Getenv("LABCENTRAL_LANG") == "" {
		if pref, err := st.Lang(store.LocalSessionID); err == nil && pref != "" {
			lang = pref
		}
	}
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(appI18n.Normalize(lang)))
	messageCtx = ctx

	dark, err := st.DarkMode(store.LocalSessionID)
	if err != nil {
		slog.Warn("read dark mode", "error", err)
	}

	return &app{
		v:        v,
		ctx:      ctx,
		store:    st,
		sessions: session.NewManager(api.New(v.GetString("api-url")), st),
		out:      cmd.OutOrStdout(),
		dark:     dark,
	}, nil
}

func (a *app) close() {
	_ = a.store.Close()
}

// current returns the checked local session and a client authenticated as it.
func (a *app) current() (*model.Session, *api.Client, error) {
	sess, err := a.sessions.Current(a.ctx, store.LocalSessionID)
	if err != nil {
		return nil, nil, err
	}
	return sess, a.sessions.Client(sess), nil
}

func (a *app) lifecycleConfig() lifecycle.Config {
	cfg := lifecycle.DefaultConfig(a.v.GetString("api-url"))
	if d := a.v.GetDuration("boot-delay"); d > 0 {
		cfg.BootDelay = d
	}
	if d := a.v.GetDuration("ready-timeout"); d > 0 {
		cfg.ReadyTimeout = d
	}
	if d := a.v.GetDuration("poll-interval"); d > 0 {
		cfg.PollInterval = d
	}
	return cfg
}

// t translates a message ID for terminal output.
func (a *app) t(id string) string {
	return appI18n.T(a.ctx, id)
}

// run wraps a command body with openApp and close.
func run(fn func(a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(a, cmd, args)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func statusLabel(a *app, s model.ContainerStatus) string {
	if s == "" {
		s = model.StatusStopped
	}
	label := a.t("Status_" + string(s))
	switch s {
	case model.StatusRunning:
		if a.dark {
			return color.HiGreenString(label)
		}
		return color.GreenString(label)
	case model.StatusStarting, model.StatusStopping:
		return color.YellowString(label)
	case model.StatusTimedOut:
		return color.RedString(label)
	}
	if a.dark {
		return color.WhiteString(label)
	}
	return color.HiBlackString(label)
}

// readPassword prompts on the terminal without echo. Piped input is read
// one line at a time.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt+": ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return readLine()
}

var stdin = bufio.NewReader(os.Stdin)

func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// openURL is replaced in tests.
var openURL = browser.OpenURL

// openBrowser opens url with the desktop's default handler. The handler's
// own output is discarded so it does not mix with command output.
func openBrowser(url string) error {
	browser.Stdout, browser.Stderr = io.Discard, io.Discard
	if err := openURL(url); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

func success(w io.Writer, msg string) {
	fmt.Fprintln(w, color.GreenString("✓"), msg)
}
