package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/labcentral/labcentral/internal/model"
	"github.com/labcentral/labcentral/internal/session"
	"github.com/labcentral/labcentral/internal/store"
)

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login EMAIL",
		Short: "Log in and keep the session locally",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			password, err := readPassword(a.t("FieldPassword"))
			if err != nil {
				return err
			}
			sess, err := a.sessions.Login(a.ctx, store.LocalSessionID, model.Credentials{Email: args[0], Password: password})
			if err != nil {
				return err
			}
			if sess.ForcePasswordChange {
				fmt.Fprintln(a.out, color.YellowString(a.t("ForcePasswordHint")), "(labcentral password force-change)")
				return nil
			}
			success(a.out, sess.User.DisplayName())
			return nil
		}),
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the local session",
		Args:  cobra.NoArgs,
		RunE: run(func(a *app, _ *cobra.Command, _ []string) error {
			if err := a.sessions.Logout(a.ctx, store.LocalSessionID); err != nil {
				return err
			}
			success(a.out, a.t("Logout"))
			return nil
		}),
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: run(func(a *app, _ *cobra.Command, _ []string) error {
			sess, _, err := a.current()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s>\n", sess.User.DisplayName(), sess.User.Email)
			if sess.User.IsAdmin {
				fmt.Fprintln(a.out, color.CyanString("admin"))
			}
			if !sess.ExpiresAt.IsZero() {
				fmt.Fprintf(a.out, "expires %s\n", humanize.RelTime(sess.ExpiresAt, time.Now(), "ago", "from now"))
			}
			return nil
		}),
	}
}

func signupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signup EMAIL",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			password, err := readPassword(a.t("FieldPassword"))
			if err != nil {
				return err
			}
			confirm, err := readPassword(a.t("FieldConfirmPassword"))
			if err != nil {
				return err
			}
			msg, err := a.sessions.Signup(a.ctx, model.Credentials{Email: args[0], Password: password}, confirm)
			if err != nil {
				return err
			}
			if msg == "" {
				msg = a.t("SignupSuccess")
			}
			success(a.out, msg)
			return nil
		}),
	}
}

func passwordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Reset or change a password",
	}

	request := &cobra.Command{
		Use:   "request EMAIL",
		Short: "Request a password reset token",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			res, err := a.sessions.RequestPasswordReset(a.ctx, args[0])
			if err != nil {
				return err
			}
			if res.Message != "" {
				fmt.Fprintln(a.out, res.Message)
			}
			if res.ResetToken != "" {
				fmt.Fprintf(a.out, "%s %s\n", a.t("ResetTokenIssued"), color.CyanString(res.ResetToken))
			}
			return nil
		}),
	}

	reset := &cobra.Command{
		Use:   "reset TOKEN",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(a *app, _ *cobra.Command, args []string) error {
			password, err := readPassword(a.t("FieldNewPassword"))
			if err != nil {
				return err
			}
			msg, err := a.sessions.ResetPassword(a.ctx, args[0], password)
			if err != nil {
				return err
			}
			if msg == "" {
				msg = a.t("PasswordResetSuccess")
			}
			success(a.out, msg)
			return nil
		}),
	}

	force := &cobra.Command{
		Use:   "force-change",
		Short: "Replace the temporary password of the pending session",
		Args:  cobra.NoArgs,
		RunE: run(func(a *app, _ *cobra.Command, _ []string) error {
			password, err := readPassword(a.t("FieldNewPassword"))
			if err != nil {
				return err
			}
			if _, err := a.sessions.ForceChangePassword(a.ctx, store.LocalSessionID, password); err != nil {
				if errors.Is(err, session.ErrNotAuthenticated) {
					return session.ErrNoPendingPasswordChange
				}
				return err
			}
			success(a.out, a.t("PasswordChangedLoginAgain"))
			return nil
		}),
	}

	cmd.AddCommand(request, reset, force)
	return cmd
}
