package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/labcentral/labcentral/internal/alert"
	"github.com/labcentral/labcentral/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error reading .env", "error", err)
	}
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), describe(err))
		os.Exit(1)
	}
}

// describe is the one-line message printed for a failed command.
func describe(err error) string {
	if messageCtx == nil {
		return err.Error()
	}
	msg := err.Error()
	if id, _ := alert.ID(err); id != alert.Generic {
		msg = alert.Message(messageCtx, err)
	}
	if errors.Is(err, session.ErrNotAuthenticated) {
		msg += " (labcentral login)"
	}
	return msg
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "labcentral",
		Short:         "Client for the LabCentral exercise platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.String("api-url", "http://localhost:5000", "Backend API base URL")
	f.String("state", defaultStatePath(), "SQLite file holding sessions and preferences")
	f.StringP("lang", "l", "es", "UI language (es, en)")
	f.Duration("boot-delay", 0, "Wait after a start before polling status (0 = default)")
	f.Duration("ready-timeout", 0, "Give up waiting for a started container (0 = default)")
	f.Duration("poll-interval", 0, "Minimum spacing between status polls (0 = default)")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Write logs to a rotating file instead of stderr")

	root.AddCommand(
		serveCmd(),
		loginCmd(), logoutCmd(), whoamiCmd(), signupCmd(), passwordCmd(),
		exercisesCmd(), startCmd(), stopCmd(), statusCmd(),
		questionsCmd(), answerCmd(),
		groupCmd(), gradeCmd(), usersCmd(), prefsCmd(),
	)
	return root
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "labcentral.db"
	}
	return dir + "/labcentral/state.db"
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvPrefix("LABCENTRAL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("labcentral")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/labcentral")
	v.AddConfigPath("/etc/labcentral")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}
