package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/category-note/internal/config"
)

// app carries what every subcommand shares: the --config flag and, once
// loaded, the configuration and logger built from it.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "category-note",
		Short: "Bookmark API with OAuth login and category notes",
		Long: `category-note serves a JSON API for saving HTTPS bookmarks, tagging
them with up to three categories and searching them, behind GitHub or
Google OAuth login.

Configuration comes from environment variables, optionally seeded from a
.env.<APP_ENV> or .env file in the working directory, or from --config.`,
		Version: version,
		// errors are printed once by cobra; usage only on flag errors
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "category-note version %s\n" .Version}}`)
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "path to a .env or yaml config file")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// load reads configuration and builds the logger. Commands call it from
// RunE so `version` and `--help` work without a valid configuration.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger.With(slog.String("env", cfg.AppEnv))
	return nil
}

// newLogger builds the process logger: text by default, JSON for log
// shippers. Level names are the slog ones, case-insensitive.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("LOG_FORMAT %q is not text or json", format)
	}
}
