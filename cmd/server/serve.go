package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakif/category-note/internal/auth"
	"github.com/sakif/category-note/internal/config"
	"github.com/sakif/category-note/internal/model"
	"github.com/sakif/category-note/internal/repository/sqlstore"
	"github.com/sakif/category-note/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg, a.logger)
		},
	}
}

// serve runs the whole lifecycle:
//  1. bring the schema up to date
//  2. open the pool (waits for a database that is still starting)
//  3. register the configured OAuth providers
//  4. serve until ctx is cancelled, then close the pool
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if _, err := sqlstore.Migrate(ctx, cfg.DatabaseURL, sqlstore.Up, logger); err != nil {
		return err
	}

	db, err := sqlstore.Open(ctx, cfg.DatabaseURL, sqlstore.Options{
		Retry: sqlstore.RetryPolicy{
			MaxAttempts: cfg.DBRetryMaxAttempts,
			BaseDelay:   cfg.DBRetryBaseDelay,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	providers := buildProviders(cfg, logger)
	if len(providers) == 0 {
		logger.Warn("no OAuth provider configured; logins will fail",
			slog.String("hint", "set GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET or GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET"),
		)
	}

	srv, err := server.New(cfg, db, providers, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Start(ctx)
}

// buildProviders registers every provider that has client credentials.
// Redirect URIs are derived from PUBLIC_BASE_URL and must match what is
// registered in the provider's OAuth app settings.
func buildProviders(cfg *config.Config, logger *slog.Logger) auth.Providers {
	var ps []auth.IdentityProvider

	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		ps = append(ps, auth.NewGitHubProvider(auth.ProviderConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.CallbackURL(string(model.ProviderGitHub)),
		}, logger))
	}
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		ps = append(ps, auth.NewGoogleProvider(auth.ProviderConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.CallbackURL(string(model.ProviderGoogle)),
		}))
	}

	for _, p := range ps {
		logger.Info("OAuth provider enabled",
			slog.String("provider", string(p.Name())),
			slog.String("callback", cfg.CallbackURL(string(p.Name()))),
		)
	}
	return auth.NewProviders(ps...)
}
