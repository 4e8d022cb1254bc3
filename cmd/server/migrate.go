package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/category-note/internal/repository/sqlstore"
)

func newMigrateCmd(a *app) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations without starting the server",
		Long: `migrate brings the schema at DATABASE_URL up to the latest version.
With --down every migration is reverted, which drops all data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			dir := sqlstore.Up
			if down {
				dir = sqlstore.Down
			}
			v, err := sqlstore.Migrate(cmd.Context(), a.cfg.DatabaseURL, dir, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert all migrations")
	return cmd
}
