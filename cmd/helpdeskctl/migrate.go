package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskops/helpdesk-service/internal/persistence"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  `Bring the configured store schema up to date. Postgres applies the embedded SQL migrations; SQLite migrates from the model definitions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.store.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("store unreachable: %w", err)
			}
			names, err := persistence.MigrationNames()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s store is up to date (%d migrations embedded)\n", e.cfg.Store.Driver, len(names))
			return nil
		},
	}
}
