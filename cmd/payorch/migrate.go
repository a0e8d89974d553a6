package main

import (
	"github.com/spf13/cobra"

	"payment-orchestrator/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := database.Migrate(cmd.Context(), a.db.DB(), a.db.Gorm()); err != nil {
				return err
			}
			a.logger.Info("schema up to date")
			return nil
		},
	}
}
