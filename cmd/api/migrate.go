package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"citeme/api/internal/logging"
	"citeme/api/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pg, err := store.OpenPostgres(cmd.Context(), cfg.DatabaseURL, "")
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer pg.Close()

		if status, _ := cmd.Flags().GetBool("status"); status {
			pending, err := store.PendingMigrations(cmd.Context(), pg.DB(), cfg.MigrationsDir)
			if err != nil {
				return err
			}
			for _, m := range pending {
				fmt.Fprintln(cmd.OutOrStdout(), m.Version)
			}
			logging.Info("pending migrations", "count", len(pending))
			return nil
		}

		if err := store.ApplyMigrations(cmd.Context(), pg.DB(), cfg.MigrationsDir); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		logging.Info("migrations up to date", "dir", cfg.MigrationsDir)
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("status", false, "list pending migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}
