package main

import (
	"fmt"

	"github.com/SimbaBuilds/NL-To-Automation/engine/infra/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			dsn := fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
				cfg.Database.Host, cfg.Database.Port, cfg.Database.User,
				cfg.Database.Password, cfg.Database.DBName, cfg.Database.SSLMode,
			)
			log.Info("applying migrations", "dbname", cfg.Database.DBName)
			if err := postgres.ApplyMigrationsWithLock(ctx, dsn); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
