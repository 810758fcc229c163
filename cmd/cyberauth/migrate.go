package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/cybercongress/cyberauth/internal/database"
)

var migrateDownSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply Postgres schema migrations",
	Long: `Apply the embedded auth_challenges migrations to postgres.dsn.

Examples:
  cyberauth migrate
  cyberauth migrate --down 1`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().IntVar(&migrateDownSteps, "down", 0, "roll back this many migrations instead of applying")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is not set")
	}

	if migrateDownSteps > 0 {
		if err := database.MigrateDown(cfg.Postgres.DSN, migrateDownSteps); err != nil {
			return err
		}
		logger.Info("migrations rolled back", "steps", migrateDownSteps)
		return nil
	}

	if err := database.RunMigrations(cfg.Postgres.DSN); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}
