package main

import (
	"github.com/spf13/cobra"

	"github.com/cybercongress/cyberauth/internal/app"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired challenges once and exit",
	Long: `Delete every challenge older than auth.challenge_ttl from the configured store.
Useful as a cron job when the in-process sweeper is not running.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.Challenges.CleanupExpiredChallenges(cmd.Context())
	if err != nil {
		return err
	}

	cmd.Printf("deleted %d expired challenges\n", deleted)
	return nil
}
