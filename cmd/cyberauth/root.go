package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cybercongress/cyberauth/internal/config"
	"github.com/cybercongress/cyberauth/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "cyberauth",
	Short: "Wallet challenge-response authentication service",
	Long: `cyberauth authenticates Cosmos wallet holders by having them sign a one-time
challenge, then issues a Supabase-compatible session token.

Configuration is read from config.yaml (or --config) and CYBERAUTH_* environment
variables, e.g. CYBERAUTH_JWT_SECRET.

Examples:
  cyberauth serve
  cyberauth cleanup --config /etc/cyberauth/config.yaml
  cyberauth migrate`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

// loadConfig reads the configuration and builds the process logger from it
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
	})
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	return cfg, logger, nil
}
