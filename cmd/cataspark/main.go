package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ccie14023/cataspark/internal/config"
	"github.com/ccie14023/cataspark/internal/logging"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	envPath    string
)

var rootCmd = &cobra.Command{
	Use:     "cataspark",
	Short:   "cataspark - chat-ops bot for a Catalyst switch",
	Long:    `cataspark polls a Webex room for commands, answers them with NETCONF queries against a Catalyst switch, and posts the results back to the room`,
	Version: Version,
	// Running without a subcommand starts the bot.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cataspark.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "path to the .env file (default: next to the config file)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(roomsCmd)
	rootCmd.AddCommand(roomCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(bgpCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "cataspark %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Fprintf(out, "Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Fprintf(out, "Commit: %s\n", GitCommit)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the layered configuration and re-initialises logging
// from it.
func loadConfig() (*config.Config, error) {
	// Baseline logger for early startup messages.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "cataspark",
	})

	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.Logging.Format,
		Level:     cfg.Logging.Level,
		Component: "cataspark",
		FilePath:  cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
	})
	log.Debug().
		Str("config_file", cfg.ConfigPath).
		Str("env_file", cfg.EnvPath).
		Msg("Configuration loaded")
	return cfg, nil
}
