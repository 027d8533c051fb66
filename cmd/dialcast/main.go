// Package main implements the dialcast CLI: batch dispatch of outbound calls
// and live campaign monitoring.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dialcast/internal/api"
	"dialcast/internal/config"
	"dialcast/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dialcast",
	Short: "dialcast - outbound call campaign dispatcher",
	Long: `dialcast dispatches batches of outbound phone calls through a remote
calling API and tracks each batch as a campaign.

Dispatch a CSV of call requests, then watch the campaign live:

  dialcast dispatch leads.csv
  dialcast watch`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; explicit env vars still apply.
		_ = godotenv.Load()

		path := configPath
		if path == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to resolve working directory: %w", err)
			}
			path = config.DefaultPath(cwd)
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		settings := logging.Settings{
			DebugMode:  cfg.Logging.DebugMode || verbose,
			Categories: cfg.Logging.Categories,
			Level:      cfg.Logging.Level,
		}
		if err := logging.Initialize(cfg.DataDir, settings); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}

		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default .dialcast/config.yaml)")

	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(campaignsCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(concurrencyCmd)
}

// newAPIClient builds a client from the loaded config.
func newAPIClient() *api.Client {
	return api.NewClient(api.ClientConfig{
		APIKey:  cfg.API.APIKey,
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.GetAPITimeout(),
	})
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
