package main

import (
	"fmt"
	"os"

	"medcontrol/internal/config"
	"medcontrol/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "medcontrol"

var rootCmd = &cobra.Command{
	Use:   "medcontrol",
	Short: "Medication alarm scheduler and device notification server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the alarm scan, the device socket and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Show which alarms a tick at the given instant would send",
		RunE: func(cmd *cobra.Command, args []string) error {
			at, _ := cmd.Flags().GetString("at")
			asJSON, _ := cmd.Flags().GetBool("json")
			return runScan(at, asJSON, os.Stdout)
		},
	}
	scanCmd.Flags().String("at", "", "Instant to evaluate, RFC3339 (default now)")
	scanCmd.Flags().Bool("json", false, "Print matches as JSON")
	rootCmd.AddCommand(scanCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, log, nil
}
