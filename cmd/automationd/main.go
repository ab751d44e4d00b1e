// Command automationd runs the declarative automation engine: the
// webhook ingress (C4), the polling loop (C5), the cadence scheduler
// (C6), and the queue-draining dispatcher that hands matched events to
// the action executor (C2), all behind one admin HTTP surface (§6).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/SimbaBuilds/NL-To-Automation/pkg/config"
	"github.com/SimbaBuilds/NL-To-Automation/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "automationd",
		Short: "Declarative event-driven automation engine",
	}
	root.AddCommand(serveCmd(), migrateCmd())
	return root
}

// loadConfig layers Default() under AUTOMATION_-prefixed environment
// overrides, validates the result, and builds the process logger from
// runtime.log_level.
func loadConfig(ctx context.Context) (*config.Config, logger.Logger, error) {
	mgr := config.NewManager(config.NewService())
	cfg, err := mgr.Load(ctx, config.NewDefaultProvider(), config.NewEnvProvider())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Runtime.LogLevel),
		Output:     os.Stdout,
		JSON:       cfg.Runtime.Environment == "production",
		TimeFormat: "15:04:05",
	})
	return cfg, log, nil
}
