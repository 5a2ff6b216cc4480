// Package main provides the NoiseWatch administration CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"noisewatch/cmd/adm/commands"
	"noisewatch/internal/config"
	"noisewatch/internal/di"
	"noisewatch/internal/observability"

	"github.com/spf13/cobra"

	_ "time/tzdata"
)

// containerProvider wires the service container the first time a command asks for it
type containerProvider struct {
	cfg       *config.Config
	logger    *observability.Logger
	once      sync.Once
	container *di.ServiceContainer
	env       *commands.Env
	err       error
}

func (p *containerProvider) provide(ctx context.Context) (*commands.Env, error) {
	p.once.Do(func() {
		container := di.NewServiceContainer(p.cfg, p.logger)
		if err := container.Initialize(ctx); err != nil {
			p.err = err
			return
		}
		p.container = container

		users, err := container.GetUserService()
		if err != nil {
			p.err = err
			return
		}
		reports, err := container.GetReportService()
		if err != nil {
			p.err = err
			return
		}
		aggregation, err := container.GetAggregationService()
		if err != nil {
			p.err = err
			return
		}
		p.env = &commands.Env{Users: users, Reports: reports, Aggregation: aggregation}
	})
	return p.env, p.err
}

func (p *containerProvider) close(ctx context.Context) {
	if p.container == nil {
		return
	}
	if err := p.container.Shutdown(ctx); err != nil {
		p.logger.Warn(ctx, "Warning: failed to close connections", map[string]interface{}{"error": err.Error()})
	}
}

func main() {
	ctx := context.Background()

	if os.Getenv(config.ConfigFileEnv) == "" {
		for _, path := range []string{"config.yaml", "../config.yaml", "../../config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				_ = os.Setenv(config.ConfigFileEnv, path)
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Keep the terminal clean and avoid exporter connection errors
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "noisewatch-adm", observability.ParseLevel(cfg.Server.LogLevel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	provider := &containerProvider{cfg: cfg, logger: logger}

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "NoiseWatch administration tool",
		Long: `NoiseWatch administration tool

Manage accounts, moderate noise reports, maintain the record store and run the
consecutive-day aggregator from the command line.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.UserCommands(provider.provide, logger))
	rootCmd.AddCommand(commands.ReportCommands(provider.provide, logger))
	rootCmd.AddCommand(commands.DatabaseCommands(cfg, logger))
	rootCmd.AddCommand(commands.SeedCommand(provider.provide, logger))
	rootCmd.AddCommand(commands.AggregateCommand(provider.provide, logger))

	execErr := rootCmd.ExecuteContext(ctx)

	provider.close(ctx)
	observability.Shutdown(ctx, logger, tp, mp)
	if execErr != nil {
		os.Exit(1)
	}
}
