package commands

import (
	"fmt"
	"time"

	"noisewatch/internal/observability"
	contextutils "noisewatch/internal/utils"

	"github.com/spf13/cobra"
)

// AggregateCommand returns the command that runs one consecutive-day aggregation pass
func AggregateCommand(provide Provider, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Run one aggregation pass now",
		Long: `Scan recent reports, match repeat complaints about the same location and raise
their consecutive-day counters. Safe to run while the worker is up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := provide(ctx)
			if err != nil {
				return err
			}

			result, err := env.Aggregation.Run(ctx)
			if result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d reports, planned %d raises, raised %d, failed %d (%s)\n",
					result.Scanned, result.Planned, result.Raised, result.Failed,
					result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
			}
			if err != nil {
				logger.Error(ctx, "Aggregation pass failed", err, nil)
				return contextutils.WrapError(err, "aggregation failed")
			}
			return nil
		},
	}
}
