package commands

import (
	"fmt"
	"strings"

	"noisewatch/internal/escalation"
	"noisewatch/internal/models"
	"noisewatch/internal/observability"
	"noisewatch/internal/services"
	contextutils "noisewatch/internal/utils"

	"github.com/spf13/cobra"
)

// ReportCommands returns the report moderation commands
func ReportCommands(provide Provider, logger *observability.Logger) *cobra.Command {
	reportCmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report"},
		Short:   "Noise report commands",
		Long: `Noise report commands for NoiseWatch.

Available commands:
  list       - List reports, newest first
  options    - Show the responses currently available for a report
  set-status - Send a response to a report`,
	}

	reportCmd.AddCommand(listReportsCmd(provide, logger))
	reportCmd.AddCommand(reportOptionsCmd(provide))
	reportCmd.AddCommand(setStatusCmd(provide, logger))

	return reportCmd
}

func listReportsCmd(provide Provider, logger *observability.Logger) *cobra.Command {
	var (
		status string
		level  string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			filter := models.ReportFilter{Limit: limit}
			if status != "" {
				s, ok := escalation.ParseStatus(status)
				if !ok {
					return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown status %q", status)
				}
				filter.Status = &s
			}
			if level != "" {
				l, ok := escalation.ParseNoiseLevel(level)
				if !ok {
					return contextutils.WrapErrorf(contextutils.ErrValidationFailed, "unknown noise level %q", level)
				}
				filter.NoiseLevel = &l
			}

			env, err := provide(ctx)
			if err != nil {
				return err
			}
			reports, err := env.Reports.List(ctx, filter)
			if err != nil {
				logger.Error(ctx, "Failed to list reports", err, nil)
				return contextutils.WrapError(err, "failed to list reports")
			}

			out := cmd.OutOrStdout()
			if len(reports) == 0 {
				fmt.Fprintln(out, "No reports found")
				return nil
			}

			fmt.Fprintf(out, "%-36s %-7s %-4s %-16s %-3s %-30s %-16s\n", "ID", "Level", "Days", "Status", "Ver", "Reason", "Created")
			fmt.Fprintln(out, strings.Repeat("-", 118))
			for _, r := range reports {
				fmt.Fprintf(out, "%-36s %-7s %-4d %-16s %-3d %-30s %-16s\n",
					r.ID,
					r.NoiseLevel,
					r.ConsecutiveDays,
					r.Status,
					r.Version,
					truncate(r.Reason, 30),
					r.CreatedAt.Format("2006-01-02 15:04"),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only reports in this status")
	cmd.Flags().StringVar(&level, "level", "", "only reports with this noise level (red, yellow, green)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of reports to list")
	return cmd
}

func reportOptionsCmd(provide Provider) *cobra.Command {
	return &cobra.Command{
		Use:   "options <report-id>",
		Short: "Show available responses for a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := provide(ctx)
			if err != nil {
				return err
			}

			opts, err := env.Reports.Options(ctx, args[0])
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to load options for report %s", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Report:    %s\n", opts.ReportID)
			fmt.Fprintf(out, "Level:     %s (day %d", opts.NoiseLevel, opts.ConsecutiveDays)
			if opts.Threshold > 0 {
				fmt.Fprintf(out, " of %d", opts.Threshold)
			}
			fmt.Fprintln(out, ")")
			fmt.Fprintf(out, "Status:    %s\n", opts.Status)
			fmt.Fprintf(out, "Response:  %s\n", opts.ResponseText)
			if len(opts.Options) == 0 {
				fmt.Fprintln(out, "No responses available")
				return nil
			}
			fmt.Fprintln(out, "Options:")
			for _, o := range opts.Options {
				fmt.Fprintf(out, "  %-16s %s\n", o.Status, o.Message)
			}
			return nil
		},
	}
}

func setStatusCmd(provide Provider, logger *observability.Logger) *cobra.Command {
	var (
		note    string
		version int
	)

	cmd := &cobra.Command{
		Use:   "set-status <report-id> <status>",
		Short: "Send a response to a report",
		Long: `Apply one of the statuses offered by "reports options". With --version the change is
rejected if the report was modified since that version was read.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := provide(ctx)
			if err != nil {
				return err
			}

			updated, err := env.Reports.UpdateStatus(ctx, services.StatusUpdateRequest{
				ReportID: args[0],
				Status:   args[1],
				Note:     note,
				Version:  version,
			})
			if err != nil {
				logger.Error(ctx, "Failed to update report status", err, map[string]interface{}{
					"report_id": args[0],
					"status":    args[1],
				})
				return contextutils.WrapErrorf(err, "failed to set status of report %s", args[0])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Report %s is now %s (version %d)\n", updated.ID, escalation.Label(updated.Status), updated.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note recorded in the audit trail (defaults to the response text)")
	cmd.Flags().IntVar(&version, "version", 0, "expected report version; 0 skips the check")
	return cmd
}
