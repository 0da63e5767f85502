package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sumika/internal/report"
	"sumika/internal/runstore"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			ledger, err := runstore.Open(cfg)
			if err != nil {
				return err
			}
			defer ledger.Close()

			records, err := ledger.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Recent runs", colorize) {
				fmt.Fprintln(out, line)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, renderStatusLine("runs", statusInfo, "no runs recorded yet", colorize))
				return nil
			}

			latest := records[0]
			kind := statusOK
			message := "last run succeeded"
			if latest.Error != "" {
				kind = statusError
				message = latest.Error
			} else if latest.HasChanges {
				message = "last run succeeded with changes"
			}
			fmt.Fprintln(out, renderStatusLine("health", kind, message, colorize))
			fmt.Fprintln(out)
			fmt.Fprint(out, report.Runs(records))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	return cmd
}
