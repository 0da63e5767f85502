package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sumika/internal/dataset"
	"sumika/internal/diff"
	"sumika/internal/report"
)

func newDiffCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <category>",
		Short: "Compare the current dataset against the previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			category := args[0]

			store := dataset.NewStore(cfg.Paths.DataDir, logger)
			current, err := store.LoadCurrent(category)
			if err != nil {
				return err
			}
			previous, err := store.LoadPrevious(category)
			if err != nil {
				return err
			}

			result := diff.Diff(current, previous, time.Now().Format("2006-01-02"))
			fmt.Fprint(cmd.OutOrStdout(), report.Diff(category, result.Counts()))
			return nil
		},
	}
}
