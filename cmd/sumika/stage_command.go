package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"sumika/internal/enrich"
	"sumika/internal/logging"
)

// newStageCommand is the hidden per-stage entry point the scheduler spawns.
// It runs exactly one stage against the given input/output contract and
// exits 0 on success, 1 on failure.
func newStageCommand(ctx *commandContext) *cobra.Command {
	var category string
	var input string
	var output string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:    "stage <name>",
		Short:  "Run a single pipeline stage",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("--output is required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			handler, err := enrich.NewHandler(args[0], cfg, logger)
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, timeout)
				defer cancel()
			}
			runCtx = logging.WithStage(runCtx, args[0])

			return handler.Run(runCtx, enrich.Request{
				Category: category,
				Input:    input,
				Output:   output,
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Property category the stage operates on")
	cmd.Flags().StringVar(&input, "input", "", "Input dataset path")
	cmd.Flags().StringVar(&output, "output", "", "Output dataset path")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Stage timeout override")
	return cmd
}
