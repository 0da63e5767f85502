package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sumika/internal/dataset"
	"sumika/internal/export"
	"sumika/internal/notifications"
	"sumika/internal/pipeline"
	"sumika/internal/preflight"
	"sumika/internal/report"
	"sumika/internal/runstore"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var acquireOnly bool
	var enrichOnly bool
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the pipeline for all configured categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if acquireOnly && enrichOnly {
				return errors.New("--acquire-only and --enrich-only are mutually exclusive")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !skipPreflight {
				results := preflight.RunAll(runCtx, cfg)
				for _, result := range results {
					if !result.Passed {
						fmt.Fprintf(cmd.ErrOrStderr(), "preflight: %s: %s\n", result.Name, result.Detail)
					}
				}
				if preflight.Failed(results) {
					return errors.New("preflight checks failed")
				}
			}

			ledger, err := runstore.Open(cfg)
			if err != nil {
				return err
			}
			defer ledger.Close()

			mode := pipeline.ModeFull
			switch {
			case acquireOnly:
				mode = pipeline.ModeAcquire
			case enrichOnly:
				mode = pipeline.ModeEnrich
			}

			scheduler, err := pipeline.New(cfg, pipeline.DefaultGraph(),
				pipeline.NewExecRunner(cfg, logger),
				notifications.NewService(cfg), ledger, logger)
			if err != nil {
				return err
			}

			runReport, err := scheduler.Run(runCtx, mode)
			if runReport != nil {
				fmt.Fprint(cmd.OutOrStdout(), report.Run(runReport))
			}
			if err != nil {
				return err
			}

			if cfg.Export.Enabled && mode != pipeline.ModeAcquire {
				if err := exportAll(runCtx, ctx, cmd); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "export failed: %v\n", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&acquireOnly, "acquire-only", false, "Acquire and diff, leaving enrichment to a later run")
	cmd.Flags().BoolVar(&enrichOnly, "enrich-only", false, "Enrich a previously acquired dataset")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment preflight checks")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Push the current datasets to Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportAll(cmd.Context(), ctx, cmd)
		},
	}
}

func exportAll(runCtx context.Context, ctx *commandContext, cmd *cobra.Command) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	exporter, err := export.New(cfg, logger)
	if err != nil {
		return err
	}
	manifest, err := export.OpenManifest(cfg, logger)
	if err != nil {
		return err
	}

	store := dataset.NewStore(cfg.Paths.DataDir, logger)
	for _, category := range cfg.AllCategories() {
		records, err := store.LoadCurrent(category)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
		upToDate, err := manifest.UpToDate(category, records)
		if err != nil {
			return err
		}
		if upToDate {
			fmt.Fprintf(cmd.OutOrStdout(), "%s unchanged since last export, skipped\n", category)
			continue
		}
		rows, err := exporter.Dataset(runCtx, category, records)
		if err != nil {
			return fmt.Errorf("export %s: %w", category, err)
		}
		if err := manifest.MarkExported(category, records); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d %s rows\n", rows, category)
	}
	return nil
}
