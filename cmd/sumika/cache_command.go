package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"sumika/internal/cachestore"
	"sumika/internal/config"
	"sumika/internal/enrich"
	"sumika/internal/export"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the persistent enrichment caches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			domains := make(map[string]string)
			for _, stage := range cacheStages(cfg) {
				domains[stage] = enrich.CachePath(cfg, stage)
			}
			domains["manifest"] = export.ManifestPath(cfg)

			names := make([]string, 0, len(domains))
			for name := range domains {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				path := domains[name]
				store, err := cachestore.Open(path, logger)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s unreadable: %v\n", name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %6d entries  %s\n", name, store.Len(), path)
			}
			return nil
		},
	}

	cmd.AddCommand(newCacheGetCommand(ctx))
	return cmd
}

func newCacheGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <stage> <key>",
		Short: "Look up one cache entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			path := enrich.CachePath(cfg, args[0])
			if path == "" {
				return fmt.Errorf("stage %q has no cache", args[0])
			}
			store, err := cachestore.Open(path, logger)
			if err != nil {
				return err
			}
			entry, ok := store.Lookup(args[1])
			if !ok {
				return fmt.Errorf("no entry for %q", args[1])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "value: %v\nstage: %s\nlast validated: %s\n",
				entry.Value, entry.Stage, entry.LastValidated.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func cacheStages(cfg *config.Config) []string {
	var stages []string
	for _, stage := range enrich.Stages() {
		if enrich.CachePath(cfg, stage) != "" {
			stages = append(stages, stage)
		}
	}
	return stages
}
