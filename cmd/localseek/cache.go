package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var pruneFlags struct {
	maxAgeDays int
	maxSizeMB  int64
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the expansion and rerank score cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached expansions and rerank scores",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cache == nil {
			return errors.New("caching is disabled")
		}
		if err := a.cache.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stale cache entries and shrink the cache database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cache == nil {
			return errors.New("caching is disabled")
		}

		maxAge := pruneFlags.maxAgeDays
		if maxAge <= 0 {
			maxAge = a.cfg.CacheTTLDays
		}
		if err := a.cache.Prune(cmd.Context(), maxAge, pruneFlags.maxSizeMB<<20); err != nil {
			return err
		}

		stats, err := a.cache.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Pruned. %d expansions, %d rerank scores, %s on disk.\n",
			stats.ExpansionEntries, stats.RerankEntries, formatBytes(stats.SizeBytes))
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts and size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cache == nil {
			return errors.New("caching is disabled")
		}
		stats, err := a.cache.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Expansions:    %d\n", stats.ExpansionEntries)
		fmt.Printf("Rerank scores: %d\n", stats.RerankEntries)
		fmt.Printf("Total hits:    %d\n", stats.TotalHits)
		fmt.Printf("Size:          %s\n", formatBytes(stats.SizeBytes))
		fmt.Printf("Path:          %s\n", stats.DBPath)
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().IntVar(&pruneFlags.maxAgeDays, "max-age-days", 0, "delete entries older than this (default: configured TTL)")
	cachePruneCmd.Flags().Int64Var(&pruneFlags.maxSizeMB, "max-size-mb", 0, "shrink the store below this size (0 = no size limit)")
	cacheCmd.AddCommand(cacheClearCmd, cachePruneCmd, cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
