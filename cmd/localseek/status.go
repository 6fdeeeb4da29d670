package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/localseek/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index, cache, and recent search statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		stats, err := a.storage.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Index: %d collections, %d documents, %s (%s)\n",
			stats.Collections, stats.Documents, formatBytes(stats.DBSizeBytes), stats.DBPath)
		fmt.Printf("Build: %s, driver %s\n", storage.BuildMode, storage.DriverName)

		if a.cache != nil {
			cs, err := a.cache.Stats(ctx)
			if err != nil {
				fmt.Println("Cache: unavailable")
			} else {
				fmt.Printf("Cache: %d expansions, %d rerank scores, %d hits, %s\n",
					cs.ExpansionEntries, cs.RerankEntries, cs.TotalHits, formatBytes(cs.SizeBytes))
			}
		} else {
			fmt.Println("Cache: disabled")
		}

		if a.recorder != nil {
			summary, err := a.recorder.Summarize(ctx, 7*24*time.Hour)
			if err == nil && summary.Searches > 0 {
				fmt.Printf("Last 7 days: %d searches, avg %.0fms, %.0f%% expansion cache hits, %d degraded\n",
					summary.Searches, summary.AvgLatencyMS,
					summary.ExpansionHitRate*100, summary.DegradedCount)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
