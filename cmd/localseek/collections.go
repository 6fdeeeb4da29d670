package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/localseek/internal/indexer"
)

var addFlags struct {
	name string
	glob string
}

var addCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register a folder as a collection and index it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		name := addFlags.name
		if name == "" {
			name = filepath.Base(path)
		}

		stats, err := a.indexer.AddCollection(cmd.Context(), path, name, addFlags.glob)
		if err != nil {
			return err
		}
		printIndexStats(name, stats)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Re-index one collection, or all collections when no name is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			stats, err := a.indexer.UpdateCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printIndexStats(args[0], stats)
			return nil
		}

		results, err := a.indexer.UpdateAll(cmd.Context())
		for name, stats := range results {
			printIndexStats(name, stats)
		}
		return err
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a collection and its indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.indexer.RemoveCollection(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed collection %q\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		collections, err := a.storage.ListCollections(cmd.Context())
		if err != nil {
			return err
		}
		if len(collections) == 0 {
			fmt.Println("No collections. Use 'localseek add <path>' to create one.")
			return nil
		}
		for _, c := range collections {
			fmt.Printf("%-20s %5d docs  %s  (%s)\n", c.Name, c.DocCount, c.Path, c.GlobPattern)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <collection> <path>",
	Short: "Print the indexed content of one document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.storage.GetDocumentByPath(cmd.Context(), args[1], args[0])
		if err != nil {
			return err
		}
		fmt.Print(doc.Content)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addFlags.name, "name", "", "collection name (defaults to the folder name)")
	addCmd.Flags().StringVar(&addFlags.glob, "glob", indexer.DefaultGlobPattern, "glob pattern selecting files")
	rootCmd.AddCommand(addCmd, updateCmd, removeCmd, listCmd, getCmd)
}

func printIndexStats(name string, stats *indexer.Statistics) {
	fmt.Printf("%s: %d indexed, %d unchanged, %d removed, %d failed (%s)\n",
		name, stats.FilesIndexed, stats.FilesSkipped, stats.FilesRemoved,
		stats.FilesFailed, stats.Duration.Round(time.Millisecond))
	for _, msg := range stats.ErrorMessages {
		fmt.Printf("  error: %s\n", msg)
	}
}
