package main

import (
	"fmt"
	"path/filepath"

	"github.com/phueb/twoprocess/internal/cache"
	"github.com/phueb/twoprocess/internal/config"
	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the trial cache",
		Long: `Manage the trial cache.

The cache stores the score rows of finished trials so a rerun of the same
experiment skips them. Entries are keyed by the trial parameters, the
evaluation settings and the contents of the task, vocabulary and vectors
files.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	var cacheDir string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the trial cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(cacheDir)
			if err != nil {
				return fmt.Errorf("resolving cache directory: %w", err)
			}
			if err := cache.New(absDir).Clear(); err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", absDir) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", config.DefaultCacheDir, "Cache directory to clear")

	return cmd
}
