package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/touml/touml/internal/cache"
	"github.com/touml/touml/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the block cache",
	Long: `Manage the block cache in .touml/cache.db.

The cache is enabled with --cache or "cache: true" in the config and maps the
content of each file (and the options it was rendered with) to its rendered
classes.

Examples:
  touml cache stats
  touml cache prune --older-than 720h
  touml cache clear`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of cached entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openExistingCache(".")
		if err != nil {
			return err
		}
		defer c.Close()

		stats, err := c.GetStats()
		if err != nil {
			return err
		}
		info, err := os.Stat(c.Path())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cache:   %s\n", c.Path())
		fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\n", stats.StoredEntries)
		fmt.Fprintf(cmd.OutOrStdout(), "Size:    %d bytes\n", info.Size())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openExistingCache(".")
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Clear(); err != nil {
			return err
		}
		printSuccess(cmd.ErrOrStderr(), "cleared %s", c.Path())
		return nil
	},
}

var cachePruneOlderThan time.Duration

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove entries stored before a cutoff",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cachePruneOlderThan <= 0 {
			return errors.New("--older-than must be positive")
		}
		c, err := openExistingCache(".")
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := c.PruneBefore(time.Now().Add(-cachePruneOlderThan))
		if err != nil {
			return err
		}
		printSuccess(cmd.ErrOrStderr(), "pruned %d entries", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cachePruneCmd)
	cachePruneCmd.Flags().DurationVar(&cachePruneOlderThan, "older-than", 30*24*time.Hour, "Age of the oldest entry to keep")
}

// openExistingCache opens the cache of the nearest .touml directory without
// creating one.
func openExistingCache(start string) (*cache.Cache, error) {
	dir, err := config.FindConfigDir(start)
	if err != nil {
		return nil, errors.New("no .touml directory found; run with --cache to create a cache")
	}
	if _, err := os.Stat(filepath.Join(dir, cache.DBFileName)); err != nil {
		return nil, fmt.Errorf("no cache in %s; run with --cache to create one", dir)
	}
	return cache.Open(dir, 0)
}
