package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/errors"
)

// boltFile is the database name of the bolt backend inside the cache dir.
const boltFile = "cache.db"

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the snapshot cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cachePruneCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached snapshot and result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.Config.Cache
			switch cfg.Backend {
			case cache.BackendNone:
				printInfo("Caching is disabled")
				return nil
			case cache.BackendRedis:
				return errors.New(errors.ErrCodeUnsupported, "clear a redis cache with its own tooling (keys are prefixed %q)", cfg.KeyPrefix)
			}

			if _, err := os.Stat(cfg.Dir); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}
			if cfg.Backend == cache.BackendBolt {
				if err := os.Remove(filepath.Join(cfg.Dir, boltFile)); err != nil && !os.IsNotExist(err) {
					return err
				}
			} else {
				fc, err := cache.NewFileCache(cfg.Dir)
				if err != nil {
					return err
				}
				if err := fc.Clear(); err != nil {
					return err
				}
			}

			printSuccess("Cleared %s cache", cfg.Backend)
			printDetail("Directory: %s", cfg.Dir)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache location",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.Config.Cache
			switch cfg.Backend {
			case cache.BackendBolt:
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(cfg.Dir, boltFile))
			case cache.BackendRedis:
				fmt.Fprintln(cmd.OutOrStdout(), "redis://"+cfg.RedisAddr)
			default:
				fmt.Fprintln(cmd.OutOrStdout(), cfg.Dir)
			}
			return nil
		},
	}
}

// cachePruneCommand creates the "cache prune" subcommand.
func (c *CLI) cachePruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.pruneCache(cmd.Context())
			if err != nil {
				return err
			}
			printSuccess("Pruned %d expired entries", n)
			return nil
		},
	}
}

func (c *CLI) pruneCache(ctx context.Context) (int, error) {
	cfg := c.Config.Cache
	var (
		p   cache.Pruner
		err error
	)
	switch cfg.Backend {
	case cache.BackendNone, cache.BackendRedis:
		return 0, nil
	case cache.BackendBolt:
		var bc *cache.BoltCache
		bc, err = cache.NewBoltCache(filepath.Join(cfg.Dir, boltFile))
		if err == nil {
			defer bc.Close()
		}
		p = bc
	default:
		p, err = cache.NewFileCache(cfg.Dir)
	}
	if err != nil {
		return 0, err
	}
	return p.Prune(ctx)
}
