package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/buildinfo"
	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/config"
	"github.com/canopyviz/canopy/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "canopy"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	// Config is loaded before any subcommand runs.
	Config config.Config

	configPath string
	verbose    bool
}

// New creates a new CLI instance with a default logger and the built-in
// configuration.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Canopy lays out and renders very large phylogenetic trees",
		Long: `Canopy turns Newick trees with millions of tips into flat point and
link buffers, caches them as GTOL snapshots, and renders them with a
level-of-detail budget. It also serves the same pipeline over HTTP.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (TOML or YAML); default: canopy.toml or the user config dir")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner opens the configured cache and returns a runner on it. With
// noCache the runner never reads or writes entries.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	if noCache {
		return pipeline.NewRunner(cache.NewNullCache(), nil, c.Logger), nil
	}
	cc, keyer, err := c.Config.OpenCache(ctx)
	if err != nil {
		return nil, err
	}
	r := pipeline.NewRunner(cc, keyer, c.Logger)
	r.TTL = c.Config.Cache.TTL
	return r, nil
}

// layoutOptions returns pipeline options for input with the configured
// geometry.
func (c *CLI) layoutOptions(input string) pipeline.Options {
	l := c.Config.Layout
	return pipeline.Options{
		Input:    input,
		LeafStep: l.LeafStep,
		Visual:   c.Config.VisualOptions(),
		Polar:    l.Polar,
		Strict:   l.Strict,
		Logger:   c.Logger,
	}
}
