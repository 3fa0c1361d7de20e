package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/pipeline"
	"github.com/canopyviz/canopy/pkg/stream"
)

// treeFlags are the parse and layout flags shared by commands that build
// buffers from Newick.
type treeFlags struct {
	noCache  bool
	refresh  bool
	polar    bool
	strict   bool
	limit    int
	leafStep float64
}

func (f *treeFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the snapshot cache")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "rebuild and overwrite cached entries")
	cmd.Flags().BoolVar(&f.polar, "polar", false, "use the radial layout (default from config)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "reject unbalanced parentheses (default from config)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "stop parsing after this many nodes (0 = no limit)")
	cmd.Flags().Float64Var(&f.leafStep, "leaf-step", 0, "vertical distance between leaves (default from config)")
}

// apply overlays flags the user set on opts.
func (f *treeFlags) apply(cmd *cobra.Command, opts *pipeline.Options) {
	if cmd.Flags().Changed("polar") {
		opts.Polar = f.polar
	}
	if cmd.Flags().Changed("strict") {
		opts.Strict = f.strict
	}
	if f.limit != 0 {
		opts.Limit = f.limit
	}
	if f.leafStep != 0 {
		opts.LeafStep = f.leafStep
	}
	opts.Refresh = f.refresh
}

// layoutCommand creates the layout command, which turns Newick into buffers.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output string
		flags  treeFlags
	)

	cmd := &cobra.Command{
		Use:   "layout <tree.nwk | url>",
		Short: "Lay out a Newick tree and write its buffers",
		Long: `Lay out a Newick tree and write its point and link buffers.

The output format follows the extension of --output:
  .gtol     binary snapshot (default)
  .json.gz  gzip graph document
  .json     plain graph document

Snapshots are cached, so laying out the same tree again is a file read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.layoutOptions(args[0])
			flags.apply(cmd, &opts)
			return c.runLayout(cmd.Context(), opts, output, flags.noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.gtol)")
	flags.register(cmd)
	return cmd
}

func (c *CLI) runLayout(ctx context.Context, opts pipeline.Options, output string, noCache bool) error {
	if output == "" {
		output = defaultOutput(opts.Input, ".gtol")
	}
	plain := strings.HasSuffix(output, ".json")
	opts.JSON = strings.HasSuffix(output, ".json.gz") || strings.HasSuffix(output, ".gz")

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Building layout")
	opts.Progress = spinner.Progress()
	spinner.Start()
	t := newTimer(c.Logger)
	res, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return err
	}
	spinner.Stop()

	switch {
	case opts.JSON:
		err = os.WriteFile(output, res.JSON, 0o644)
	case plain:
		err = writeFile(output, func(w *bufio.Writer) error {
			return stream.WriteJSON(w, res.Buffers, stream.WriteOptions{Plain: true})
		})
	default:
		err = os.WriteFile(output, res.Snapshot, 0o644)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", output)
	}
	t.done("Wrote " + output)

	printSuccess("Layout complete")
	printFile(output)
	printStats(res.Stats.PointCount, res.Stats.LinkCount, res.CacheInfo.SnapshotHit)
	printDetail("%d nodes, depth %d, built in %s", res.Stats.NodeCount, res.Stats.Depth, res.Stats.Total())
	printNextStep("Render", fmt.Sprintf("%s render %s", appName, output))
	return nil
}

// defaultOutput replaces the extension of input with ext, next to the input.
// Inputs that are not file names (literal text, URLs) map to "tree"+ext.
func defaultOutput(input, ext string) string {
	if strings.Contains(input, "://") || strings.ContainsAny(input, "(;") {
		return "tree" + ext
	}
	base := filepath.Base(input)
	for _, e := range []string{".gz", filepath.Ext(strings.TrimSuffix(base, ".gz"))} {
		base = strings.TrimSuffix(base, e)
	}
	return filepath.Join(filepath.Dir(input), base+ext)
}

// writeFile writes path through a buffered writer, removing it on failure.
func writeFile(path string, fn func(*bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	err = fn(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}
