package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/httputil"
	"github.com/canopyviz/canopy/pkg/newick"
	"github.com/canopyviz/canopy/pkg/render/nodelink"
)

// Export formats.
const (
	formatDOT = "dot"
	formatSVG = "svg"
	formatPNG = "png"
)

// exportCommand writes a small tree as a Graphviz node-link diagram.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		output        string
		format        string
		branchLengths bool
		maxNodes      int
		strict        bool
	)

	cmd := &cobra.Command{
		Use:   "export <tree.nwk | url>",
		Short: "Export a small tree as a Graphviz diagram (dot, svg, png)",
		Long: `Export a Newick tree as a node-link diagram laid out by Graphviz.

This is meant for subtrees of a few thousand nodes; use 'render' for
large trees. The format defaults to the extension of --output, else svg.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(output), ".")
			}
			if format == "" {
				format = formatSVG
			}
			if err := validateExportFormat(format); err != nil {
				return err
			}
			if output == "" {
				output = defaultOutput(args[0], "."+format)
			}
			if !cmd.Flags().Changed("strict") {
				strict = c.Config.Layout.Strict
			}
			opts := nodelink.Options{BranchLengths: branchLengths, MaxNodes: maxNodes}
			return c.runExport(cmd.Context(), args[0], output, format, strict, opts)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.<format>)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: dot, svg, png")
	cmd.Flags().BoolVar(&branchLengths, "branch-lengths", false, "label edges with branch lengths")
	cmd.Flags().IntVar(&maxNodes, "max-nodes", nodelink.DefaultMaxNodes, "refuse trees with more nodes")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject unbalanced parentheses (default from config)")
	return cmd
}

func validateExportFormat(f string) error {
	switch f {
	case formatDOT, formatSVG, formatPNG:
		return nil
	}
	return errors.New(errors.ErrCodeInvalidInput, "invalid format: %s (must be 'dot', 'svg' or 'png')", f)
}

func (c *CLI) runExport(ctx context.Context, input, output, format string, strict bool, opts nodelink.Options) error {
	text, err := c.readNewick(ctx, input)
	if err != nil {
		return err
	}
	var popts []newick.Option
	if strict {
		popts = append(popts, newick.Strict())
	}
	tree, err := newick.Parse(text, popts...)
	if err != nil {
		return err
	}

	dot, err := nodelink.ToDOT(tree, opts)
	if err != nil {
		return err
	}
	var data []byte
	switch format {
	case formatDOT:
		data = []byte(dot)
	case formatSVG:
		data, err = nodelink.RenderSVG(ctx, dot)
	case formatPNG:
		data, err = nodelink.RenderPNG(ctx, dot)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %s", output)
	}

	printSuccess("Exported %d nodes", tree.Len())
	printFile(output)
	return nil
}

// readNewick returns the first tree of a file, URL or literal text.
func (c *CLI) readNewick(ctx context.Context, input string) (string, error) {
	if !httputil.IsURL(input) {
		return newick.ReadInput(input)
	}
	data, _, err := httputil.NewFetcher(cache.NewNullCache(), c.Logger).Fetch(ctx, input)
	if err != nil {
		return "", err
	}
	return newick.FirstTree(string(data))
}
