package cli

import (
	"bufio"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/grid"
	"github.com/canopyviz/canopy/pkg/labels"
	"github.com/canopyviz/canopy/pkg/pipeline"
	"github.com/canopyviz/canopy/pkg/render"
	"github.com/canopyviz/canopy/pkg/render/raster"
	"github.com/canopyviz/canopy/pkg/soa"
)

const (
	// fitMargin is the screen margin around the tree when fitting the view.
	fitMargin = 20
	// labelOffset moves label text right of its point.
	labelOffset = 6
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string
	width    int
	height   int
	zoom     float64 // zoom factor around the image centre after fitting
	size     float64 // point size multiplier
	noLabels bool
}

// renderCommand creates the render command, which draws one LOD frame to PNG.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		opts  renderOpts
		flags treeFlags
	)

	cmd := &cobra.Command{
		Use:   "render <input>",
		Short: "Render a tree to PNG",
		Long: `Render a Newick tree, GTOL snapshot or graph document to PNG.

The frame is drawn by the same level-of-detail planner an interactive
viewer uses: when the visible points exceed the vertex budget each cell
draws only its largest points, and edges are dropped above the edge
threshold. Labels are placed greedily, largest points first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			popts := c.layoutOptions(args[0])
			flags.apply(cmd, &popts)
			if opts.width <= 0 {
				opts.width = c.Config.Render.Width
			}
			if opts.height <= 0 {
				opts.height = c.Config.Render.Height
			}
			if opts.size <= 0 {
				opts.size = c.Config.Render.SizeMultiplier
			}
			if opts.zoom <= 0 {
				return errors.New(errors.ErrCodeInvalidInput, "zoom must be positive, got %v", opts.zoom)
			}
			if opts.output == "" {
				opts.output = defaultOutput(args[0], ".png")
			}
			return c.runRender(cmd.Context(), popts, opts, flags.noCache)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <input>.png)")
	cmd.Flags().IntVar(&opts.width, "width", 0, "image width in pixels (default from config)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "image height in pixels (default from config)")
	cmd.Flags().Float64Var(&opts.zoom, "zoom", 1, "zoom factor around the centre of the fitted view")
	cmd.Flags().Float64Var(&opts.size, "size", 0, "point size multiplier (default from config)")
	cmd.Flags().BoolVar(&opts.noLabels, "no-labels", false, "do not draw labels")
	flags.register(cmd)
	return cmd
}

func (c *CLI) runRender(ctx context.Context, popts pipeline.Options, opts renderOpts, noCache bool) error {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Loading")
	popts.Progress = spinner.Progress()
	spinner.Start()
	res, err := runner.Load(ctx, popts)
	if err != nil {
		spinner.StopWithError("Load failed")
		return err
	}
	spinner.Stop()

	t := newTimer(c.Logger)
	plan, err := c.drawPNG(ctx, res.Buffers, opts)
	if err != nil {
		return err
	}
	t.done("Rendered " + opts.output)

	printSuccess("Render complete")
	printFile(opts.output)
	printStats(res.Stats.PointCount, res.Stats.LinkCount, res.CacheInfo.SnapshotHit)
	printDetail("drew %d of %d visible points (lod %.2f), %d links",
		plan.DrawnPoints(), plan.PotentialPoints, plan.LODRatio, plan.DrawnLinks())
	return nil
}

// drawPNG fits b into the image, draws one frame with labels and writes it
// to opts.output.
func (c *CLI) drawPNG(ctx context.Context, b *soa.Buffers, opts renderOpts) (*render.Plan, error) {
	g := grid.Build(b, c.Config.Render.TargetCells)

	backend := raster.New(opts.width, opts.height, raster.WithFontSize(c.Config.Labels.FontSize))
	defer backend.Close()

	r, err := render.New(backend, render.WithLogger(c.Logger), render.WithBudget(c.Config.Budget()))
	if err != nil {
		return nil, err
	}
	if err := r.Load(b, g); err != nil {
		return nil, err
	}

	vp := render.Viewport{Width: float64(opts.width), Height: float64(opts.height)}
	tr := render.Fit(g.Bounds, vp, fitMargin)
	if opts.zoom != 1 {
		tr = tr.ZoomAt(opts.zoom, vp.Width/2, vp.Height/2)
	}
	r.Resize(vp)
	r.SetTransform(tr)

	plan, err := r.Frame(ctx, render.FrameConfig{SizeMultiplier: opts.size})
	if err != nil {
		return nil, err
	}

	if !opts.noLabels {
		placed := labels.NewPlacer(c.Config.LabelOptions()).Place(g, b, plan, tr, vp)
		for _, l := range placed {
			if err := backend.DrawText(l.Text, l.X+labelOffset, l.Y); err != nil {
				return nil, err
			}
		}
		c.Logger.Debug("placed labels", "count", len(placed))
	}

	err = writeFile(opts.output, func(w *bufio.Writer) error { return backend.EncodePNG(w) })
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "write %s", opts.output)
	}
	return plan, nil
}

// describePlan is the one-line frame summary used by inspect.
func describePlan(p *render.Plan) string {
	edges := "drawn"
	if !p.DrawEdges {
		edges = "skipped"
	}
	return fmt.Sprintf("%d cells, %d/%d points, lod %.3f, edges %s",
		len(p.Cells), p.DrawnPoints(), p.PotentialPoints, p.LODRatio, edges)
}
