package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/canopyviz/canopy/pkg/grid"
	"github.com/canopyviz/canopy/pkg/httputil"
	"github.com/canopyviz/canopy/pkg/pipeline"
	"github.com/canopyviz/canopy/pkg/render"
)

// inspectCommand prints what an input holds and how a default-size frame of
// it would be planned.
func (c *CLI) inspectCommand() *cobra.Command {
	var flags treeFlags

	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Show buffer statistics for a tree, snapshot or graph document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := c.layoutOptions(args[0])
			flags.apply(cmd, &opts)

			runner, err := c.newRunner(ctx, flags.noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			res, err := runner.Load(ctx, opts)
			if err != nil {
				return err
			}
			b := res.Buffers

			format := "url"
			if !httputil.IsURL(args[0]) {
				f, err := pipeline.Detect(args[0])
				if err != nil {
					return err
				}
				format = string(f)
			}

			labelled := 0
			for i := range b.NodeCount() {
				if b.HasLabel(i) {
					labelled++
				}
			}

			fmt.Println(StyleTitle.Render(args[0]))
			printKeyValue("format", format)
			printKeyValue("points", strconv.Itoa(b.NodeCount()))
			printKeyValue("links", strconv.Itoa(b.LinkCount()))
			printKeyValue("labels", strconv.Itoa(labelled))
			if minX, minY, maxX, maxY, ok := b.Bounds(); ok {
				printKeyValue("bounds", fmt.Sprintf("[%.1f, %.1f] x [%.1f, %.1f]", minX, maxX, minY, maxY))
			}
			if res.Stats.NodeCount > 0 {
				printKeyValue("tree nodes", strconv.Itoa(res.Stats.NodeCount))
				printKeyValue("depth", strconv.Itoa(res.Stats.Depth))
			}
			if res.InputHash != "" {
				printKeyValue("cached", strconv.FormatBool(res.CacheInfo.SnapshotHit))
			}

			g := grid.Build(b, c.Config.Render.TargetCells)
			vp := render.Viewport{Width: float64(c.Config.Render.Width), Height: float64(c.Config.Render.Height)}
			plan := render.NewPlan(g, render.Fit(g.Bounds, vp, fitMargin), vp, c.Config.Budget())
			printKeyValue("grid", fmt.Sprintf("%d x %d", g.Rows, g.Cols))
			printKeyValue("frame", describePlan(plan))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
