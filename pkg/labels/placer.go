// Package labels picks which point labels to draw in a frame.
//
// Placement is bounded by the pool size, not the dataset: each visible cell
// contributes its first few labelled points (cells are size-sorted, so these
// are its largest), the pool is re-sorted by size, and candidates are
// accepted greedily into a coarse screen-space occupancy grid.
package labels

import (
	"cmp"
	"math"
	"slices"

	"github.com/canopyviz/canopy/pkg/grid"
	"github.com/canopyviz/canopy/pkg/render"
	"github.com/canopyviz/canopy/pkg/soa"
)

// Defaults for Options.
const (
	DefaultPoolSize   = 2000
	DefaultMaxLabels  = 300
	DefaultCellWidth  = 120
	DefaultCellHeight = 20
	DefaultMargin     = 20
)

// Options bounds label placement.
type Options struct {
	PoolSize   int
	MaxLabels  int
	CellWidth  float64
	CellHeight float64
	// Margin is how far off screen a point may be and still be labelled.
	Margin float64
}

// DefaultOptions returns the default placement bounds.
func DefaultOptions() Options {
	return Options{
		PoolSize:   DefaultPoolSize,
		MaxLabels:  DefaultMaxLabels,
		CellWidth:  DefaultCellWidth,
		CellHeight: DefaultCellHeight,
		Margin:     DefaultMargin,
	}
}

// Label is one placed label in screen pixels.
type Label struct {
	Index uint32
	X, Y  float64
	Text  string
}

// Placer selects labels. It keeps scratch buffers between frames and is not
// safe for concurrent use.
type Placer struct {
	opts     Options
	pool     []uint32
	occupied map[[2]int]struct{}
}

// NewPlacer returns a Placer; zero fields of opts take their defaults.
func NewPlacer(opts Options) *Placer {
	def := DefaultOptions()
	if opts.PoolSize <= 0 {
		opts.PoolSize = def.PoolSize
	}
	if opts.MaxLabels <= 0 {
		opts.MaxLabels = def.MaxLabels
	}
	if opts.CellWidth <= 0 {
		opts.CellWidth = def.CellWidth
	}
	if opts.CellHeight <= 0 {
		opts.CellHeight = def.CellHeight
	}
	if opts.Margin < 0 {
		opts.Margin = 0
	}
	return &Placer{opts: opts, occupied: make(map[[2]int]struct{})}
}

// Place returns the labels to draw for plan, largest points first. Only
// points that the plan draws (the first ceil(count*ratio) of a cell) are
// candidates.
func (p *Placer) Place(g *grid.Grid, b *soa.Buffers, plan *render.Plan, t render.Transform, vp render.Viewport) []Label {
	if g == nil || plan == nil || len(plan.Cells) == 0 || b.Labels == nil {
		return nil
	}

	perCell := int(math.Ceil(float64(p.opts.PoolSize) / float64(len(plan.Cells))))
	p.pool = p.pool[:0]
	for _, c := range plan.Cells {
		pts := g.Points(c)
		drawn := min(len(pts), int(math.Ceil(float64(len(pts))*plan.LODRatio)))
		taken := 0
		for _, i := range pts[:drawn] {
			if taken == perCell {
				break
			}
			if b.HasLabel(int(i)) {
				p.pool = append(p.pool, i)
				taken++
			}
		}
	}
	slices.SortStableFunc(p.pool, func(a, c uint32) int { return cmp.Compare(b.Size[c], b.Size[a]) })

	clear(p.occupied)
	m := p.opts.Margin
	var out []Label
	for _, i := range p.pool {
		if len(out) == p.opts.MaxLabels {
			break
		}
		sx, sy := t.ToScreen(float64(b.X[i]), float64(b.Y[i]))
		if sx < -m || sy < -m || sx > vp.Width+m || sy > vp.Height+m {
			continue
		}
		key := [2]int{int(math.Floor(sx / p.opts.CellWidth)), int(math.Floor(sy / p.opts.CellHeight))}
		if _, taken := p.occupied[key]; taken {
			continue
		}
		p.occupied[key] = struct{}{}
		out = append(out, Label{Index: i, X: sx, Y: sy, Text: b.Label(int(i))})
	}
	return out
}
