package render

import (
	"math"

	"github.com/canopyviz/canopy/pkg/grid"
)

// Frame-budget defaults.
const (
	DefaultVertexBudget  = 1_000_000
	DefaultEdgeThreshold = 3_000_000
)

// Budget bounds the work of one frame.
type Budget struct {
	// VertexBudget is the number of points drawn at most (plus per-cell
	// rounding).
	VertexBudget int
	// EdgeThreshold disables edge drawing once the visible cells hold this
	// many points or more.
	EdgeThreshold int
}

// DefaultBudget returns the default frame budget.
func DefaultBudget() Budget {
	return Budget{VertexBudget: DefaultVertexBudget, EdgeThreshold: DefaultEdgeThreshold}
}

// DrawRange is one draw call into the cell-sorted buffers.
type DrawRange struct {
	Cell  int
	Start int
	Count int
}

// Plan is the set of draw calls for one frame.
type Plan struct {
	Visible grid.Rect
	// Cells are the visible node cells, in grid order.
	Cells []int
	// LinkCells are the cells whose edges may be visible.
	LinkCells       []int
	PotentialPoints int
	LODRatio        float64
	DrawEdges       bool

	Points []DrawRange
	Links  []DrawRange
}

// DrawnPoints sums the point draw counts.
func (p *Plan) DrawnPoints() int {
	n := 0
	for _, d := range p.Points {
		n += d.Count
	}
	return n
}

// DrawnLinks sums the link draw counts.
func (p *Plan) DrawnLinks() int {
	n := 0
	for _, d := range p.Links {
		n += d.Count
	}
	return n
}

// NewPlan computes the draw calls for the view t over vp.
func NewPlan(g *grid.Grid, t Transform, vp Viewport, budget Budget) *Plan {
	p := &Plan{Visible: VisibleRect(t, vp), LODRatio: 1}
	if g == nil {
		return p
	}

	for c := range g.Cells {
		cell := &g.Cells[c]
		nodeVisible := cell.Bounds.Intersects(p.Visible)
		if nodeVisible && cell.Count > 0 {
			p.Cells = append(p.Cells, c)
			p.PotentialPoints += int(cell.Count)
		}
		if cell.EdgeCount > 0 && (nodeVisible || cell.EdgeBounds.Intersects(p.Visible)) {
			p.LinkCells = append(p.LinkCells, c)
		}
	}

	if p.PotentialPoints > 0 && budget.VertexBudget > 0 {
		p.LODRatio = min(1, float64(budget.VertexBudget)/float64(p.PotentialPoints))
	}
	p.DrawEdges = p.PotentialPoints < budget.EdgeThreshold

	p.Points = make([]DrawRange, 0, len(p.Cells))
	for _, c := range p.Cells {
		cell := &g.Cells[c]
		n := min(int(cell.Count), int(math.Ceil(float64(cell.Count)*p.LODRatio)))
		if n > 0 {
			p.Points = append(p.Points, DrawRange{Cell: c, Start: int(cell.Start), Count: n})
		}
	}
	if p.DrawEdges {
		p.Links = make([]DrawRange, 0, len(p.LinkCells))
		for _, c := range p.LinkCells {
			cell := &g.Cells[c]
			p.Links = append(p.Links, DrawRange{Cell: c, Start: int(cell.EdgeStart), Count: int(cell.EdgeCount)})
		}
	}
	return p
}
