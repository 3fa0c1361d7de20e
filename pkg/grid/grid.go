// Package grid builds the spatial index the renderer and label placer use to
// find visible points quickly.
//
// The bounding box of all points is split into roughly TargetCells square-ish
// cells. Point indices are bucket-sorted by cell into one permutation array,
// so each cell owns a contiguous range, and each range is ordered by
// descending point size: the first k entries of a cell are always its k most
// prominent points. Edges are bucketed by the cell of their source point and
// every cell also tracks the bounding box of its edges, so an edge can be
// found visible while its owning cell is off screen.
//
// A Grid is built once per point set and never updated.
package grid

import (
	"cmp"
	"math"
	"slices"

	"github.com/canopyviz/canopy/pkg/soa"
)

// DefaultTargetCells is the cell count aimed for when none is given.
const DefaultTargetCells = 4096

// padding is added around the point bounding box on every side.
const padding = 1.0

// Rect is an axis-aligned rectangle in world units.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Intersects reports whether r and o overlap (touching counts).
func (r Rect) Intersects(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX && r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

// Contains reports whether (x, y) lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Cell is one grid bucket. Its points are Order[Start:Start+Count] and its
// edges EdgeOrder[EdgeStart:EdgeStart+EdgeCount].
type Cell struct {
	Bounds Rect
	Start  uint32
	Count  uint32

	EdgeStart  uint32
	EdgeCount  uint32
	EdgeBounds Rect // valid only when EdgeCount > 0
}

// Grid is the built index.
type Grid struct {
	Bounds     Rect
	Rows, Cols int
	CellW      float64
	CellH      float64
	Cells      []Cell
	// Order is a permutation of point indices grouped by cell.
	Order []uint32
	// EdgeOrder is a permutation of link indices grouped by source cell.
	EdgeOrder []uint32
}

// Build indexes b into about targetCells cells. targetCells <= 0 selects
// DefaultTargetCells. Empty input yields a single empty cell.
func Build(b *soa.Buffers, targetCells int) *Grid {
	if targetCells <= 0 {
		targetCells = DefaultTargetCells
	}
	g := &Grid{}
	g.setBounds(b)
	g.Rows, g.Cols = dimensions(g.Bounds.Width(), g.Bounds.Height(), targetCells)
	g.CellW = g.Bounds.Width() / float64(g.Cols)
	g.CellH = g.Bounds.Height() / float64(g.Rows)

	g.Cells = make([]Cell, g.Rows*g.Cols)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			g.Cells[row*g.Cols+col].Bounds = Rect{
				MinX: g.Bounds.MinX + float64(col)*g.CellW,
				MinY: g.Bounds.MinY + float64(row)*g.CellH,
				MaxX: g.Bounds.MinX + float64(col+1)*g.CellW,
				MaxY: g.Bounds.MinY + float64(row+1)*g.CellH,
			}
		}
	}

	g.bucketPoints(b)
	g.bucketEdges(b)
	return g
}

// setBounds covers the finite points only; a stray infinite coordinate
// must not stretch every cell.
func (g *Grid) setBounds(b *soa.Buffers) {
	minX, minY, maxX, maxY, ok := b.Bounds()
	if !ok {
		g.Bounds = Rect{0, 0, 1, 1}
		return
	}
	r := Rect{minX - padding, minY - padding, maxX + padding, maxY + padding}
	if r.Width() < 1 {
		r.MaxX = r.MinX + 1
	}
	if r.Height() < 1 {
		r.MaxY = r.MinY + 1
	}
	g.Bounds = r
}

// dimensions picks rows and cols with rows*cols close to target and cells
// close to square for a w x h box.
func dimensions(w, h float64, target int) (rows, cols int) {
	aspect := w / h
	cols = int(math.Round(math.Sqrt(float64(target) * aspect)))
	cols = max(1, min(target, cols))
	rows = int(math.Round(float64(target) / float64(cols)))
	rows = max(1, min(target, rows))
	return rows, cols
}

// CellOf returns the index of the cell containing (x, y), clamping points
// outside the bounds to the nearest edge cell.
func (g *Grid) CellOf(x, y float64) int {
	col := clampIndex((x-g.Bounds.MinX)/g.CellW, g.Cols)
	row := clampIndex((y-g.Bounds.MinY)/g.CellH, g.Rows)
	return row*g.Cols + col
}

// clampIndex maps f into [0, n) before the int conversion, which is
// undefined for infinities. NaN maps to 0.
func clampIndex(f float64, n int) int {
	switch {
	case !(f > 0):
		return 0
	case f >= float64(n):
		return n - 1
	}
	return int(f)
}

// Points returns the point indices of cell c, largest first.
func (g *Grid) Points(c int) []uint32 {
	cell := &g.Cells[c]
	return g.Order[cell.Start : cell.Start+cell.Count]
}

// Edges returns the link indices owned by cell c.
func (g *Grid) Edges(c int) []uint32 {
	cell := &g.Cells[c]
	return g.EdgeOrder[cell.EdgeStart : cell.EdgeStart+cell.EdgeCount]
}

// bucketPoints is a two-pass counting sort by cell followed by a stable sort
// by descending size inside every cell.
func (g *Grid) bucketPoints(b *soa.Buffers) {
	n := b.NodeCount()
	cellOf := make([]uint32, n)
	for i := 0; i < n; i++ {
		c := g.CellOf(float64(b.X[i]), float64(b.Y[i]))
		cellOf[i] = uint32(c)
		g.Cells[c].Count++
	}
	var start uint32
	for c := range g.Cells {
		g.Cells[c].Start = start
		start += g.Cells[c].Count
	}

	g.Order = make([]uint32, n)
	next := make([]uint32, len(g.Cells))
	for c := range g.Cells {
		next[c] = g.Cells[c].Start
	}
	for i := 0; i < n; i++ {
		c := cellOf[i]
		g.Order[next[c]] = uint32(i)
		next[c]++
	}

	bySizeDesc := func(a, c uint32) int { return cmp.Compare(b.Size[c], b.Size[a]) }
	for c := range g.Cells {
		if g.Cells[c].Count > 1 {
			slices.SortStableFunc(g.Points(c), bySizeDesc)
		}
	}
}

func (g *Grid) bucketEdges(b *soa.Buffers) {
	m := b.LinkCount()
	owner := make([]uint32, m)
	for j := 0; j < m; j++ {
		s := b.LinkSrc[j]
		c := g.CellOf(float64(b.X[s]), float64(b.Y[s]))
		owner[j] = uint32(c)

		t := b.LinkTgt[j]
		box := Rect{
			MinX: float64(min(b.X[s], b.X[t])), MinY: float64(min(b.Y[s], b.Y[t])),
			MaxX: float64(max(b.X[s], b.X[t])), MaxY: float64(max(b.Y[s], b.Y[t])),
		}
		cell := &g.Cells[c]
		if cell.EdgeCount == 0 {
			cell.EdgeBounds = box
		} else {
			cell.EdgeBounds = Rect{
				MinX: min(cell.EdgeBounds.MinX, box.MinX), MinY: min(cell.EdgeBounds.MinY, box.MinY),
				MaxX: max(cell.EdgeBounds.MaxX, box.MaxX), MaxY: max(cell.EdgeBounds.MaxY, box.MaxY),
			}
		}
		cell.EdgeCount++
	}

	var start uint32
	for c := range g.Cells {
		g.Cells[c].EdgeStart = start
		start += g.Cells[c].EdgeCount
	}
	g.EdgeOrder = make([]uint32, m)
	next := make([]uint32, len(g.Cells))
	for c := range g.Cells {
		next[c] = g.Cells[c].EdgeStart
	}
	for j := 0; j < m; j++ {
		c := owner[j]
		g.EdgeOrder[next[c]] = uint32(j)
		next[c]++
	}
}
