package grid

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/canopyviz/canopy/pkg/soa"
)

func randomBuffers(n, links int, seed uint64) *soa.Buffers {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	b := soa.NewBuilder(n, 0)
	for i := 0; i < n; i++ {
		b.AddPoint(soa.Point{
			X:    float32(rng.Float64()*4000 - 1000),
			Y:    float32(rng.Float64() * 900),
			Size: float32(rng.IntN(5) + 1),
		})
	}
	for j := 0; j < links && n > 0; j++ {
		b.AddLink(uint32(rng.IntN(n)), uint32(rng.IntN(n)))
	}
	return b.Build()
}

func TestBuildCoversEveryPointOnce(t *testing.T) {
	b := randomBuffers(5000, 3000, 1)
	g := Build(b, 256)

	if len(g.Cells) != g.Rows*g.Cols {
		t.Fatalf("cells = %d, rows*cols = %d", len(g.Cells), g.Rows*g.Cols)
	}
	seen := make([]bool, b.NodeCount())
	for c := range g.Cells {
		for _, i := range g.Points(c) {
			if seen[i] {
				t.Fatalf("point %d appears twice", i)
			}
			seen[i] = true
			if !g.Cells[c].Bounds.Contains(float64(b.X[i]), float64(b.Y[i])) {
				t.Errorf("point %d (%v,%v) outside cell %d %+v", i, b.X[i], b.Y[i], c, g.Cells[c].Bounds)
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			t.Fatalf("point %d missing", i)
		}
	}
}

func TestBuildSortsCellsBySizeDescending(t *testing.T) {
	b := randomBuffers(4000, 0, 2)
	g := Build(b, 64)
	for c := range g.Cells {
		pts := g.Points(c)
		for k := 1; k < len(pts); k++ {
			if b.Size[pts[k]] > b.Size[pts[k-1]] {
				t.Fatalf("cell %d not sorted at %d: %v > %v", c, k, b.Size[pts[k]], b.Size[pts[k-1]])
			}
			if b.Size[pts[k]] == b.Size[pts[k-1]] && pts[k] < pts[k-1] {
				t.Fatalf("cell %d not stable at %d", c, k)
			}
		}
	}
}

func TestBuildBucketsEdgesBySource(t *testing.T) {
	b := randomBuffers(2000, 2500, 3)
	g := Build(b, 128)
	seen := make([]bool, b.LinkCount())
	for c := range g.Cells {
		cell := g.Cells[c]
		for _, j := range g.Edges(c) {
			if seen[j] {
				t.Fatalf("edge %d appears twice", j)
			}
			seen[j] = true
			s, tg := b.LinkSrc[j], b.LinkTgt[j]
			if got := g.CellOf(float64(b.X[s]), float64(b.Y[s])); got != c {
				t.Errorf("edge %d owned by %d, source cell %d", j, c, got)
			}
			for _, p := range []uint32{s, tg} {
				if !cell.EdgeBounds.Contains(float64(b.X[p]), float64(b.Y[p])) {
					t.Errorf("edge %d endpoint %d outside edge bounds of cell %d", j, p, c)
				}
			}
		}
	}
	for j, ok := range seen {
		if !ok {
			t.Fatalf("edge %d missing", j)
		}
	}
}

func TestBuildDimensionsFollowAspect(t *testing.T) {
	b := soa.NewBuilder(0, 0)
	b.AddPoint(soa.Point{X: 0, Y: 0, Size: 1})
	b.AddPoint(soa.Point{X: 998, Y: 98, Size: 1})
	g := Build(b.Build(), 1000)
	if g.Cols <= g.Rows {
		t.Errorf("wide box got %dx%d (rows x cols)", g.Rows, g.Cols)
	}
	total := g.Rows * g.Cols
	if total < 800 || total > 1200 {
		t.Errorf("rows*cols = %d, want about 1000", total)
	}
}

func TestBuildDegenerateInputs(t *testing.T) {
	empty := Build(&soa.Buffers{}, 0)
	if len(empty.Cells) != 1 || len(empty.Order) != 0 || len(empty.EdgeOrder) != 0 {
		t.Errorf("empty grid = %d cells, %d points", len(empty.Cells), len(empty.Order))
	}

	b := soa.NewBuilder(0, 0)
	for range 10 {
		b.AddPoint(soa.Point{X: 5, Y: 5, Size: 1})
	}
	b.AddLink(0, 1)
	same := Build(b.Build(), 16)
	if same.CellW <= 0 || same.CellH <= 0 {
		t.Fatalf("cell size %v x %v", same.CellW, same.CellH)
	}
	c := same.CellOf(5, 5)
	if len(same.Points(c)) != 10 || len(same.Edges(c)) != 1 {
		t.Errorf("coincident points spread: %d points, %d edges in cell %d", len(same.Points(c)), len(same.Edges(c)), c)
	}
}

func TestBuildIgnoresInfiniteCoordinates(t *testing.T) {
	bl := soa.NewBuilder(0, 0)
	for _, xy := range [][2]float32{{0, 0}, {10, 10}, {20, 20}} {
		bl.AddPoint(soa.Point{X: xy[0], Y: xy[1], Size: 1})
	}
	bl.AddPoint(soa.Point{X: float32(math.Inf(1)), Y: 5, Size: 1})
	bl.AddPoint(soa.Point{X: float32(math.NaN()), Y: float32(math.NaN()), Size: 1})
	g := Build(bl.Build(), 16)

	if math.IsInf(g.Bounds.MaxX, 0) || math.IsInf(g.CellW, 0) || g.Bounds.MaxX > 30 {
		t.Fatalf("bounds = %+v, cellW = %v", g.Bounds, g.CellW)
	}
	if g.Cols < 2 || g.Rows < 2 {
		t.Errorf("grid %dx%d collapsed", g.Rows, g.Cols)
	}
	if len(g.Order) != 5 {
		t.Errorf("%d points indexed, want 5", len(g.Order))
	}
	if c := g.CellOf(0, 0); len(g.Points(c)) == 0 {
		t.Errorf("finite point at origin missing from cell %d", c)
	}
	if got := g.CellOf(math.NaN(), math.NaN()); got != 0 {
		t.Errorf("CellOf(NaN) = %d, want 0", got)
	}
	if got := g.CellOf(math.Inf(1), 0); got != g.Cols-1 {
		t.Errorf("CellOf(+Inf, 0) = %d, want %d", got, g.Cols-1)
	}
}

func TestCellOfClamps(t *testing.T) {
	g := Build(randomBuffers(100, 0, 4), 16)
	last := len(g.Cells) - 1
	if got := g.CellOf(-1e12, -1e12); got != 0 {
		t.Errorf("CellOf(far low) = %d, want 0", got)
	}
	if got := g.CellOf(1e12, 1e12); got != last {
		t.Errorf("CellOf(far high) = %d, want %d", got, last)
	}
}

func TestRectIntersects(t *testing.T) {
	a := Rect{0, 0, 10, 10}
	tests := []struct {
		o    Rect
		want bool
	}{
		{Rect{5, 5, 15, 15}, true},
		{Rect{10, 10, 20, 20}, true},
		{Rect{11, 0, 20, 10}, false},
		{Rect{-5, -5, -1, 20}, false},
		{Rect{2, 2, 3, 3}, true},
	}
	for _, tt := range tests {
		if got := a.Intersects(tt.o); got != tt.want {
			t.Errorf("Intersects(%+v) = %v, want %v", tt.o, got, tt.want)
		}
	}
}
