package labels

import (
	"fmt"
	"testing"

	"github.com/canopyviz/canopy/pkg/grid"
	"github.com/canopyviz/canopy/pkg/render"
	"github.com/canopyviz/canopy/pkg/soa"
)

var screen = render.Viewport{Width: 2000, Height: 2000}

func setup(points []soa.Point, cells int) (*grid.Grid, *soa.Buffers, *render.Plan) {
	bl := soa.NewBuilder(len(points), 0)
	for _, p := range points {
		bl.AddPoint(p)
	}
	b := bl.Build()
	g := grid.Build(b, cells)
	plan := render.NewPlan(g, render.Identity(), screen, render.DefaultBudget())
	return g, b, plan
}

func diagonal(n int) []soa.Point {
	pts := make([]soa.Point, n)
	for i := range pts {
		pts[i] = soa.Point{
			X:     float32(10 + 130*i),
			Y:     float32(10 + 25*i),
			Size:  float32(1 + i%7),
			Label: fmt.Sprintf("taxon %d", i),
		}
	}
	return pts
}

func TestPlaceSkipsOccupiedCells(t *testing.T) {
	g, b, plan := setup([]soa.Point{
		{X: 100, Y: 100, Size: 2, Label: "small"},
		{X: 105, Y: 102, Size: 9, Label: "big"},
		{X: 600, Y: 100, Size: 1, Label: "far"},
	}, 1)
	got := NewPlacer(DefaultOptions()).Place(g, b, plan, render.Identity(), screen)
	if len(got) != 2 || got[0].Text != "big" || got[1].Text != "far" {
		t.Fatalf("labels = %+v", got)
	}
}

func TestPlaceCapsAndOrdersBySize(t *testing.T) {
	g, b, plan := setup(diagonal(14), 4)
	got := NewPlacer(Options{MaxLabels: 5}).Place(g, b, plan, render.Identity(), screen)
	if len(got) != 5 {
		t.Fatalf("placed %d labels, want 5", len(got))
	}
	for k := 1; k < len(got); k++ {
		if b.Size[got[k].Index] > b.Size[got[k-1].Index] {
			t.Errorf("labels not in size order at %d", k)
		}
	}
	if b.Size[got[0].Index] != 7 {
		t.Errorf("first label size = %v, want 7", b.Size[got[0].Index])
	}
}

func TestPlaceSkipsUnlabelledAndOffscreen(t *testing.T) {
	g, b, plan := setup([]soa.Point{
		{X: 100, Y: 100, Size: 9},
		{X: 300, Y: 300, Size: 1, Label: "visible"},
		{X: 1900, Y: 1900, Size: 5, Label: "edge"},
	}, 1)
	// Pan so the third point is well off screen.
	tr := render.Transform{X: 0, Y: 0, K: 1}
	small := render.Viewport{Width: 500, Height: 500}
	got := NewPlacer(DefaultOptions()).Place(g, b, plan, tr, small)
	if len(got) != 1 || got[0].Text != "visible" {
		t.Fatalf("labels = %+v", got)
	}
}

func TestPlacePoolIsBounded(t *testing.T) {
	g, b, plan := setup(diagonal(14), 1)
	p := NewPlacer(Options{PoolSize: 3})
	got := p.Place(g, b, plan, render.Identity(), screen)
	if len(got) != 3 {
		t.Errorf("placed %d labels from a pool of 3", len(got))
	}
}

func TestPlaceWithoutLabels(t *testing.T) {
	g, b, plan := setup([]soa.Point{{X: 1, Y: 1, Size: 1}}, 1)
	if got := NewPlacer(DefaultOptions()).Place(g, b, plan, render.Identity(), screen); got != nil {
		t.Errorf("labels = %+v, want none", got)
	}
}
