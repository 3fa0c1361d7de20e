package layout

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/newick"
	"github.com/canopyviz/canopy/pkg/soa"
)

func mustParse(t *testing.T, text string) *newick.Tree {
	t.Helper()
	tree, err := newick.Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q): %v", text, err)
	}
	return tree
}

func TestComputeTinyTree(t *testing.T) {
	tree := mustParse(t, "(A:1,B:2)C:0;")
	c, err := Compute(context.Background(), tree, DefaultLeafStep, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// Node order from the parser: C=0, A=1, B=2.
	wantX := []float64{0, 1, 2}
	wantY := []float64{DefaultLeafStep / 2, 0, DefaultLeafStep}
	if !reflect.DeepEqual(c.X, wantX) {
		t.Errorf("X = %v, want %v", c.X, wantX)
	}
	if !reflect.DeepEqual(c.Y, wantY) {
		t.Errorf("Y = %v, want %v", c.Y, wantY)
	}
	if c.Leaves != 2 {
		t.Errorf("Leaves = %d, want 2", c.Leaves)
	}
}

func TestComputeSortsByMinimumLeafName(t *testing.T) {
	// The subtree holding "a" must come first even though it is written last.
	tree := mustParse(t, "((z,y)P,(x,a)Q)R;")
	c, err := Compute(context.Background(), tree, 10, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	byName := map[string]int{}
	for i, name := range tree.Names {
		byName[name] = i
	}
	order := []string{"a", "x", "y", "z"}
	for i, name := range order {
		if got := c.Y[byName[name]]; got != float64(i*10) {
			t.Errorf("y(%s) = %v, want %v", name, got, i*10)
		}
	}
	if c.Y[byName["Q"]] != 5 || c.Y[byName["P"]] != 25 || c.Y[byName["R"]] != 15 {
		t.Errorf("internal y = Q:%v P:%v R:%v", c.Y[byName["Q"]], c.Y[byName["P"]], c.Y[byName["R"]])
	}
}

func TestComputeClampsNegativeLengths(t *testing.T) {
	tree := mustParse(t, "(A:-5,(B:1)C:2)R;")
	c, err := Compute(context.Background(), tree, 1, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if c.X[1] != 0 {
		t.Errorf("x(A) = %v, want 0", c.X[1])
	}
	if c.X[3] != 3 {
		t.Errorf("x(B) = %v, want 3", c.X[3])
	}
	if tree.BranchLengths[1] != -5 {
		t.Error("Compute modified the tree")
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("(")
	for i := 0; i < 300; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(t")
		sb.WriteString(strings.Repeat("x", i%7))
		sb.WriteString(":0.5,:1.25)")
	}
	sb.WriteString(");")
	tree := mustParse(t, sb.String())

	a, err := Compute(context.Background(), tree, DefaultLeafStep, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := Compute(context.Background(), tree, DefaultLeafStep, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for i := range a.X {
		if math.Float64bits(a.X[i]) != math.Float64bits(b.X[i]) || math.Float64bits(a.Y[i]) != math.Float64bits(b.Y[i]) {
			t.Fatalf("node %d differs between runs", i)
		}
	}
}

func TestComputeDeepTree(t *testing.T) {
	const depth = 100_000
	text := strings.Repeat("(", depth) + "A:1" + strings.Repeat("):1", depth) + ";"
	tree := mustParse(t, text)
	c, err := Compute(context.Background(), tree, DefaultLeafStep, nil)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if got := c.MaxX(); got != depth {
		t.Errorf("MaxX = %v, want %v", got, depth)
	}
	if c.Leaves != 1 {
		t.Errorf("Leaves = %d, want 1", c.Leaves)
	}
}

func TestComputeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tree := mustParse(t, "((A:1,B:2)C:1,D:3);")
	if _, err := Compute(ctx, tree, 1, nil); !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("err = %v, want TIMEOUT", err)
	}
}

func TestComputeProgress(t *testing.T) {
	tree := mustParse(t, "(A,B);")
	var pcts []float64
	if _, err := Compute(context.Background(), tree, 1, func(_ string, p float64) { pcts = append(pcts, p) }); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(pcts, []float64{33, 66, 100}) {
		t.Errorf("progress = %v", pcts)
	}
}

func TestHoleRadius(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{10, 0.1},
		{500, 0.1},
		{5000, math.Log(10)*0.4 + 0.1},
	}
	for _, tt := range tests {
		if got := HoleRadius(1, tt.n); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("HoleRadius(1, %d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestPolarProject(t *testing.T) {
	p := NewPolar(0, 0, 10, 2*math.Pi*100, 10)
	if math.Abs(p.RMax-100) > 1e-9 {
		t.Fatalf("RMax = %v, want 100", p.RMax)
	}
	// y = 0 points straight down in screen space (angle -π/2).
	x, y := p.Project(0, 0)
	if math.Abs(x) > 1e-9 || math.Abs(y+p.Hole) > 1e-9 {
		t.Errorf("Project(0,0) = (%v, %v), want (0, %v)", x, y, -p.Hole)
	}
	x, y = p.Project(10, 0)
	if r := math.Hypot(x, y); math.Abs(r-(p.Hole+100)) > 1e-9 {
		t.Errorf("outer radius = %v, want %v", r, p.Hole+100)
	}
}

func TestApplyPolarKeepsOtherArrays(t *testing.T) {
	b := &soa.Buffers{
		X: []float32{0, 1, 2}, Y: []float32{0, 5, 10},
		Size: []float32{1, 2, 3}, R: []float32{0, 0, 0}, G: []float32{0, 0, 0}, B: []float32{0, 0, 0},
		LinkSrc: []uint32{0}, LinkTgt: []uint32{1},
	}
	out := ApplyPolar(b)
	if &out.Size[0] != &b.Size[0] {
		t.Error("Size should be shared")
	}
	if out.X[0] == b.X[0] && out.Y[0] == b.Y[0] {
		t.Error("positions were not projected")
	}
	if b.X[1] != 1 {
		t.Error("input modified")
	}

	empty := ApplyPolar(&soa.Buffers{})
	if empty.NodeCount() != 0 {
		t.Errorf("empty NodeCount = %d", empty.NodeCount())
	}
}
