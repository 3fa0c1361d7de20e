package render

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/grid"
	"github.com/canopyviz/canopy/pkg/soa"
)

type drawCall struct {
	program      Program
	start, count int
	uniforms     Uniforms
}

type fakeBackend struct {
	failProgram Program
	fail        bool
	programs    []Program
	points      PointData
	lines       LineData
	current     Uniforms
	calls       []drawCall
	frames      int
}

func (f *fakeBackend) CreateProgram(p Program, vs, fs string) error {
	if f.fail && p == f.failProgram {
		return fmt.Errorf("0:1: syntax error")
	}
	f.programs = append(f.programs, p)
	return nil
}
func (f *fakeBackend) UploadPoints(d PointData) error { f.points = d; return nil }
func (f *fakeBackend) UploadLines(d LineData) error   { f.lines = d; return nil }
func (f *fakeBackend) BeginFrame(Viewport) error      { f.calls = f.calls[:0]; return nil }
func (f *fakeBackend) SetUniforms(_ Program, u Uniforms) error {
	f.current = u
	return nil
}
func (f *fakeBackend) DrawPoints(start, count int) error {
	f.calls = append(f.calls, drawCall{ProgramPoints, start, count, f.current})
	return nil
}
func (f *fakeBackend) DrawLines(start, count int) error {
	f.calls = append(f.calls, drawCall{ProgramLines, start, count, f.current})
	return nil
}
func (f *fakeBackend) EndFrame() error { f.frames++; return nil }

func (f *fakeBackend) summed(p Program) int {
	n := 0
	for _, c := range f.calls {
		if c.program == p {
			n += c.count
		}
	}
	return n
}

func gridPoints(side int) *soa.Buffers {
	b := soa.NewBuilder(side*side, side*side)
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			b.AddPoint(soa.Point{X: float32(i * 10), Y: float32(j * 10), Size: float32(1 + (i+j)%4)})
		}
	}
	for k := 1; k < side*side; k++ {
		b.AddLink(uint32(k-1), uint32(k))
	}
	return b.Build()
}

func loaded(t *testing.T, b *soa.Buffers, budget Budget) (*Renderer, *fakeBackend, *grid.Grid) {
	t.Helper()
	fb := &fakeBackend{}
	r, err := New(fb, WithBudget(budget))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := grid.Build(b, 64)
	if err := r.Load(b, g); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r, fb, g
}

func TestFrameRespectsVertexBudget(t *testing.T) {
	b := gridPoints(50) // 2500 points
	budget := Budget{VertexBudget: 1250, EdgeThreshold: 100}
	r, fb, g := loaded(t, b, budget)

	vp := Viewport{Width: 800, Height: 600}
	r.Resize(vp)
	r.SetTransform(Fit(g.Bounds, vp, 10))

	plan, err := r.Frame(context.Background(), FrameConfig{SizeMultiplier: 1})
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if plan.PotentialPoints != 2*budget.VertexBudget {
		t.Fatalf("potential = %d, want %d", plan.PotentialPoints, 2*budget.VertexBudget)
	}
	if plan.LODRatio != 0.5 {
		t.Errorf("ratio = %v, want 0.5", plan.LODRatio)
	}
	drawn := fb.summed(ProgramPoints)
	if drawn < budget.VertexBudget || drawn > budget.VertexBudget+len(plan.Cells) {
		t.Errorf("drawn = %d, want %d (+ at most %d rounding)", drawn, budget.VertexBudget, len(plan.Cells))
	}
	if drawn != plan.DrawnPoints() {
		t.Errorf("backend saw %d, plan says %d", drawn, plan.DrawnPoints())
	}
	if fb.summed(ProgramLines) != 0 || plan.DrawEdges {
		t.Errorf("edges drawn above threshold")
	}
	for _, c := range fb.calls {
		if c.start < 0 || c.start+c.count > len(g.Order) {
			t.Errorf("draw range %d+%d out of bounds", c.start, c.count)
		}
	}
}

func TestFrameDrawsEverythingUnderBudget(t *testing.T) {
	b := gridPoints(10)
	r, fb, g := loaded(t, b, DefaultBudget())
	vp := Viewport{Width: 400, Height: 400}
	r.Resize(vp)
	r.SetTransform(Fit(g.Bounds, vp, 0))

	plan, err := r.Frame(context.Background(), FrameConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if plan.LODRatio != 1 || fb.summed(ProgramPoints) != 100 {
		t.Errorf("ratio %v, drawn %d", plan.LODRatio, fb.summed(ProgramPoints))
	}
	if fb.summed(ProgramLines) != 99 {
		t.Errorf("links drawn = %d, want 99", fb.summed(ProgramLines))
	}
	// Lines come before points.
	if fb.calls[0].program != ProgramLines || fb.calls[len(fb.calls)-1].program != ProgramPoints {
		t.Errorf("draw order wrong")
	}
	if fb.calls[0].uniforms.SizeMultiplier != 1 {
		t.Errorf("size multiplier default = %v", fb.calls[0].uniforms.SizeMultiplier)
	}
}

func TestPlanOffscreenIsEmpty(t *testing.T) {
	b := gridPoints(10)
	g := grid.Build(b, 16)
	plan := NewPlan(g, Transform{X: 1e7, Y: 1e7, K: 1}, Viewport{Width: 100, Height: 100}, DefaultBudget())
	if len(plan.Cells) != 0 || plan.PotentialPoints != 0 || plan.DrawnPoints() != 0 {
		t.Errorf("offscreen plan = %+v", plan)
	}
	if plan.LODRatio != 1 {
		t.Errorf("ratio = %v", plan.LODRatio)
	}
}

func TestPlanSurvivesInfiniteCoordinate(t *testing.T) {
	b := soa.NewBuilder(0, 0)
	for _, v := range []float32{0, 10, 20} {
		b.AddPoint(soa.Point{X: v, Y: v, Size: 1})
	}
	b.AddPoint(soa.Point{X: float32(math.Inf(1)), Y: 5, Size: 1})
	g := grid.Build(b.Build(), 4096)
	plan := NewPlan(g, Identity(), Viewport{Width: 800, Height: 600}, DefaultBudget())
	if len(plan.Cells) == 0 || plan.DrawnPoints() < 3 {
		t.Errorf("plan = %d cells, %d drawn, want the three finite points", len(plan.Cells), plan.DrawnPoints())
	}
}

func TestPlanLinkVisibleThroughEdgeBounds(t *testing.T) {
	b := soa.NewBuilder(0, 0)
	b.AddPoint(soa.Point{X: 0, Y: 0, Size: 1})
	b.AddPoint(soa.Point{X: 10000, Y: 0, Size: 1})
	b.AddLink(0, 1)
	g := grid.Build(b.Build(), 16)

	// Look at the middle of the link, far from both endpoints.
	plan := NewPlan(g, Transform{X: -5000, Y: 5, K: 1}, Viewport{Width: 10, Height: 10}, DefaultBudget())
	if plan.PotentialPoints != 0 {
		t.Fatalf("potential = %d, want 0", plan.PotentialPoints)
	}
	if len(plan.LinkCells) != 1 || plan.LinkCells[0] != g.CellOf(0, 0) {
		t.Errorf("link cells = %v", plan.LinkCells)
	}
	if plan.DrawnLinks() != 1 {
		t.Errorf("links drawn = %d", plan.DrawnLinks())
	}
}

func TestNewFailsOnShaderCompile(t *testing.T) {
	_, err := New(&fakeBackend{fail: true, failProgram: ProgramLines})
	if !errors.Is(err, errors.ErrCodeShaderCompile) {
		t.Fatalf("err = %v, want SHADER_COMPILE", err)
	}
}

func TestFrameBeforeLoad(t *testing.T) {
	r, err := New(&fakeBackend{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Frame(context.Background(), FrameConfig{}); !errors.Is(err, errors.ErrCodeNotReady) {
		t.Errorf("err = %v, want NOT_READY", err)
	}
}

func TestPackPointsIsCellRelative(t *testing.T) {
	b := gridPoints(20)
	g := grid.Build(b, 16)
	d := PackPoints(b, g)
	for c := range g.Cells {
		origin := g.Cells[c].Bounds
		for k, i := range g.Points(c) {
			slot := int(g.Cells[c].Start) + k
			x := float64(d.Positions[2*slot]) + origin.MinX
			y := float64(d.Positions[2*slot+1]) + origin.MinY
			if math.Abs(x-float64(b.X[i])) > 1e-3 || math.Abs(y-float64(b.Y[i])) > 1e-3 {
				t.Fatalf("point %d packed at %v,%v want %v,%v", i, x, y, b.X[i], b.Y[i])
			}
			if d.Sizes[slot] != b.Size[i] {
				t.Fatalf("size mismatch at %d", i)
			}
		}
	}
	lines := PackLines(b, g)
	if len(lines.Endpoints) != 4*b.LinkCount() {
		t.Errorf("line endpoints = %d", len(lines.Endpoints))
	}
}

func TestTransformRoundTrip(t *testing.T) {
	tr := Transform{X: 12, Y: -7, K: 2.5}
	sx, sy := tr.ToScreen(3, 4)
	if sx != 37.5 || sy != -7.5 {
		t.Errorf("ToScreen = %v,%v", sx, sy)
	}
	wx, wy := tr.ToWorld(sx, sy)
	if math.Abs(wx-3) > 1e-12 || math.Abs(wy-4) > 1e-12 {
		t.Errorf("ToWorld = %v,%v", wx, wy)
	}

	z := tr.ZoomAt(2, 100, 50)
	ax, ay := tr.ToWorld(100, 50)
	bx, by := z.ToWorld(100, 50)
	if math.Abs(ax-bx) > 1e-9 || math.Abs(ay-by) > 1e-9 || z.K != 5 {
		t.Errorf("ZoomAt moved the anchor: %v,%v -> %v,%v", ax, ay, bx, by)
	}
}

func TestVisibleRectPadsOneScreen(t *testing.T) {
	r := VisibleRect(Identity(), Viewport{Width: 100, Height: 50})
	want := grid.Rect{MinX: -100, MinY: -50, MaxX: 200, MaxY: 100}
	if r != want {
		t.Errorf("VisibleRect = %+v, want %+v", r, want)
	}
}

func TestFitCentresBounds(t *testing.T) {
	bounds := grid.Rect{MinX: 0, MinY: 0, MaxX: 200, MaxY: 100}
	vp := Viewport{Width: 400, Height: 400}
	tr := Fit(bounds, vp, 0)
	if tr.K != 2 {
		t.Errorf("K = %v, want 2", tr.K)
	}
	cx, cy := tr.ToScreen(100, 50)
	if cx != 200 || cy != 200 {
		t.Errorf("centre maps to %v,%v", cx, cy)
	}
}
