package render

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/grid"
	"github.com/canopyviz/canopy/pkg/observability"
	"github.com/canopyviz/canopy/pkg/soa"
)

// FrameConfig is the per-frame input that comes from outside the renderer,
// such as a UI size slider.
type FrameConfig struct {
	SizeMultiplier float64
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBudget overrides the frame budget.
func WithBudget(b Budget) Option {
	return func(r *Renderer) { r.budget = b }
}

// Renderer owns the camera and issues LOD-bounded draw calls to a Backend.
//
// SetTransform and Resize may be called from any goroutine; Frame reads a
// consistent snapshot of both.
type Renderer struct {
	backend Backend
	logger  *log.Logger
	budget  Budget

	mu        sync.Mutex
	transform Transform
	viewport  Viewport

	grid *grid.Grid
}

// New compiles both programs on b. A compile failure is returned as is and
// the renderer is unusable.
func New(b Backend, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		backend:   b,
		logger:    log.Default(),
		budget:    DefaultBudget(),
		transform: Identity(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := b.CreateProgram(ProgramPoints, PointVertexShader, PointFragmentShader); err != nil {
		return nil, errors.Wrap(errors.ErrCodeShaderCompile, err, "create %s program", ProgramPoints)
	}
	if err := b.CreateProgram(ProgramLines, LineVertexShader, LineFragmentShader); err != nil {
		return nil, errors.Wrap(errors.ErrCodeShaderCompile, err, "create %s program", ProgramLines)
	}
	return r, nil
}

// Load uploads b in the cell order of g. g must have been built over b.
func (r *Renderer) Load(b *soa.Buffers, g *grid.Grid) error {
	if len(g.Order) != b.NodeCount() || len(g.EdgeOrder) != b.LinkCount() {
		return errors.New(errors.ErrCodeInvalidInput, "grid indexes %d points and %d links, buffers hold %d and %d",
			len(g.Order), len(g.EdgeOrder), b.NodeCount(), b.LinkCount())
	}
	if err := r.backend.UploadPoints(PackPoints(b, g)); err != nil {
		return err
	}
	if err := r.backend.UploadLines(PackLines(b, g)); err != nil {
		return err
	}
	r.mu.Lock()
	r.grid = g
	r.mu.Unlock()
	r.logger.Debug("render buffers uploaded", "points", b.NodeCount(), "links", b.LinkCount(), "cells", len(g.Cells))
	return nil
}

// PackPoints lays the point attributes out in grid order, positions relative
// to their cell origin.
func PackPoints(b *soa.Buffers, g *grid.Grid) PointData {
	n := len(g.Order)
	d := PointData{
		Positions: make([]float32, 2*n),
		Sizes:     make([]float32, n),
		Colors:    make([]float32, 3*n),
	}
	for c := range g.Cells {
		origin := g.Cells[c].Bounds
		for k, i := range g.Points(c) {
			slot := int(g.Cells[c].Start) + k
			d.Positions[2*slot] = float32(float64(b.X[i]) - origin.MinX)
			d.Positions[2*slot+1] = float32(float64(b.Y[i]) - origin.MinY)
			d.Sizes[slot] = b.Size[i]
			d.Colors[3*slot] = b.R[i]
			d.Colors[3*slot+1] = b.G[i]
			d.Colors[3*slot+2] = b.B[i]
		}
	}
	return d
}

// PackLines lays the links out in grid edge order, endpoints relative to the
// owning cell origin.
func PackLines(b *soa.Buffers, g *grid.Grid) LineData {
	d := LineData{Endpoints: make([]float32, 4*len(g.EdgeOrder))}
	for c := range g.Cells {
		origin := g.Cells[c].Bounds
		for k, j := range g.Edges(c) {
			slot := int(g.Cells[c].EdgeStart) + k
			s, t := b.LinkSrc[j], b.LinkTgt[j]
			d.Endpoints[4*slot] = float32(float64(b.X[s]) - origin.MinX)
			d.Endpoints[4*slot+1] = float32(float64(b.Y[s]) - origin.MinY)
			d.Endpoints[4*slot+2] = float32(float64(b.X[t]) - origin.MinX)
			d.Endpoints[4*slot+3] = float32(float64(b.Y[t]) - origin.MinY)
		}
	}
	return d
}

// SetTransform replaces the camera transform. It is the only way the camera
// changes.
func (r *Renderer) SetTransform(t Transform) {
	if t.K <= 0 {
		t.K = 1
	}
	r.mu.Lock()
	r.transform = t
	r.mu.Unlock()
}

// Transform returns the current camera transform.
func (r *Renderer) Transform() Transform {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transform
}

// Resize sets the viewport size in pixels.
func (r *Renderer) Resize(vp Viewport) {
	r.mu.Lock()
	r.viewport = vp
	r.mu.Unlock()
}

// Viewport returns the current viewport.
func (r *Renderer) Viewport() Viewport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewport
}

// Plan computes the draw calls for the current camera without drawing.
func (r *Renderer) Plan() *Plan {
	r.mu.Lock()
	t, vp, g := r.transform, r.viewport, r.grid
	r.mu.Unlock()
	return NewPlan(g, t, vp, r.budget)
}

// Frame plans and draws one frame: edges first, then points.
func (r *Renderer) Frame(ctx context.Context, cfg FrameConfig) (*Plan, error) {
	start := time.Now()
	r.mu.Lock()
	t, vp, g := r.transform, r.viewport, r.grid
	r.mu.Unlock()
	if g == nil {
		return nil, errors.New(errors.ErrCodeNotReady, "renderer has no data loaded")
	}
	if cfg.SizeMultiplier <= 0 {
		cfg.SizeMultiplier = 1
	}

	plan := NewPlan(g, t, vp, r.budget)
	if err := r.backend.BeginFrame(vp); err != nil {
		return nil, err
	}

	res := [2]float32{float32(vp.Width), float32(vp.Height)}
	uniforms := func(cell int, line bool) Uniforms {
		origin := g.Cells[cell].Bounds
		return Uniforms{
			Resolution:     res,
			Transform:      [3]float32{float32(t.X + origin.MinX), float32(t.Y + origin.MinY), float32(t.K)},
			IsLine:         line,
			SizeMultiplier: float32(cfg.SizeMultiplier),
		}
	}

	for _, d := range plan.Links {
		if err := r.backend.SetUniforms(ProgramLines, uniforms(d.Cell, true)); err != nil {
			return nil, err
		}
		if err := r.backend.DrawLines(d.Start, d.Count); err != nil {
			return nil, err
		}
	}
	for _, d := range plan.Points {
		if err := r.backend.SetUniforms(ProgramPoints, uniforms(d.Cell, false)); err != nil {
			return nil, err
		}
		if err := r.backend.DrawPoints(d.Start, d.Count); err != nil {
			return nil, err
		}
	}
	if err := r.backend.EndFrame(); err != nil {
		return nil, err
	}

	observability.Render().OnFrame(ctx, len(plan.Cells), plan.PotentialPoints, plan.DrawnPoints(), plan.DrawnLinks(), time.Since(start))
	if plan.LODRatio < 1 {
		r.logger.Debug("frame thinned", "potential", plan.PotentialPoints, "ratio", plan.LODRatio, "edges", plan.DrawEdges)
	}
	return plan, nil
}
