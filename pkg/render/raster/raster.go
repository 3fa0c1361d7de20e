// Package raster is a software render.Backend on github.com/gogpu/gg.
//
// It draws the same frames a GPU backend would, one primitive at a time, and
// is used for PNG output from the CLI and for end-to-end tests. Shader
// sources are not executed; CreateProgram only checks that they are
// well-formed enough to have compiled.
package raster

import (
	"image"
	"io"
	"strings"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/render"
)

// Background is the default clear colour.
var Background = gg.RGB(0.07, 0.08, 0.10)

// Backend renders into an in-memory image.
type Backend struct {
	dc         *gg.Context
	background gg.RGBA
	programs   map[render.Program]bool

	points   render.PointData
	lines    render.LineData
	uniforms map[render.Program]render.Uniforms

	font     *text.FontSource
	fontSize float64
}

// Option configures a Backend.
type Option func(*Backend)

// WithBackground sets the clear colour.
func WithBackground(c gg.RGBA) Option {
	return func(b *Backend) { b.background = c }
}

// WithFontSize sets the label font size in points.
func WithFontSize(size float64) Option {
	return func(b *Backend) {
		if size > 0 {
			b.fontSize = size
		}
	}
}

// New returns a backend drawing into a width x height image.
func New(width, height int, opts ...Option) *Backend {
	b := &Backend{
		dc:         gg.NewContext(max(width, 1), max(height, 1)),
		background: Background,
		programs:   make(map[render.Program]bool, 2),
		uniforms:   make(map[render.Program]render.Uniforms, 2),
		fontSize:   12,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CreateProgram implements render.Backend.
func (b *Backend) CreateProgram(p render.Program, vertexSrc, fragmentSrc string) error {
	for stage, src := range map[string]string{"vertex": vertexSrc, "fragment": fragmentSrc} {
		if err := checkShader(src); err != nil {
			return errors.Wrap(errors.ErrCodeShaderCompile, err, "%s %s shader", p, stage)
		}
	}
	b.programs[p] = true
	return nil
}

func checkShader(src string) error {
	if !strings.HasPrefix(strings.TrimSpace(src), "#version") {
		return errors.New(errors.ErrCodeShaderCompile, "missing #version directive")
	}
	if !strings.Contains(src, "void main()") {
		return errors.New(errors.ErrCodeShaderCompile, "missing main function")
	}
	if strings.Count(src, "{") != strings.Count(src, "}") {
		return errors.New(errors.ErrCodeShaderCompile, "unbalanced braces")
	}
	return nil
}

// UploadPoints implements render.Backend.
func (b *Backend) UploadPoints(d render.PointData) error {
	if len(d.Positions) != 2*len(d.Sizes) || len(d.Colors) != 3*len(d.Sizes) {
		return errors.New(errors.ErrCodeInvalidInput, "point upload has mismatched attribute lengths")
	}
	b.points = d
	return nil
}

// UploadLines implements render.Backend.
func (b *Backend) UploadLines(d render.LineData) error {
	if len(d.Endpoints)%4 != 0 {
		return errors.New(errors.ErrCodeInvalidInput, "line upload length %d is not a multiple of 4", len(d.Endpoints))
	}
	b.lines = d
	return nil
}

// BeginFrame implements render.Backend. The image is resized to the viewport
// when it differs and cleared.
func (b *Backend) BeginFrame(vp render.Viewport) error {
	w, h := int(vp.Width), int(vp.Height)
	if w > 0 && h > 0 {
		if err := b.dc.Resize(w, h); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "resize canvas")
		}
	}
	b.dc.ClearWithColor(b.background)
	return nil
}

// SetUniforms implements render.Backend.
func (b *Backend) SetUniforms(p render.Program, u render.Uniforms) error {
	if !b.programs[p] {
		return errors.New(errors.ErrCodeNotReady, "program %s not created", p)
	}
	b.uniforms[p] = u
	return nil
}

// DrawPoints implements render.Backend.
func (b *Backend) DrawPoints(start, count int) error {
	n := len(b.points.Sizes)
	if start < 0 || count < 0 || start+count > n {
		return errors.New(errors.ErrCodeInvalidInput, "point range %d+%d outside %d", start, count, n)
	}
	u := b.uniforms[render.ProgramPoints]
	tx, ty, k := float64(u.Transform[0]), float64(u.Transform[1]), float64(u.Transform[2])
	w, h := float64(b.dc.Width()), float64(b.dc.Height())
	for i := start; i < start+count; i++ {
		sx := (float64(b.points.Positions[2*i]) + tx) * k
		sy := (float64(b.points.Positions[2*i+1]) + ty) * k
		r := render.PointRadius(b.points.Sizes[i], k, float64(u.SizeMultiplier))
		if sx+r < 0 || sy+r < 0 || sx-r > w || sy-r > h {
			continue
		}
		b.dc.SetRGB(float64(b.points.Colors[3*i]), float64(b.points.Colors[3*i+1]), float64(b.points.Colors[3*i+2]))
		b.dc.DrawCircle(sx, sy, r)
		if err := b.dc.Fill(); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "fill point")
		}
	}
	return nil
}

// DrawLines implements render.Backend. All segments of one call are stroked
// as a single path.
func (b *Backend) DrawLines(start, count int) error {
	n := len(b.lines.Endpoints) / 4
	if start < 0 || count < 0 || start+count > n {
		return errors.New(errors.ErrCodeInvalidInput, "line range %d+%d outside %d", start, count, n)
	}
	if count == 0 {
		return nil
	}
	u := b.uniforms[render.ProgramLines]
	tx, ty, k := float64(u.Transform[0]), float64(u.Transform[1]), float64(u.Transform[2])
	e := b.lines.Endpoints
	for i := start; i < start+count; i++ {
		b.dc.DrawLine(
			(float64(e[4*i])+tx)*k, (float64(e[4*i+1])+ty)*k,
			(float64(e[4*i+2])+tx)*k, (float64(e[4*i+3])+ty)*k,
		)
	}
	b.dc.SetRGBA(1, 1, 1, render.LineAlpha)
	b.dc.SetLineWidth(1)
	if err := b.dc.Stroke(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "stroke lines")
	}
	return nil
}

// EndFrame implements render.Backend.
func (b *Backend) EndFrame() error { return nil }

// DrawText draws s with its baseline starting at screen (x, y). The Go
// Regular face is loaded on first use.
func (b *Backend) DrawText(s string, x, y float64) error {
	if b.font == nil {
		src, err := text.NewFontSource(goregular.TTF)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "load label font")
		}
		b.font = src
		b.dc.SetFont(src.Face(b.fontSize))
	}
	b.dc.SetRGB(0.92, 0.92, 0.92)
	b.dc.DrawString(s, x, y)
	return nil
}

// Image returns the current frame.
func (b *Backend) Image() image.Image {
	_ = b.dc.FlushGPU()
	return b.dc.Image()
}

// EncodePNG writes the current frame as PNG.
func (b *Backend) EncodePNG(w io.Writer) error {
	_ = b.dc.FlushGPU()
	if err := b.dc.EncodePNG(w); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return nil
}

// Close releases the canvas and font.
func (b *Backend) Close() error {
	if b.font != nil {
		_ = b.font.Close()
	}
	return b.dc.Close()
}
