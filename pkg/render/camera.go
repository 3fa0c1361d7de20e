package render

import (
	"math"

	"github.com/canopyviz/canopy/pkg/grid"
)

// Transform is the pan and zoom state. A world point maps to screen as
// ((wx + X) * K, (wy + Y) * K).
type Transform struct {
	X, Y float64
	K    float64
}

// Identity is the transform that maps world units onto pixels unchanged.
func Identity() Transform { return Transform{K: 1} }

// ToScreen maps a world point to screen pixels.
func (t Transform) ToScreen(wx, wy float64) (sx, sy float64) {
	return (wx + t.X) * t.K, (wy + t.Y) * t.K
}

// ToWorld maps a screen pixel to world units.
func (t Transform) ToWorld(sx, sy float64) (wx, wy float64) {
	return sx/t.K - t.X, sy/t.K - t.Y
}

// ZoomAt scales by factor keeping the screen point (sx, sy) fixed.
func (t Transform) ZoomAt(factor, sx, sy float64) Transform {
	wx, wy := t.ToWorld(sx, sy)
	k := t.K * factor
	return Transform{X: sx/k - wx, Y: sy/k - wy, K: k}
}

// Viewport is the drawable area in pixels.
type Viewport struct {
	Width, Height float64
}

// VisibleRect returns the world rectangle covering the viewport padded by
// one viewport size on every side.
func VisibleRect(t Transform, vp Viewport) grid.Rect {
	k := t.K
	if k <= 0 || math.IsNaN(k) {
		k = 1
	}
	w, h := max(vp.Width, 1), max(vp.Height, 1)
	return grid.Rect{
		MinX: -w/k - t.X,
		MinY: -h/k - t.Y,
		MaxX: 2*w/k - t.X,
		MaxY: 2*h/k - t.Y,
	}
}

// Fit returns the transform that shows bounds inside vp with margin pixels
// on every side, keeping the aspect ratio.
func Fit(bounds grid.Rect, vp Viewport, margin float64) Transform {
	w := max(bounds.Width(), 1e-9)
	h := max(bounds.Height(), 1e-9)
	availW := max(vp.Width-2*margin, 1)
	availH := max(vp.Height-2*margin, 1)
	k := min(availW/w, availH/h)
	// Centre the box.
	cx := bounds.MinX + w/2
	cy := bounds.MinY + h/2
	return Transform{
		X: vp.Width/(2*k) - cx,
		Y: vp.Height/(2*k) - cy,
		K: k,
	}
}

// PointRadius is the on-screen radius for a point of the given size at zoom
// k. The point vertex shader computes the same value.
func PointRadius(size float32, k, multiplier float64) float64 {
	scale := math.Sqrt(max(k, 0))
	scale = max(0.25, min(4, scale))
	return max(0.5, float64(size)*scale*multiplier/2)
}
