package layout

import (
	"math"

	"github.com/canopyviz/canopy/pkg/soa"
)

// holeThreshold is the node count above which the empty centre grows.
const holeThreshold = 500

// Polar maps linear (depth, leaf order) coordinates onto a ring.
//
// The outer circumference equals the linear extent along Y
// (RMax = MaxY / 2π). The empty centre grows logarithmically with node count
// so large trees do not crowd near the origin.
type Polar struct {
	MinX, MinY float64
	MaxY       float64 // extent along Y
	RMax       float64
	Hole       float64
	ScaleX     float64
}

// NewPolar derives the projection for points spanning
// [minX, maxX] x [minY, maxY].
func NewPolar(minX, minY, maxX, maxY float64, nodeCount int) Polar {
	extentX := maxX - minX
	extentY := maxY - minY
	if extentY <= 0 {
		extentY = 1
	}
	p := Polar{MinX: minX, MinY: minY, MaxY: extentY}
	p.RMax = extentY / (2 * math.Pi)
	p.Hole = HoleRadius(p.RMax, nodeCount)
	p.ScaleX = 1
	if extentX > 0 {
		p.ScaleX = p.RMax / extentX
	}
	return p
}

// HoleRadius returns the radius of the empty centre for nodeCount points.
func HoleRadius(rMax float64, nodeCount int) float64 {
	if nodeCount > holeThreshold {
		return rMax * max(0.1, math.Log(float64(nodeCount)/holeThreshold)*0.4+0.1)
	}
	return rMax * 0.1
}

// Project maps one linear point to polar space.
func (p Polar) Project(x, y float64) (float64, float64) {
	radius := p.Hole + (x-p.MinX)*p.ScaleX
	angle := (y-p.MinY)/p.MaxY*2*math.Pi - math.Pi/2
	return radius * math.Cos(angle), radius * math.Sin(angle)
}

// ApplyPolar returns a copy of b with every point projected. Only X and Y are
// new; the remaining arrays are shared with b. The spatial grid has to be
// rebuilt over the result.
func ApplyPolar(b *soa.Buffers) *soa.Buffers {
	minX, minY, maxX, maxY, ok := b.Bounds()
	if !ok {
		return b.WithPositions(nil, nil)
	}
	p := NewPolar(minX, minY, maxX, maxY, b.NodeCount())
	xs := make([]float32, b.NodeCount())
	ys := make([]float32, b.NodeCount())
	for i := range xs {
		x, y := p.Project(float64(b.X[i]), float64(b.Y[i]))
		xs[i], ys[i] = float32(x), float32(y)
	}
	return b.WithPositions(xs, ys)
}
