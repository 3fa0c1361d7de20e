package soa

import (
	"fmt"
	"math"
)

// Default point attributes used when a producer has nothing better.
const (
	DefaultSize  = 2.0
	DefaultColor = 0.5
)

// Buffers is a finished point set plus edge set.
//
// X, Y, Size, R, G and B all have length NodeCount. LinkSrc and LinkTgt have
// length LinkCount and hold point indices below NodeCount. Labels may be nil
// when no point carries text.
type Buffers struct {
	X, Y, Size []float32
	R, G, B    []float32
	Labels     Labels

	LinkSrc []uint32
	LinkTgt []uint32
}

// NodeCount returns the number of points.
func (b *Buffers) NodeCount() int { return len(b.X) }

// LinkCount returns the number of edges.
func (b *Buffers) LinkCount() int { return len(b.LinkSrc) }

// Label returns the label of point i, or "" when absent.
func (b *Buffers) Label(i int) string {
	if b.Labels == nil {
		return ""
	}
	return b.Labels.Get(i)
}

// HasLabel reports whether point i carries a non-empty label.
func (b *Buffers) HasLabel(i int) bool {
	return b.Labels != nil && b.Labels.Has(i)
}

// Validate checks the parallel-array invariants.
func (b *Buffers) Validate() error {
	n := len(b.X)
	for name, arr := range map[string][]float32{"y": b.Y, "size": b.Size, "r": b.R, "g": b.G, "b": b.B} {
		if len(arr) != n {
			return fmt.Errorf("%s has %d elements, want %d", name, len(arr), n)
		}
	}
	if b.Labels != nil && b.Labels.Len() != n {
		return fmt.Errorf("labels has %d elements, want %d", b.Labels.Len(), n)
	}
	if len(b.LinkSrc) != len(b.LinkTgt) {
		return fmt.Errorf("link source/target length mismatch: %d != %d", len(b.LinkSrc), len(b.LinkTgt))
	}
	for j := range b.LinkSrc {
		if int(b.LinkSrc[j]) >= n || int(b.LinkTgt[j]) >= n {
			return fmt.Errorf("link %d (%d->%d) out of range for %d points", j, b.LinkSrc[j], b.LinkTgt[j], n)
		}
	}
	return nil
}

// Bounds returns the axis-aligned bounding box of all points with finite
// coordinates. ok is false when there are none.
func (b *Buffers) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for i := range b.X {
		x, y := float64(b.X[i]), float64(b.Y[i])
		if math.IsInf(x, 0) || math.IsNaN(x) || math.IsInf(y, 0) || math.IsNaN(y) {
			continue
		}
		minX = math.Min(minX, x)
		maxX = math.Max(maxX, x)
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
		ok = true
	}
	if !ok {
		return 0, 0, 0, 0, false
	}
	return minX, minY, maxX, maxY, true
}

// WithPositions returns a shallow copy of b whose X and Y are replaced.
// Every other array is shared with b.
func (b *Buffers) WithPositions(x, y []float32) *Buffers {
	out := *b
	out.X, out.Y = x, y
	return &out
}
