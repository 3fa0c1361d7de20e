// Package visual turns a laid-out tree into the drawable point and edge set.
//
// Every edge is routed orthogonally through synthetic bend points at the
// parent's stem, vertical stems are spread apart so they never overlap, and
// each leaf gets a right-aligned marker carrying its label. The output is the
// same SoA layout the streaming parser produces.
package visual

import (
	"math"
	"slices"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/layout"
	"github.com/canopyviz/canopy/pkg/newick"
	"github.com/canopyviz/canopy/pkg/progress"
	"github.com/canopyviz/canopy/pkg/soa"
)

// Kind is the role of a visual point.
type Kind uint8

const (
	KindLeaf Kind = iota
	KindInternal
	KindBend
	KindLeafMarker
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindInternal:
		return "internal"
	case KindBend:
		return "bend"
	case KindLeafMarker:
		return "leaf_marker"
	default:
		return "unknown"
	}
}

// yEpsilon is the vertical distance below which parent and child are treated
// as level and routed without a bottom bend.
const yEpsilon = 1e-6

// Options holds geometry and appearance. Lengths are in world pixels.
type Options struct {
	XScale       float64 // pixels per branch-length unit
	MinStemGap   float64 // minimum distance between distinct stems
	ParentStub   float64 // horizontal run from a node to its stem
	WeightedStub float64 // run from the stem to a child before its branch length
	TipPad       float64 // gap between the rightmost leaf and the marker line

	LeafSize, InternalSize, BendSize, MarkerSize float32
	LeafColor, InternalColor, BendColor          string
}

// DefaultOptions returns the stock geometry.
func DefaultOptions() Options {
	return Options{
		XScale:       140,
		MinStemGap:   56,
		ParentStub:   20,
		WeightedStub: 40,
		TipPad:       40,

		LeafSize:     8,
		InternalSize: 6,
		BendSize:     3,
		MarkerSize:   20,

		LeafColor:     "#f5d76e",
		InternalColor: "#8ab4f8",
		BendColor:     "#9aa0a6",
	}
}

// Result is the visual graph.
type Result struct {
	Buffers *soa.Buffers
	// Kinds[i] is the role of point i.
	Kinds []Kind
	// NodeToPoint maps a tree node to its point.
	NodeToPoint []uint32
	// TipX is the x of the leaf marker line.
	TipX float64
}

type bendKey struct{ x, y float64 }

type builder struct {
	opts  Options
	b     *soa.Builder
	kinds *soa.Vec[Kind]
	bends map[bendKey]uint32
	links map[uint64]struct{}

	bend [3]float32
}

// quantize rounds to 6 decimal places; bend points are shared by key.
func quantize(v float64) float64 { return math.Round(v*1e6) / 1e6 }

// Build routes tree t laid out as c.
func Build(t *newick.Tree, c *layout.Coords, opts Options, fn progress.Func) (*Result, error) {
	n := t.Len()
	if n == 0 || len(c.X) != n || len(c.Y) != n {
		return nil, errors.New(errors.ErrCodeInvalidInput, "layout does not match tree (%d nodes, %d coords)", n, len(c.X))
	}

	bl := &builder{
		opts:  opts,
		b:     soa.NewBuilder(4*n, 4*n),
		kinds: soa.NewVec[Kind](4 * n),
		bends: make(map[bendKey]uint32, n),
		links: make(map[uint64]struct{}, 3*n),
		bend:  soa.MustHexColor(opts.BendColor),
	}

	// Stems: quantise, de-duplicate, then spread left to right.
	raw := make([]float64, n)
	for u := range raw {
		raw[u] = quantize(c.X[u]*opts.XScale + opts.ParentStub)
	}
	stems := slices.Clone(raw)
	slices.Sort(stems)
	stems = slices.Compact(stems)
	spread := make([]float64, len(stems))
	for i, s := range stems {
		if i > 0 {
			s = max(s, spread[i-1]+opts.MinStemGap)
		}
		spread[i] = s
	}
	stemX := func(u int32) float64 {
		i, _ := slices.BinarySearch(stems, raw[u])
		return quantize(spread[i])
	}
	fn.Report("Spreading stems", 10)

	// One point per logical node, in node order.
	leafColor := soa.MustHexColor(opts.LeafColor)
	internalColor := soa.MustHexColor(opts.InternalColor)
	nodeToPoint := make([]uint32, n)
	for u := int32(0); u < int32(n); u++ {
		kind, size, color, label := KindInternal, opts.InternalSize, internalColor, t.Names[u]
		if t.IsLeaf(u) {
			kind, size, color = KindLeaf, opts.LeafSize, leafColor
			if label == "" {
				label = layout.SyntheticName(u)
			}
		}
		nodeToPoint[u] = bl.add(kind, quantize(stemX(u)-opts.ParentStub), c.Y[u], size, color, label)
	}
	fn.Report("Placing nodes", 40)

	// Orthogonal edges; children move to their weighted x.
	for u := int32(0); u < int32(n); u++ {
		ex := stemX(u)
		yp := c.Y[u]
		for _, k := range c.Children[u] {
			child := nodeToPoint[k]
			bl.b.SetX(child, float32(quantize(ex+opts.WeightedStub+max(0, t.BranchLengths[k])*opts.XScale)))

			top := bl.addBend(ex, yp)
			bl.link(nodeToPoint[u], top)
			if math.Abs(yp-c.Y[k]) > yEpsilon {
				bottom := bl.addBend(ex, c.Y[k])
				bl.link(top, bottom)
				bl.link(bottom, child)
			} else {
				bl.link(top, child)
			}
		}
	}
	fn.Report("Routing edges", 80)

	// Right-aligned leaf markers.
	maxLeafX := 0.0
	first := true
	for u := int32(0); u < int32(n); u++ {
		if !t.IsLeaf(u) {
			continue
		}
		x := float64(bl.b.X(nodeToPoint[u]))
		if first || x > maxLeafX {
			maxLeafX, first = x, false
		}
	}
	tipX := maxLeafX + opts.TipPad
	for u := int32(0); u < int32(n); u++ {
		if !t.IsLeaf(u) {
			continue
		}
		leaf := nodeToPoint[u]
		marker := bl.add(KindLeafMarker, tipX, float64(bl.b.Y(leaf)), opts.MarkerSize, leafColor, bl.b.Label(leaf))
		bl.link(marker, leaf)
	}
	fn.Report("Adding leaf markers", 100)

	return &Result{
		Buffers:     bl.b.Build(),
		Kinds:       bl.kinds.Trim(),
		NodeToPoint: nodeToPoint,
		TipX:        tipX,
	}, nil
}

func (bl *builder) add(kind Kind, x, y float64, size float32, color [3]float32, label string) uint32 {
	bl.kinds.Push(kind)
	return bl.b.AddPoint(soa.Point{
		X:     float32(quantize(x)),
		Y:     float32(quantize(y)),
		Size:  size,
		R:     color[0],
		G:     color[1],
		B:     color[2],
		Label: label,
	})
}

func (bl *builder) addBend(x, y float64) uint32 {
	key := bendKey{quantize(x), quantize(y)}
	if id, ok := bl.bends[key]; ok {
		return id
	}
	id := bl.add(KindBend, x, y, bl.opts.BendSize, bl.bend, "")
	bl.bends[key] = id
	return id
}

func (bl *builder) link(src, tgt uint32) {
	key := uint64(src)<<32 | uint64(tgt)
	if _, ok := bl.links[key]; ok {
		return
	}
	bl.links[key] = struct{}{}
	bl.b.AddLink(src, tgt)
}
