package soa

// Point is one point record on its way into a Builder.
type Point struct {
	X, Y, Size float32
	R, G, B    float32
	Label      string
}

// Builder accumulates points and links into growable arrays.
type Builder struct {
	x, y, size *Vec[float32]
	r, g, b    *Vec[float32]
	labels     *Vec[string]
	src, tgt   *Vec[uint32]
	labelled   bool
}

// NewBuilder returns a Builder pre-sized for the given counts.
func NewBuilder(nodeCapacity, linkCapacity int) *Builder {
	return &Builder{
		x:      NewVec[float32](nodeCapacity),
		y:      NewVec[float32](nodeCapacity),
		size:   NewVec[float32](nodeCapacity),
		r:      NewVec[float32](nodeCapacity),
		g:      NewVec[float32](nodeCapacity),
		b:      NewVec[float32](nodeCapacity),
		labels: NewVec[string](nodeCapacity),
		src:    NewVec[uint32](linkCapacity),
		tgt:    NewVec[uint32](linkCapacity),
	}
}

// AddPoint appends p and returns its index.
func (bl *Builder) AddPoint(p Point) uint32 {
	idx := uint32(bl.x.Len())
	bl.x.Push(p.X)
	bl.y.Push(p.Y)
	bl.size.Push(p.Size)
	bl.r.Push(p.R)
	bl.g.Push(p.G)
	bl.b.Push(p.B)
	bl.labels.Push(p.Label)
	if p.Label != "" {
		bl.labelled = true
	}
	return idx
}

// AddLink appends the edge src->tgt.
func (bl *Builder) AddLink(src, tgt uint32) {
	bl.src.Push(src)
	bl.tgt.Push(tgt)
}

// NodeCount returns the number of points added so far.
func (bl *Builder) NodeCount() int { return bl.x.Len() }

// LinkCount returns the number of links added so far.
func (bl *Builder) LinkCount() int { return bl.src.Len() }

// X returns the x coordinate of point i.
func (bl *Builder) X(i uint32) float32 { return bl.x.At(int(i)) }

// Y returns the y coordinate of point i.
func (bl *Builder) Y(i uint32) float32 { return bl.y.At(int(i)) }

// SetX moves point i horizontally.
func (bl *Builder) SetX(i uint32, x float32) { bl.x.Set(int(i), x) }

// Label returns the label of point i.
func (bl *Builder) Label(i uint32) string { return bl.labels.At(int(i)) }

// Build trims every array to its used length and returns the Buffers.
// The Builder must not be used afterwards.
func (bl *Builder) Build() *Buffers {
	out := &Buffers{
		X:       bl.x.Trim(),
		Y:       bl.y.Trim(),
		Size:    bl.size.Trim(),
		R:       bl.r.Trim(),
		G:       bl.g.Trim(),
		B:       bl.b.Trim(),
		LinkSrc: bl.src.Trim(),
		LinkTgt: bl.tgt.Trim(),
	}
	labels := bl.labels.Trim()
	if bl.labelled {
		out.Labels = StringLabels(labels)
	}
	return out
}
