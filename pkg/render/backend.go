package render

// Program selects one of the two GPU programs.
type Program int

const (
	ProgramPoints Program = iota
	ProgramLines
)

func (p Program) String() string {
	switch p {
	case ProgramPoints:
		return "points"
	case ProgramLines:
		return "lines"
	default:
		return "unknown"
	}
}

// Uniforms are the per-draw shader inputs.
type Uniforms struct {
	Resolution [2]float32
	// Transform is pan x, pan y and zoom, with the cell origin already
	// folded into the pan.
	Transform      [3]float32
	IsLine         bool
	SizeMultiplier float32
}

// PointData is the point attribute upload, in grid order. Positions are
// relative to the owning cell origin.
type PointData struct {
	Positions []float32 // x0, y0, x1, y1, ...
	Sizes     []float32
	Colors    []float32 // r0, g0, b0, r1, ...
}

// LineData is the link upload, in grid edge order. Both endpoints are
// relative to the origin of the cell owning the link.
type LineData struct {
	Endpoints []float32 // x0, y0, x1, y1 per link
}

// Backend is the GPU draw collaborator.
//
// CreateProgram must fail with an errors.ErrCodeShaderCompile error when the
// sources do not compile. Draw offsets and counts index the uploaded arrays
// in elements (points or links), not bytes.
type Backend interface {
	CreateProgram(p Program, vertexSrc, fragmentSrc string) error
	UploadPoints(d PointData) error
	UploadLines(d LineData) error
	BeginFrame(vp Viewport) error
	SetUniforms(p Program, u Uniforms) error
	DrawPoints(start, count int) error
	DrawLines(start, count int) error
	EndFrame() error
}
