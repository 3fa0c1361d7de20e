// Package progress defines the advisory progress callback shared by the
// long-running stages (streaming parse, Newick parse, layout, visual build).
// Callbacks are fire-and-forget: stages never wait on them and correctness
// never depends on them.
package progress

// Func receives a human-readable stage name and a completion percentage in
// [0, 100] for that stage.
type Func func(stage string, percent float64)

// Report calls fn when it is non-nil.
func (fn Func) Report(stage string, percent float64) {
	if fn != nil {
		fn(stage, percent)
	}
}

// Scale maps a child stage's 0..100 range onto [from, to] of the parent's
// range, keeping the child's stage name.
func (fn Func) Scale(from, to float64) Func {
	if fn == nil {
		return nil
	}
	return func(stage string, percent float64) {
		fn(stage, from+(to-from)*percent/100)
	}
}
