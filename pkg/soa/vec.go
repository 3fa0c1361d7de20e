// Package soa holds the structure-of-arrays buffers shared by every stage of
// the pipeline: point attributes, edge endpoints and labels, each in its own
// contiguous slice indexed by entity id.
//
// Producers (the streaming parser, the visual graph builder, the snapshot
// decoder) append into a [Builder] and hand the trimmed [Buffers] to
// consumers. Consumers treat Buffers as read-only; a new load means a new
// Buffers value, never an in-place mutation.
package soa

// minVecCapacity is the first allocation made by an empty Vec.
const minVecCapacity = 16

// Vec is a growable typed array with explicit capacity doubling.
// The backing slice is never exposed while the Vec is still growing;
// Trim hands it out once the producer is done.
type Vec[T any] struct {
	data []T
}

// NewVec returns a Vec with room for capacity elements.
func NewVec[T any](capacity int) *Vec[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Vec[T]{data: make([]T, 0, capacity)}
}

// Len returns the number of elements pushed so far.
func (v *Vec[T]) Len() int { return len(v.data) }

// Cap returns the current capacity.
func (v *Vec[T]) Cap() int { return cap(v.data) }

// Push appends x, doubling the capacity when full.
func (v *Vec[T]) Push(x T) {
	if len(v.data) == cap(v.data) {
		v.Grow(1)
	}
	v.data = append(v.data, x)
}

// Append appends all of xs.
func (v *Vec[T]) Append(xs ...T) {
	v.Grow(len(xs))
	v.data = append(v.data, xs...)
}

// Grow ensures room for n more elements. Capacity doubles until it fits.
func (v *Vec[T]) Grow(n int) {
	need := len(v.data) + n
	if need <= cap(v.data) {
		return
	}
	newCap := cap(v.data) * 2
	if newCap < minVecCapacity {
		newCap = minVecCapacity
	}
	for newCap < need {
		newCap *= 2
	}
	data := make([]T, len(v.data), newCap)
	copy(data, v.data)
	v.data = data
}

// At returns element i.
func (v *Vec[T]) At(i int) T { return v.data[i] }

// Set overwrites element i.
func (v *Vec[T]) Set(i int, x T) { v.data[i] = x }

// Trim returns the elements as a slice whose capacity equals its length and
// resets the Vec. The caller owns the returned slice.
func (v *Vec[T]) Trim() []T {
	out := v.data
	if cap(out) != len(out) {
		out = make([]T, len(v.data))
		copy(out, v.data)
	}
	v.data = nil
	return out
}
