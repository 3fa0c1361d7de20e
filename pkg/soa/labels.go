package soa

import (
	"fmt"
)

// Labels is read access to per-point label text.
// Has reports whether point i carries a non-empty label; Get returns "" for
// points without one. Both implementations behave identically.
type Labels interface {
	Len() int
	Get(i int) string
	Has(i int) bool
}

// StringLabels stores labels as a plain string slice.
type StringLabels []string

// Len returns the number of label slots.
func (l StringLabels) Len() int { return len(l) }

// Get returns label i, or "" when i is out of range.
func (l StringLabels) Get(i int) string {
	if i < 0 || i >= len(l) {
		return ""
	}
	return l[i]
}

// Has reports whether label i exists and is non-empty.
func (l StringLabels) Has(i int) bool {
	return i >= 0 && i < len(l) && l[i] != ""
}

// BlobLabels stores labels as one UTF-8 blob plus cumulative end offsets:
// label i spans blob[offsets[i-1]:offsets[i]], with offsets[-1] taken as 0.
// This is the layout of the snapshot container's label section.
type BlobLabels struct {
	blob    []byte
	offsets []uint32
}

// NewBlobLabels wraps blob and offsets after checking that offsets are
// non-decreasing and stay inside blob. Neither slice is copied.
func NewBlobLabels(blob []byte, offsets []uint32) (*BlobLabels, error) {
	var prev uint32
	for i, end := range offsets {
		if end < prev {
			return nil, fmt.Errorf("label offset %d decreases (%d < %d)", i, end, prev)
		}
		if int(end) > len(blob) {
			return nil, fmt.Errorf("label offset %d beyond blob (%d > %d)", i, end, len(blob))
		}
		prev = end
	}
	return &BlobLabels{blob: blob, offsets: offsets}, nil
}

// Len returns the number of label slots.
func (l *BlobLabels) Len() int { return len(l.offsets) }

func (l *BlobLabels) span(i int) (uint32, uint32) {
	var start uint32
	if i > 0 {
		start = l.offsets[i-1]
	}
	return start, l.offsets[i]
}

// Get decodes label i on demand.
func (l *BlobLabels) Get(i int) string {
	if i < 0 || i >= len(l.offsets) {
		return ""
	}
	start, end := l.span(i)
	return string(l.blob[start:end])
}

// Has reports whether label i exists and is non-empty without decoding it.
func (l *BlobLabels) Has(i int) bool {
	if i < 0 || i >= len(l.offsets) {
		return false
	}
	start, end := l.span(i)
	return end > start
}

// Blob returns the shared label bytes. Callers must not modify them.
func (l *BlobLabels) Blob() []byte { return l.blob }

// Offsets returns the shared cumulative end offsets. Callers must not modify them.
func (l *BlobLabels) Offsets() []uint32 { return l.offsets }

// EncodeLabels flattens any Labels into the blob + offsets form.
// A BlobLabels input is returned as-is.
func EncodeLabels(l Labels) ([]byte, []uint32) {
	if l == nil {
		return nil, nil
	}
	if bl, ok := l.(*BlobLabels); ok {
		return bl.blob, bl.offsets
	}
	n := l.Len()
	total := 0
	for i := 0; i < n; i++ {
		total += len(l.Get(i))
	}
	blob := make([]byte, 0, total)
	offsets := make([]uint32, n)
	for i := 0; i < n; i++ {
		blob = append(blob, l.Get(i)...)
		offsets[i] = uint32(len(blob))
	}
	return blob, offsets
}
