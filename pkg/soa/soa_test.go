package soa

import (
	"math"
	"testing"
)

func TestVecDoublesCapacity(t *testing.T) {
	v := NewVec[uint32](0)
	caps := []int{}
	for i := 0; i < 100; i++ {
		v.Push(uint32(i))
		if len(caps) == 0 || caps[len(caps)-1] != v.Cap() {
			caps = append(caps, v.Cap())
		}
	}
	want := []int{16, 32, 64, 128}
	if len(caps) != len(want) {
		t.Fatalf("capacity steps = %v, want %v", caps, want)
	}
	for i := range want {
		if caps[i] != want[i] {
			t.Errorf("capacity step %d = %d, want %d", i, caps[i], want[i])
		}
	}
	for i := 0; i < 100; i++ {
		if v.At(i) != uint32(i) {
			t.Fatalf("At(%d) = %d", i, v.At(i))
		}
	}
}

func TestVecTrim(t *testing.T) {
	v := NewVec[float32](64)
	v.Append(1, 2, 3)
	out := v.Trim()
	if len(out) != 3 || cap(out) != 3 {
		t.Errorf("Trim len/cap = %d/%d, want 3/3", len(out), cap(out))
	}
	if v.Len() != 0 {
		t.Errorf("Len after Trim = %d, want 0", v.Len())
	}
}

func TestLabelImplementationsAgree(t *testing.T) {
	src := StringLabels{"Homo sapiens", "", "Pan troglodytes", "ünïcødé", ""}
	blob, offsets := EncodeLabels(src)
	bl, err := NewBlobLabels(blob, offsets)
	if err != nil {
		t.Fatalf("NewBlobLabels: %v", err)
	}

	if bl.Len() != src.Len() {
		t.Fatalf("Len = %d, want %d", bl.Len(), src.Len())
	}
	for i := -1; i <= src.Len(); i++ {
		if bl.Get(i) != src.Get(i) {
			t.Errorf("Get(%d) = %q, want %q", i, bl.Get(i), src.Get(i))
		}
		if bl.Has(i) != src.Has(i) {
			t.Errorf("Has(%d) = %v, want %v", i, bl.Has(i), src.Has(i))
		}
	}
}

func TestNewBlobLabelsRejectsBadOffsets(t *testing.T) {
	tests := []struct {
		name    string
		blob    []byte
		offsets []uint32
	}{
		{"decreasing", []byte("abcdef"), []uint32{3, 2}},
		{"beyond blob", []byte("abc"), []uint32{1, 4}},
	}
	for _, tt := range tests {
		if _, err := NewBlobLabels(tt.blob, tt.offsets); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestBuilderBuild(t *testing.T) {
	b := NewBuilder(8, 8)
	a := b.AddPoint(Point{X: 1, Y: 2, Size: 3, R: 0.1, G: 0.2, B: 0.3, Label: "a"})
	c := b.AddPoint(Point{X: 4, Y: 5, Size: 6})
	b.AddLink(a, c)
	b.SetX(c, 10)

	buf := b.Build()
	if buf.NodeCount() != 2 || buf.LinkCount() != 1 {
		t.Fatalf("counts = %d/%d, want 2/1", buf.NodeCount(), buf.LinkCount())
	}
	if buf.X[1] != 10 {
		t.Errorf("X[1] = %v, want 10", buf.X[1])
	}
	if !buf.HasLabel(0) || buf.HasLabel(1) {
		t.Errorf("HasLabel = %v/%v, want true/false", buf.HasLabel(0), buf.HasLabel(1))
	}
	if err := buf.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuilderWithoutLabels(t *testing.T) {
	b := NewBuilder(0, 0)
	b.AddPoint(Point{X: 1})
	if buf := b.Build(); buf.Labels != nil {
		t.Errorf("Labels = %v, want nil", buf.Labels)
	}
}

func TestValidateCatchesBadLinks(t *testing.T) {
	buf := &Buffers{
		X: []float32{0}, Y: []float32{0}, Size: []float32{1},
		R: []float32{0}, G: []float32{0}, B: []float32{0},
		LinkSrc: []uint32{0}, LinkTgt: []uint32{1},
	}
	if err := buf.Validate(); err == nil {
		t.Error("expected out-of-range link error")
	}
}

func TestBounds(t *testing.T) {
	buf := &Buffers{X: []float32{-1, 3, 2}, Y: []float32{5, -2, 0}}
	minX, minY, maxX, maxY, ok := buf.Bounds()
	if !ok || minX != -1 || minY != -2 || maxX != 3 || maxY != 5 {
		t.Errorf("Bounds = %v %v %v %v %v", minX, minY, maxX, maxY, ok)
	}
	if _, _, _, _, ok := (&Buffers{}).Bounds(); ok {
		t.Error("empty Bounds should report !ok")
	}

	inf := float32(math.Inf(1))
	buf = &Buffers{X: []float32{0, inf, 20}, Y: []float32{0, 5, 20}}
	if _, _, maxX, _, ok := buf.Bounds(); !ok || maxX != 20 {
		t.Errorf("Bounds with +Inf point: maxX = %v, ok = %v", maxX, ok)
	}
	if _, _, _, _, ok := (&Buffers{X: []float32{inf}, Y: []float32{0}}).Bounds(); ok {
		t.Error("Bounds of only non-finite points should report !ok")
	}
}

func TestHexColor(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"#000000", true}, {"#FfA0b1", true}, {"bad", false}, {"#12345", false}, {"#gg0000", false}, {"123456#", false},
	}
	for _, tt := range tests {
		_, _, _, ok := ParseHexColor(tt.in)
		if ok != tt.ok {
			t.Errorf("ParseHexColor(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
	}
	r, g, b, _ := ParseHexColor("#f5d76e")
	if got := FormatHexColor(r, g, b); got != "#f5d76e" {
		t.Errorf("FormatHexColor round trip = %q", got)
	}
	if got := MustHexColor("nope"); got != [3]float32{DefaultColor, DefaultColor, DefaultColor} {
		t.Errorf("MustHexColor(nope) = %v", got)
	}
}
