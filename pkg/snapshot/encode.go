package snapshot

import (
	"encoding/binary"
	"io"
	"math"
	"net"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/soa"
)

// HeaderFor returns the header describing b.
func HeaderFor(b *soa.Buffers) (Header, error) {
	return header(b, labelBytes(b.Labels))
}

func header(b *soa.Buffers, labelLen int) (Header, error) {
	if err := b.Validate(); err != nil {
		return Header{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "buffers")
	}
	if uint64(labelLen) > math.MaxUint32 || uint64(b.NodeCount()) > math.MaxUint32 {
		return Header{}, errors.New(errors.ErrCodeInvalidInput, "buffers too large for a snapshot")
	}
	return Header{
		Version:    Version,
		NodeCount:  uint32(b.NodeCount()),
		LinkCount:  uint32(b.LinkCount()),
		LabelBytes: uint32(labelLen),
	}, nil
}

// labelBytes sums label lengths without building the blob.
func labelBytes(l soa.Labels) int {
	if l == nil {
		return 0
	}
	if bl, ok := l.(*soa.BlobLabels); ok {
		return len(bl.Blob())
	}
	n := 0
	for i := range l.Len() {
		n += len(l.Get(i))
	}
	return n
}

// Parts returns the container as an ordered list of byte slices, one per
// header and section, for writers that stream or assemble blobs without a
// single contiguous copy. The label blob part aliases b's label storage when
// b already holds blob labels.
func Parts(b *soa.Buffers) ([][]byte, error) {
	blob, offsets := soa.EncodeLabels(b.Labels)
	h, err := header(b, len(blob))
	if err != nil {
		return nil, err
	}
	if offsets == nil {
		offsets = make([]uint32, b.NodeCount())
	}
	return [][]byte{
		h.encode(),
		float32Bytes(b.X), float32Bytes(b.Y), float32Bytes(b.Size),
		float32Bytes(b.R), float32Bytes(b.G), float32Bytes(b.B),
		uint32Bytes(b.LinkSrc), uint32Bytes(b.LinkTgt),
		uint32Bytes(offsets),
		blob,
	}, nil
}

// Write streams the container to w and returns the number of bytes written.
func Write(w io.Writer, b *soa.Buffers) (int64, error) {
	parts, err := Parts(b)
	if err != nil {
		return 0, err
	}
	bufs := net.Buffers(parts)
	return bufs.WriteTo(w)
}

// Encode returns the container as one contiguous buffer.
func Encode(b *soa.Buffers) ([]byte, error) {
	parts, err := Parts(b)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

func float32Bytes(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

func uint32Bytes(v []uint32) []byte {
	out := make([]byte, 4*len(v))
	for i, u := range v {
		binary.LittleEndian.PutUint32(out[4*i:], u)
	}
	return out
}
