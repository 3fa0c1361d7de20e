package snapshot

import (
	"encoding/binary"
	"io"
	"io/fs"
	"math"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/soa"
)

// Decode parses a whole container held in memory. The header is validated
// and the declared size checked against len(data) before any array is
// allocated. The label blob aliases data.
func Decode(data []byte) (*soa.Buffers, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) < h.Size() {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "snapshot truncated: %d bytes, header declares %d", len(data), h.Size())
	}
	section := func(s Section) []byte {
		off, n := h.Section(s)
		return data[off : off+n]
	}

	out := &soa.Buffers{
		X:       float32s(section(SectionX)),
		Y:       float32s(section(SectionY)),
		Size:    float32s(section(SectionSize)),
		R:       float32s(section(SectionR)),
		G:       float32s(section(SectionG)),
		B:       float32s(section(SectionB)),
		LinkSrc: uint32s(section(SectionLinkSrc)),
		LinkTgt: uint32s(section(SectionLinkTgt)),
	}
	if h.LabelBytes > 0 {
		labels, err := soa.NewBlobLabels(section(SectionLabelBlob), uint32s(section(SectionLabelOffsets)))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "snapshot labels")
		}
		out.Labels = labels
	}
	if err := out.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "snapshot body")
	}
	return out, nil
}

// Reader reads a container section by section from an io.ReaderAt, such as
// an *os.File or an HTTP range-backed reader.
type Reader struct {
	r      io.ReaderAt
	header Header
}

// Open reads and validates the header, then checks that r holds the whole
// declared body so that a corrupt header cannot size a section read beyond
// the data. The length comes from a Size method (*bytes.Reader,
// *io.SectionReader), from Stat (*os.File), or else from reading the last
// declared byte.
func Open(r io.ReaderAt) (*Reader, error) {
	buf := make([]byte, HeaderSize)
	if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read snapshot header")
	}
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	if err := checkLength(r, h.Size()); err != nil {
		return nil, err
	}
	return &Reader{r: r, header: h}, nil
}

func checkLength(r io.ReaderAt, want int64) error {
	var have int64
	switch v := r.(type) {
	case interface{ Size() int64 }:
		have = v.Size()
	case interface{ Stat() (fs.FileInfo, error) }:
		fi, err := v.Stat()
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "stat snapshot")
		}
		have = fi.Size()
	default:
		last := make([]byte, 1)
		if n, err := r.ReadAt(last, want-1); n == 1 {
			return nil
		} else if err != nil && err != io.EOF {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "read snapshot end")
		}
		return errors.New(errors.ErrCodeInvalidFormat, "snapshot truncated: header declares %d bytes", want)
	}
	if have < want {
		return errors.New(errors.ErrCodeInvalidFormat, "snapshot truncated: %d bytes, header declares %d", have, want)
	}
	return nil
}

// Header returns the validated header.
func (r *Reader) Header() Header { return r.header }

// ReadSection reads the raw bytes of one section.
func (r *Reader) ReadSection(s Section) ([]byte, error) {
	off, n := r.header.Section(s)
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if got, err := r.r.ReadAt(buf, off); err != nil && !(err == io.EOF && got == len(buf)) {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read %s section", s)
	}
	return buf, nil
}

// Float32s reads one float32 section.
func (r *Reader) Float32s(s Section) ([]float32, error) {
	buf, err := r.ReadSection(s)
	if err != nil {
		return nil, err
	}
	return float32s(buf), nil
}

// Uint32s reads one uint32 section.
func (r *Reader) Uint32s(s Section) ([]uint32, error) {
	buf, err := r.ReadSection(s)
	if err != nil {
		return nil, err
	}
	return uint32s(buf), nil
}

// Labels reads only the label offsets and blob.
func (r *Reader) Labels() (*soa.BlobLabels, error) {
	offsets, err := r.Uint32s(SectionLabelOffsets)
	if err != nil {
		return nil, err
	}
	blob, err := r.ReadSection(SectionLabelBlob)
	if err != nil {
		return nil, err
	}
	labels, err := soa.NewBlobLabels(blob, offsets)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "snapshot labels")
	}
	return labels, nil
}

// ReadAll reads every section into a Buffers.
func (r *Reader) ReadAll() (*soa.Buffers, error) {
	floats := make([][]float32, 0, 6)
	for s := SectionX; s <= SectionB; s++ {
		v, err := r.Float32s(s)
		if err != nil {
			return nil, err
		}
		floats = append(floats, v)
	}
	src, err := r.Uint32s(SectionLinkSrc)
	if err != nil {
		return nil, err
	}
	tgt, err := r.Uint32s(SectionLinkTgt)
	if err != nil {
		return nil, err
	}
	out := &soa.Buffers{
		X: floats[0], Y: floats[1], Size: floats[2],
		R: floats[3], G: floats[4], B: floats[5],
		LinkSrc: src, LinkTgt: tgt,
	}
	if r.header.LabelBytes > 0 {
		labels, err := r.Labels()
		if err != nil {
			return nil, err
		}
		out.Labels = labels
	}
	if err := out.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "snapshot body")
	}
	return out, nil
}

// ReadLabels opens r and reads only its label section.
func ReadLabels(r io.ReaderAt) (*soa.BlobLabels, error) {
	sr, err := Open(r)
	if err != nil {
		return nil, err
	}
	return sr.Labels()
}

func float32s(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

func uint32s(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return out
}
