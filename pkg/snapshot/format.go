// Package snapshot reads and writes the GTOL container: a flat binary image
// of finished point, edge and label buffers that can be loaded without
// re-parsing.
//
// Layout, all integers little-endian:
//
//	[0:4]   magic "GTOL"
//	[4:8]   uint32 version
//	[8:12]  uint32 node count N
//	[12:16] uint32 link count M
//	[16:20] uint32 label blob length L
//	[20:32] reserved, zero
//	float32[N] x, y, size, r, g, b
//	uint32[M]  link source, link target
//	uint32[N]  cumulative label end offsets
//	byte[L]    UTF-8 label blob
//
// The container can be decoded from one in-memory buffer or read section by
// section from any io.ReaderAt.
package snapshot

import (
	"encoding/binary"

	"github.com/canopyviz/canopy/pkg/errors"
)

const (
	// Magic identifies a GTOL container.
	Magic = "GTOL"
	// Version is the only container version this package reads and writes.
	Version = 1
	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 32
)

// Section names one array of the container body.
type Section int

const (
	SectionX Section = iota
	SectionY
	SectionSize
	SectionR
	SectionG
	SectionB
	SectionLinkSrc
	SectionLinkTgt
	SectionLabelOffsets
	SectionLabelBlob
	numSections
)

var sectionNames = [...]string{"x", "y", "size", "r", "g", "b", "link_src", "link_tgt", "label_offsets", "label_blob"}

func (s Section) String() string {
	if s < 0 || s >= numSections {
		return "unknown"
	}
	return sectionNames[s]
}

// Header is the decoded fixed header.
type Header struct {
	Version    uint32
	NodeCount  uint32
	LinkCount  uint32
	LabelBytes uint32
}

// Section returns the byte offset and length of s within the container.
func (h Header) Section(s Section) (offset, length int64) {
	n, m := int64(h.NodeCount), int64(h.LinkCount)
	offset = HeaderSize
	for cur := SectionX; cur <= s; cur++ {
		switch cur {
		case SectionLinkSrc, SectionLinkTgt:
			length = 4 * m
		case SectionLabelBlob:
			length = int64(h.LabelBytes)
		default:
			length = 4 * n
		}
		if cur < s {
			offset += length
		}
	}
	return offset, length
}

// Size returns the total container size implied by the header.
func (h Header) Size() int64 {
	off, length := h.Section(SectionLabelBlob)
	return off + length
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.NodeCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.LinkCount)
	binary.LittleEndian.PutUint32(buf[16:20], h.LabelBytes)
	return buf
}

// ParseHeader validates magic and version and decodes the header fields.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, errors.New(errors.ErrCodeInvalidFormat, "snapshot header truncated: %d bytes", len(buf))
	}
	if string(buf[0:4]) != Magic {
		return Header{}, errors.New(errors.ErrCodeInvalidFormat, "bad snapshot magic %q", buf[0:4])
	}
	h := Header{
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		NodeCount:  binary.LittleEndian.Uint32(buf[8:12]),
		LinkCount:  binary.LittleEndian.Uint32(buf[12:16]),
		LabelBytes: binary.LittleEndian.Uint32(buf[16:20]),
	}
	if h.Version != Version {
		return Header{}, errors.New(errors.ErrCodeUnsupportedVersion, "snapshot version %d not supported (want %d)", h.Version, Version)
	}
	return h, nil
}
