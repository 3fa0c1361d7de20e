// Package stream ingests the {"nodes":[...],"links":[...]} graph document
// incrementally. The document may be gzip-compressed and arbitrarily large;
// records are scanned one object at a time straight into SoA buffers, so the
// full document is never held in memory.
package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/progress"
	"github.com/canopyviz/canopy/pkg/soa"
)

// ProgressInterval is the number of records between progress callbacks.
const ProgressInterval = 50_000

// markerTail is how much of an unmatched buffer is kept while searching for a
// section marker, so a marker split across two chunks is still found.
const markerTail = 50

// maxWarnings caps the number of per-record warnings logged for one parse.
const maxWarnings = 20

var (
	nodesMarker = []byte(`"nodes":[`)
	linksMarker = []byte(`"links":[`)
)

type state int

const (
	searchNodes state = iota
	inNodes
	searchLinks
	inLinks
	done
)

func (s state) String() string {
	switch s {
	case searchNodes:
		return "search-nodes"
	case inNodes:
		return "in-nodes"
	case searchLinks:
		return "search-links"
	case inLinks:
		return "in-links"
	default:
		return "done"
	}
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for skipped-record warnings.
func WithLogger(l *log.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn progress.Func) Option {
	return func(p *Parser) { p.onProgress = fn }
}

// WithTotalBytes tells ParseStream the raw stream length so progress can be
// reported as a percentage. Without it progress percentages are -1.
func WithTotalBytes(n int64) Option {
	return func(p *Parser) { p.totalBytes = n }
}

// WithCapacity pre-sizes the node and link arrays.
func WithCapacity(nodes, links int) Option {
	return func(p *Parser) { p.builder = soa.NewBuilder(nodes, links) }
}

// Parser is the incremental record scanner. Feed it text chunks in order and
// call Finish once the input ends (cleanly or not).
type Parser struct {
	state   state
	buf     []byte
	builder *soa.Builder

	logger     *log.Logger
	onProgress progress.Func
	totalBytes int64
	bytesRead  int64

	records  int
	skipped  int
	warnings int
}

// NewParser returns a Parser in the search-nodes state.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: log.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.builder == nil {
		p.builder = soa.NewBuilder(0, 0)
	}
	return p
}

// Done reports whether the closing bracket of the links array has been seen.
func (p *Parser) Done() bool { return p.state == done }

// Skipped returns the number of malformed records dropped so far.
func (p *Parser) Skipped() int { return p.skipped }

// Feed appends chunk to the pending text and extracts every complete record.
func (p *Parser) Feed(chunk string) {
	if p.state == done {
		return
	}
	p.buf = append(p.buf, chunk...)
	p.scan()
}

func (p *Parser) scan() {
	for {
		switch p.state {
		case searchNodes, searchLinks:
			marker := nodesMarker
			if p.state == searchLinks {
				marker = linksMarker
			}
			idx := bytes.Index(p.buf, marker)
			if idx < 0 {
				if len(p.buf) > markerTail {
					p.buf = append(p.buf[:0], p.buf[len(p.buf)-markerTail:]...)
				}
				return
			}
			p.buf = p.buf[idx+len(marker):]
			p.state++

		case inNodes, inLinks:
			p.buf = trimSeparators(p.buf)
			if len(p.buf) == 0 {
				return
			}
			switch p.buf[0] {
			case ']':
				p.buf = p.buf[1:]
				p.state++
			case '{':
				end := matchBrace(p.buf)
				if end < 0 {
					return
				}
				p.record(p.buf[:end+1])
				p.buf = p.buf[end+1:]
			default:
				// Garbage between records: resync on the next object or the
				// end of the array.
				next := bytes.IndexAny(p.buf, "{]")
				p.warn("unexpected text between records", "state", p.state, "byte", string(p.buf[0]))
				if next < 0 {
					p.buf = p.buf[:0]
					return
				}
				p.buf = p.buf[next:]
			}

		case done:
			p.buf = nil
			return
		}
	}
}

func (p *Parser) record(obj []byte) {
	var err error
	if p.state == inNodes {
		var pt soa.Point
		if pt, err = parseNode(obj); err == nil {
			p.builder.AddPoint(pt)
		}
	} else {
		var src, tgt uint32
		if src, tgt, err = parseLink(obj, p.builder.NodeCount()); err == nil {
			p.builder.AddLink(src, tgt)
		}
	}
	if err != nil {
		p.skipped++
		p.warn("skipping malformed record", "state", p.state, "err", err)
		return
	}

	p.records++
	if p.records%ProgressInterval == 0 {
		p.onProgress.Report(p.stage(), p.percent())
	}
}

func (p *Parser) stage() string {
	return fmt.Sprintf("Parsed %d nodes, %d links", p.builder.NodeCount(), p.builder.LinkCount())
}

func (p *Parser) percent() float64 {
	if p.totalBytes <= 0 {
		return -1
	}
	return min(100, 100*float64(p.bytesRead)/float64(p.totalBytes))
}

func (p *Parser) warn(msg string, keyvals ...any) {
	p.warnings++
	if p.warnings <= maxWarnings {
		p.logger.Warn(msg, keyvals...)
	}
}

// Finish returns everything accumulated so far, trimmed to the actual counts.
// It is valid whether or not the parser reached the done state.
func (p *Parser) Finish() *soa.Buffers {
	if p.state != done {
		p.logger.Warn("stream ended before the document closed; keeping partial data",
			"state", p.state, "nodes", p.builder.NodeCount(), "links", p.builder.LinkCount())
	}
	if p.warnings > maxWarnings {
		p.logger.Warn("further warnings suppressed", "count", p.warnings-maxWarnings)
	}
	if p.skipped > 0 {
		p.logger.Info("malformed records skipped", "count", p.skipped)
	}
	p.buf = nil
	return p.builder.Build()
}

// ParseStream decodes r (gzip or plain) and parses the graph document it
// carries. A nil r fails with ErrCodeStreamAbsent. A stream that breaks off
// mid-document is not an error: the records read so far are returned.
func ParseStream(ctx context.Context, r io.Reader, opts ...Option) (*soa.Buffers, error) {
	dec, err := NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	p := NewParser(opts...)
	for !p.Done() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := dec.Next()
		p.bytesRead = dec.BytesRead()
		p.Feed(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			p.logger.Warn("stream read failed", "err", err, "bytes", dec.BytesRead())
			break
		}
	}
	p.onProgress.Report(p.stage(), 100)
	return p.Finish(), nil
}

func trimSeparators(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r', ',':
			i++
		default:
			return b[i:]
		}
	}
	return b[i:]
}

// matchBrace returns the index of the '}' closing the object that starts at
// b[0], or -1 if the object is not complete yet. Braces inside string
// literals are ignored; nested objects are balanced by depth.
func matchBrace(b []byte) int {
	depth := 0
	inString, escaped := false, false
	for i, c := range b {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// recordError builds the error for a record that cannot be used.
func recordError(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidRecord, format, args...)
}
