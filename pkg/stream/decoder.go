package stream

import (
	"bufio"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"

	"github.com/canopyviz/canopy/pkg/errors"
)

// ChunkSize is the number of decompressed bytes pulled per Next call.
const ChunkSize = 64 << 10

// Decoder turns a possibly gzip-compressed byte stream into a sequence of
// UTF-8 text chunks. Chunks never end inside a multi-byte rune: an incomplete
// trailing sequence is carried into the next chunk.
type Decoder struct {
	src     io.Reader
	counter *countingReader
	buf     []byte
	carry   []byte
	err     error
}

// NewDecoder wraps r. A gzip magic header selects decompression; anything
// else is read as plain text. A nil r fails with ErrCodeStreamAbsent.
func NewDecoder(r io.Reader) (*Decoder, error) {
	if r == nil {
		return nil, errors.New(errors.ErrCodeStreamAbsent, "input stream is absent")
	}
	counter := &countingReader{r: r}
	br := bufio.NewReaderSize(counter, ChunkSize)

	d := &Decoder{src: br, counter: counter, buf: make([]byte, ChunkSize)}
	magic, err := br.Peek(2)
	if err != nil {
		// Empty or one-byte stream: read it as plain text.
		return d, nil
	}
	if magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read gzip header")
		}
		d.src = gz
	}
	return d, nil
}

// Next returns the next text chunk. It returns io.EOF once the stream is
// exhausted; any other error means the stream broke off and the returned
// chunk holds whatever was decoded before the break.
func (d *Decoder) Next() (string, error) {
	if d.err != nil {
		return d.flushCarry(), d.err
	}

	n, err := io.ReadAtLeast(d.src, d.buf, 1)
	data := d.buf[:n]
	if len(d.carry) > 0 {
		data = append(d.carry, data...)
		d.carry = nil
	}

	if err != nil {
		d.err = err
		return string(data), err
	}

	cut := completePrefix(data)
	if cut < len(data) {
		d.carry = append([]byte(nil), data[cut:]...)
	}
	return string(data[:cut]), nil
}

// BytesRead returns the number of raw (compressed) bytes consumed so far.
func (d *Decoder) BytesRead() int64 { return d.counter.n }

func (d *Decoder) flushCarry() string {
	s := string(d.carry)
	d.carry = nil
	return s
}

// Close releases the gzip reader, if any. The underlying reader is not closed.
func (d *Decoder) Close() error {
	if gz, ok := d.src.(*gzip.Reader); ok {
		return gz.Close()
	}
	return nil
}

// completePrefix returns the length of the longest prefix of p that does not
// end inside a multi-byte UTF-8 sequence.
func completePrefix(p []byte) int {
	n := len(p)
	for back := 1; back <= utf8.UTFMax && back <= n; back++ {
		c := p[n-back]
		if c < utf8.RuneSelf {
			return n
		}
		if utf8.RuneStart(c) {
			if utf8.FullRune(p[n-back:]) {
				return n
			}
			return n - back
		}
	}
	return n
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
