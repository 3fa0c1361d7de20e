package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/httputil"
	"github.com/canopyviz/canopy/pkg/newick"
	"github.com/canopyviz/canopy/pkg/snapshot"
	"github.com/canopyviz/canopy/pkg/stream"
)

// Format is a recognised input format.
type Format string

const (
	FormatNewick   Format = "newick"
	FormatSnapshot Format = "gtol"
	FormatJSON     Format = "json"
)

// Detect sniffs the format of a local input. Input that is not a readable
// file is Newick text.
func Detect(input string) (Format, error) {
	f, err := os.Open(input)
	if err != nil {
		return FormatNewick, nil
	}
	defer f.Close()
	head, err := bufio.NewReader(f).Peek(4)
	if err != nil && len(head) == 0 {
		return "", errors.New(errors.ErrCodeInvalidInput, "%s is empty", input)
	}
	return sniff(head), nil
}

func sniff(head []byte) Format {
	head = bytes.TrimLeft(head, " \t\r\n")
	switch {
	case bytes.HasPrefix(head, []byte(snapshot.Magic)):
		return FormatSnapshot
	case bytes.HasPrefix(head, []byte{0x1f, 0x8b}), bytes.HasPrefix(head, []byte("{")):
		return FormatJSON
	default:
		return FormatNewick
	}
}

// Load produces buffers from any supported input: a GTOL snapshot, a gzip or
// plain JSON graph document, or Newick (through Execute and its cache).
// Inputs may be local files or http(s) URLs; JSON documents are parsed
// while they stream in. Result.Snapshot is only set for Newick and snapshot
// inputs.
func (r *Runner) Load(ctx context.Context, opts Options) (*Result, error) {
	if opts.Literal {
		return r.Execute(ctx, opts)
	}
	if httputil.IsURL(opts.Input) {
		return r.loadURL(ctx, opts)
	}
	format, err := Detect(opts.Input)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatSnapshot:
		data, err := os.ReadFile(opts.Input)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", opts.Input)
		}
		return r.decodeSnapshot(data, opts)

	case FormatJSON:
		f, err := os.Open(opts.Input)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStreamAbsent, err, "open %s", opts.Input)
		}
		defer f.Close()
		size := int64(-1)
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		return r.parseStream(ctx, f, size, opts)

	default:
		return r.Execute(ctx, opts)
	}
}

func (r *Runner) loadURL(ctx context.Context, opts Options) (*Result, error) {
	body, size, err := r.Fetcher.Open(ctx, opts.Input)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	br := bufio.NewReaderSize(body, stream.ChunkSize)
	head, _ := br.Peek(4)

	switch sniff(head) {
	case FormatSnapshot:
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStreamAbsent, err, "read %s", opts.Input)
		}
		return r.decodeSnapshot(data, opts)
	case FormatJSON:
		return r.parseStream(ctx, br, size, opts)
	default:
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStreamAbsent, err, "read %s", opts.Input)
		}
		text, err := newick.FirstTree(string(data))
		if err != nil {
			return nil, err
		}
		opts.Input, opts.Literal = text, true
		return r.Execute(ctx, opts)
	}
}

func (r *Runner) decodeSnapshot(data []byte, opts Options) (*Result, error) {
	start := time.Now()
	b, err := snapshot.Decode(data)
	if err != nil {
		return nil, err
	}
	res := &Result{Buffers: b, Snapshot: data}
	res.Stats.EncodeTime = time.Since(start)
	res.Stats.PointCount, res.Stats.LinkCount = b.NodeCount(), b.LinkCount()
	r.logger(opts).Info("loaded snapshot",
		"points", b.NodeCount(),
		"links", b.LinkCount(),
		"duration", res.Stats.EncodeTime)
	return res, nil
}

func (r *Runner) parseStream(ctx context.Context, src io.Reader, size int64, opts Options) (*Result, error) {
	logger := r.logger(opts)
	streamOpts := []stream.Option{stream.WithLogger(logger), stream.WithProgress(opts.Progress)}
	if size > 0 {
		streamOpts = append(streamOpts, stream.WithTotalBytes(size))
	}
	start := time.Now()
	b, err := stream.ParseStream(ctx, src, streamOpts...)
	if err != nil {
		return nil, err
	}
	res := &Result{Buffers: b}
	res.Stats.ParseTime = time.Since(start)
	res.Stats.PointCount, res.Stats.LinkCount = b.NodeCount(), b.LinkCount()
	logger.Info("parsed graph stream",
		"points", b.NodeCount(),
		"links", b.LinkCount(),
		"duration", res.Stats.ParseTime)
	return res, nil
}
