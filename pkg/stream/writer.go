package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/canopyviz/canopy/pkg/progress"
	"github.com/canopyviz/canopy/pkg/soa"
)

// WriteChunk is the number of records encoded per batch by WriteJSON.
const WriteChunk = 50_000

type nodeOut struct {
	ID    int     `json:"id"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Size  float32 `json:"size"`
	Color string  `json:"color"`
	Label string  `json:"label,omitempty"`
}

type linkOut struct {
	Source uint32 `json:"source"`
	Target uint32 `json:"target"`
}

// WriteOptions configures WriteJSON.
type WriteOptions struct {
	// Level is the gzip level; 0 selects gzip.BestSpeed.
	Level int
	// Plain disables compression.
	Plain    bool
	Progress progress.Func
}

// WriteJSON writes b as the {"nodes":[...],"links":[...]} document that
// ParseStream reads, gzip-compressed unless opts.Plain is set. Records are
// encoded in batches of WriteChunk so the whole document is never built in
// memory.
func WriteJSON(w io.Writer, b *soa.Buffers, opts WriteOptions) error {
	if opts.Plain {
		return writeDocument(w, b, opts)
	}
	level := opts.Level
	if level == 0 {
		level = gzip.BestSpeed
	}
	gz, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return fmt.Errorf("gzip writer: %w", err)
	}
	if err := writeDocument(gz, b, opts); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

func writeDocument(w io.Writer, b *soa.Buffers, opts WriteOptions) error {
	bw := bufio.NewWriterSize(w, 1<<16)

	n, m := b.NodeCount(), b.LinkCount()
	total := float64(n + m)
	if total == 0 {
		total = 1
	}

	if _, err := bw.WriteString(`{"nodes":[`); err != nil {
		return err
	}
	batch := make([]nodeOut, 0, min(n, WriteChunk))
	for start := 0; start < n; start += WriteChunk {
		end := min(n, start+WriteChunk)
		batch = batch[:0]
		for i := start; i < end; i++ {
			batch = append(batch, nodeOut{
				ID:    i,
				X:     b.X[i],
				Y:     b.Y[i],
				Size:  b.Size[i],
				Color: soa.FormatHexColor(b.R[i], b.G[i], b.B[i]),
				Label: b.Label(i),
			})
		}
		if err := writeBatch(bw, batch, start > 0); err != nil {
			return fmt.Errorf("write nodes: %w", err)
		}
		opts.Progress.Report("Writing nodes", 100*float64(end)/total)
	}

	if _, err := bw.WriteString(`],"links":[`); err != nil {
		return err
	}
	links := make([]linkOut, 0, min(m, WriteChunk))
	for start := 0; start < m; start += WriteChunk {
		end := min(m, start+WriteChunk)
		links = links[:0]
		for j := start; j < end; j++ {
			links = append(links, linkOut{Source: b.LinkSrc[j], Target: b.LinkTgt[j]})
		}
		if err := writeBatch(bw, links, start > 0); err != nil {
			return fmt.Errorf("write links: %w", err)
		}
		opts.Progress.Report("Writing links", 100*float64(n+end)/total)
	}
	if _, err := bw.WriteString("]}"); err != nil {
		return err
	}
	return bw.Flush()
}

// writeBatch encodes items as a JSON array and writes its elements without
// the surrounding brackets, preceded by a comma when continuing an array.
func writeBatch[T any](w *bufio.Writer, items []T, continued bool) error {
	if len(items) == 0 {
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if continued {
		if err := w.WriteByte(','); err != nil {
			return err
		}
	}
	_, err = w.Write(data[1 : len(data)-1])
	return err
}
