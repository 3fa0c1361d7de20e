// Package cli implements the canopy command-line interface.
//
// # Commands
//
// The main commands are:
//   - layout: Parse a Newick tree and write its buffers as a GTOL snapshot or gzip JSON
//   - render: Draw a tree, snapshot or JSON document to PNG through the LOD renderer
//   - inspect: Print node, link and bounds statistics for any input
//   - search: Find labels in any input
//   - export: Write small trees as Graphviz DOT, SVG or PNG node-link diagrams
//   - serve: Run the HTTP job API
//   - cache: Manage the snapshot cache
//
// # Configuration
//
// Settings come from --config, else canopy.toml, canopy.yaml or the user
// config directory, else the built-in defaults. See package config.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// timer logs completion of an operation with its elapsed duration.
type timer struct {
	logger *log.Logger
	start  time.Time
}

func newTimer(l *log.Logger) *timer {
	return &timer{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, e.g. "Wrote tree.gtol (1.234s)".
func (t *timer) done(msg string) {
	t.logger.Infof("%s (%s)", msg, time.Since(t.start).Round(time.Millisecond))
}
