// Package pipeline turns a Newick tree into render-ready point buffers.
//
// The pipeline runs four stages, each reporting progress:
//
//  1. Parse: Newick text to a topology (pkg/newick)
//  2. Layout: logical x/y per node (pkg/layout)
//  3. Build: points, bends and links (pkg/visual), optionally projected polar
//  4. Encode: the GTOL snapshot (pkg/snapshot) and, on request, the gzip
//     JSON document (pkg/stream)
//
// A [Runner] executes the stages with a content-addressed cache in front of
// them, so the same input and options never lay out twice. Long builds run as
// a [Job]: a goroutine that owns its buffers until it finishes and posts
// progress messages to whoever started it. A [JobStore] tracks jobs by ID for
// the HTTP server and evicts them after an hour.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	res, err := runner.Execute(ctx, pipeline.Options{Input: "tree.nwk"})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Stats.PointCount, len(res.Snapshot))
package pipeline

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/progress"
	"github.com/canopyviz/canopy/pkg/soa"
	"github.com/canopyviz/canopy/pkg/visual"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultLeafStep is the vertical distance between consecutive leaves.
	DefaultLeafStep = 400.0

	// DefaultCacheTTL is how long built snapshots stay cached.
	DefaultCacheTTL = cache.DefaultTTL

	// MaxLimit bounds Options.Limit.
	MaxLimit = 50_000_000
)

// =============================================================================
// Options
// =============================================================================

// Options configures a pipeline run.
type Options struct {
	// Input is a Newick file path, an http(s) URL or literal Newick text.
	Input string `json:"input"`
	// Literal treats Input as Newick text only, never as a path or URL.
	Literal bool `json:"literal,omitempty"`

	LeafStep float64        `json:"leaf_step,omitempty"`
	Visual   visual.Options `json:"-"`
	// Polar projects the finished layout onto a ring.
	Polar bool `json:"polar,omitempty"`
	// Strict rejects unclosed groups instead of closing them at end of input.
	Strict bool `json:"strict,omitempty"`
	// Limit stops parsing after this many nodes. Zero means no limit.
	Limit int `json:"limit,omitempty"`

	// JSON also produces the gzip JSON document.
	JSON bool `json:"json,omitempty"`
	// Refresh bypasses cache reads; results are still written.
	Refresh bool `json:"refresh,omitempty"`

	Logger   *log.Logger   `json:"-"`
	Progress progress.Func `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks the options and fills zero values.
// It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Input == "" {
		return errors.New(errors.ErrCodeInvalidInput, "no input: pass a Newick file or text")
	}
	if o.LeafStep == 0 {
		o.LeafStep = DefaultLeafStep
	}
	if o.LeafStep < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "leaf step must be positive, got %g", o.LeafStep)
	}
	if o.Limit < 0 || o.Limit > MaxLimit {
		return errors.New(errors.ErrCodeInvalidInput, "limit must be between 0 and %d, got %d", MaxLimit, o.Limit)
	}
	if o.Visual == (visual.Options{}) {
		o.Visual = visual.DefaultOptions()
	}
	if o.Visual.XScale <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "x scale must be positive, got %g", o.Visual.XScale)
	}
	o.validated = true
	return nil
}

func (o *Options) keyOpts() cache.SnapshotKeyOpts {
	return cache.SnapshotKeyOpts{
		LeafStep:     o.LeafStep,
		XScale:       o.Visual.XScale,
		MinStemGap:   o.Visual.MinStemGap,
		ParentStub:   o.Visual.ParentStub,
		WeightedStub: o.Visual.WeightedStub,
		Polar:        o.Polar,
		Strict:       o.Strict,
		Limit:        o.Limit,
	}
}

func (o *Options) mode() string {
	if o.Polar {
		return "polar"
	}
	return "rect"
}

// =============================================================================
// Result Types
// =============================================================================

// Result holds the output of a pipeline run.
type Result struct {
	Buffers *soa.Buffers
	// Snapshot is the GTOL encoding of Buffers.
	Snapshot []byte
	// JSON is the gzip JSON document, when Options.JSON was set.
	JSON []byte
	// InputHash is the SHA-256 of the Newick text that was laid out.
	InputHash string

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	ParseTime  time.Duration
	LayoutTime time.Duration
	BuildTime  time.Duration
	EncodeTime time.Duration

	NodeCount  int // logical tree nodes; zero on a snapshot cache hit
	Depth      int
	PointCount int
	LinkCount  int
}

// Total returns the summed stage time.
func (s Stats) Total() time.Duration {
	return s.ParseTime + s.LayoutTime + s.BuildTime + s.EncodeTime
}

// CacheInfo reports which artifacts came from the cache.
type CacheInfo struct {
	SnapshotHit bool
	JSONHit     bool
}

func (r *Result) String() string {
	return fmt.Sprintf("%d points, %d links, %d snapshot bytes", r.Stats.PointCount, r.Stats.LinkCount, len(r.Snapshot))
}
