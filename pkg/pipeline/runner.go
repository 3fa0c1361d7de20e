package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/httputil"
	"github.com/canopyviz/canopy/pkg/layout"
	"github.com/canopyviz/canopy/pkg/newick"
	"github.com/canopyviz/canopy/pkg/observability"
	"github.com/canopyviz/canopy/pkg/snapshot"
	"github.com/canopyviz/canopy/pkg/soa"
	"github.com/canopyviz/canopy/pkg/stream"
	"github.com/canopyviz/canopy/pkg/visual"
)

// Runner encapsulates pipeline execution with caching.
// Both the CLI and the job server use it.
//
// The Runner is stateless except for the cache and logger; it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	// Fetcher downloads URL inputs.
	Fetcher *httputil.Fetcher
	// TTL is the lifetime of cache entries written by the runner.
	TTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:   c,
		Keyer:   keyer,
		Logger:  logger,
		Fetcher: httputil.NewFetcher(c, logger),
		TTL:     DefaultCacheTTL,
	}
}

// Execute runs parse → layout → build → encode with caching. Progress is
// reported through opts.Progress on a single 0..100 scale per stage name.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := r.logger(opts)

	text, err := r.readNewick(ctx, opts)
	if err != nil {
		return nil, err
	}
	result := &Result{InputHash: cache.Hash([]byte(text))}

	if err := r.snapshotWithCacheInfo(ctx, text, opts, result); err != nil {
		return nil, err
	}
	result.Stats.PointCount = result.Buffers.NodeCount()
	result.Stats.LinkCount = result.Buffers.LinkCount()

	if opts.JSON {
		data, hit, err := r.JSONWithCacheInfo(ctx, result.Buffers, result.InputHash, opts)
		if err != nil {
			return nil, err
		}
		result.JSON = data
		result.CacheInfo.JSONHit = hit
	}

	logger.Info("built snapshot",
		"points", result.Stats.PointCount,
		"links", result.Stats.LinkCount,
		"bytes", len(result.Snapshot),
		"cached", result.CacheInfo.SnapshotHit,
		"duration", result.Stats.Total())
	return result, nil
}

// snapshotWithCacheInfo fills result.Buffers and result.Snapshot, from the
// cache when possible.
func (r *Runner) snapshotWithCacheInfo(ctx context.Context, text string, opts Options, result *Result) error {
	key := r.Keyer.SnapshotKey(result.InputHash, opts.keyOpts())
	logger := r.logger(opts)

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			b, err := snapshot.Decode(data)
			if err == nil {
				result.Buffers, result.Snapshot = b, data
				result.CacheInfo.SnapshotHit = true
				opts.Progress.Report("Loading cached snapshot", 100)
				return nil
			}
			logger.Warn("discarding unreadable cached snapshot", "key", key, "error", err)
		} else if err != nil {
			logger.Warn("cache read failed", "error", err)
		}
	}

	b, err := r.Build(ctx, text, opts, &result.Stats)
	if err != nil {
		return err
	}

	start := time.Now()
	opts.Progress.Report("Encoding snapshot", 0)
	data, err := snapshot.Encode(b)
	if err != nil {
		return err
	}
	result.Stats.EncodeTime = time.Since(start)
	result.Buffers, result.Snapshot = b, data
	opts.Progress.Report("Encoding snapshot", 100)

	if err := r.Cache.Set(ctx, key, data, r.TTL); err != nil {
		logger.Warn("cache write failed", "error", err)
	}
	return nil
}

// Build runs the uncached stages on Newick text and records their timings in
// stats, which may be nil.
func (r *Runner) Build(ctx context.Context, text string, opts Options, stats *Stats) (*soa.Buffers, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if stats == nil {
		stats = &Stats{}
	}
	logger := r.logger(opts)
	hooks := observability.Pipeline()

	parseOpts := []newick.Option{
		newick.WithContext(ctx),
		newick.WithProgress(opts.Progress),
		newick.WithLimit(opts.Limit),
	}
	if opts.Strict {
		parseOpts = append(parseOpts, newick.Strict())
	}
	hooks.OnParseStart(ctx, "newick", sourceKind(opts))
	start := time.Now()
	tree, err := newick.Parse(text, parseOpts...)
	stats.ParseTime = time.Since(start)
	if tree != nil {
		stats.NodeCount = tree.Len()
	}
	hooks.OnParseComplete(ctx, "newick", stats.NodeCount, stats.ParseTime, err)
	if err != nil {
		return nil, err
	}
	stats.Depth = tree.Depth()
	logger.Info("parsed newick",
		"nodes", tree.Len(),
		"leaves", tree.Leaves(),
		"depth", stats.Depth,
		"duration", stats.ParseTime)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hooks.OnLayoutStart(ctx, opts.mode(), tree.Len())
	start = time.Now()
	b, err := r.layout(ctx, tree, opts, stats)
	points, links := 0, 0
	if b != nil {
		points, links = b.NodeCount(), b.LinkCount()
	}
	hooks.OnLayoutComplete(ctx, opts.mode(), points, links, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	logger.Info("computed layout",
		"mode", opts.mode(),
		"points", points,
		"links", links,
		"duration", stats.LayoutTime+stats.BuildTime)
	return b, nil
}

func (r *Runner) layout(ctx context.Context, tree *newick.Tree, opts Options, stats *Stats) (*soa.Buffers, error) {
	start := time.Now()
	coords, err := layout.Compute(ctx, tree, opts.LeafStep, opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	stats.LayoutTime = time.Since(start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	vis, err := visual.Build(tree, coords, opts.Visual, opts.Progress)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	b := vis.Buffers
	if opts.Polar {
		b = layout.ApplyPolar(b)
	}
	stats.BuildTime = time.Since(start)
	return b, nil
}

// JSONWithCacheInfo encodes b as the gzip JSON document, from the cache
// when possible.
func (r *Runner) JSONWithCacheInfo(ctx context.Context, b *soa.Buffers, inputHash string, opts Options) ([]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	key := r.Keyer.ResultKey(inputHash, opts.keyOpts())
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			opts.Progress.Report("compressing", 100)
			return data, true, nil
		}
	}

	var buf bytes.Buffer
	err := stream.WriteJSON(&buf, b, stream.WriteOptions{Progress: opts.Progress})
	if err != nil {
		return nil, false, fmt.Errorf("encode json: %w", err)
	}
	data := buf.Bytes()
	if err := r.Cache.Set(ctx, key, data, r.TTL); err != nil {
		r.logger(opts).Warn("cache write failed", "error", err)
	}
	return data, false, nil
}

// Close releases the runner's cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) logger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return r.Logger
}

// readNewick resolves a URL, file path or literal text to the first tree.
func (r *Runner) readNewick(ctx context.Context, opts Options) (string, error) {
	switch {
	case opts.Literal:
		return newick.FirstTree(opts.Input)
	case !httputil.IsURL(opts.Input):
		return newick.ReadInput(opts.Input)
	}
	data, _, err := r.Fetcher.Fetch(ctx, opts.Input)
	if err != nil {
		return "", err
	}
	return newick.FirstTree(string(data))
}

func sourceKind(opts Options) string {
	if opts.Literal {
		return "text"
	}
	if httputil.IsURL(opts.Input) {
		return "url"
	}
	if info, err := os.Stat(opts.Input); err == nil && !info.IsDir() {
		return "file"
	}
	return "text"
}
