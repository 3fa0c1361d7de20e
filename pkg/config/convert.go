package config

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/labels"
	"github.com/canopyviz/canopy/pkg/render"
	"github.com/canopyviz/canopy/pkg/visual"
)

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "log.level")
	}

	positive := []struct {
		name string
		v    float64
	}{
		{"layout.leaf_step", c.Layout.LeafStep},
		{"layout.x_scale", c.Layout.XScale},
		{"render.width", float64(c.Render.Width)},
		{"render.height", float64(c.Render.Height)},
		{"render.vertex_budget", float64(c.Render.VertexBudget)},
		{"render.edge_threshold", float64(c.Render.EdgeThreshold)},
		{"render.target_cells", float64(c.Render.TargetCells)},
		{"render.size_multiplier", c.Render.SizeMultiplier},
		{"labels.pool_size", float64(c.Labels.PoolSize)},
		{"labels.max_labels", float64(c.Labels.MaxLabels)},
		{"labels.cell_width", c.Labels.CellWidth},
		{"labels.cell_height", c.Labels.CellHeight},
		{"labels.font_size", c.Labels.FontSize},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "%s must be positive, got %g", p.name, p.v)
		}
	}
	nonNegative := []struct {
		name string
		v    float64
	}{
		{"layout.min_stem_gap", c.Layout.MinStemGap},
		{"layout.parent_stub", c.Layout.ParentStub},
		{"layout.weighted_stub", c.Layout.WeightedStub},
		{"layout.tip_pad", c.Layout.TipPad},
		{"labels.margin", c.Labels.Margin},
		{"cache.ttl", float64(c.Cache.TTL)},
		{"server.job_ttl", float64(c.Server.JobTTL)},
	}
	for _, p := range nonNegative {
		if p.v < 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "%s must not be negative, got %g", p.name, p.v)
		}
	}

	switch c.Cache.Backend {
	case cache.BackendNone, cache.BackendFile, cache.BackendBolt, cache.BackendRedis:
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend must be one of none, file, bolt, redis; got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == cache.BackendRedis && strings.TrimSpace(c.Cache.RedisAddr) == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
	}
	return nil
}

// LogLevel returns the parsed log level, info if it does not parse.
func (c Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// VisualOptions returns the visual builder options with the configured
// geometry and the stock sizes and colours.
func (c Config) VisualOptions() visual.Options {
	v := visual.DefaultOptions()
	v.XScale = c.Layout.XScale
	v.MinStemGap = c.Layout.MinStemGap
	v.ParentStub = c.Layout.ParentStub
	v.WeightedStub = c.Layout.WeightedStub
	v.TipPad = c.Layout.TipPad
	return v
}

// Budget returns the renderer frame budget.
func (c Config) Budget() render.Budget {
	return render.Budget{VertexBudget: c.Render.VertexBudget, EdgeThreshold: c.Render.EdgeThreshold}
}

// LabelOptions returns the label placer options.
func (c Config) LabelOptions() labels.Options {
	return labels.Options{
		PoolSize:   c.Labels.PoolSize,
		MaxLabels:  c.Labels.MaxLabels,
		CellWidth:  c.Labels.CellWidth,
		CellHeight: c.Labels.CellHeight,
		Margin:     c.Labels.Margin,
	}
}

// CacheOptions returns the cache backend options.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend: c.Cache.Backend,
		Dir:     c.Cache.Dir,
		Redis: cache.RedisConfig{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		},
	}
}

// OpenCache opens the configured backend and its keyer. A key prefix scopes
// every key.
func (c Config) OpenCache(ctx context.Context) (cache.Cache, cache.Keyer, error) {
	cc, err := cache.Open(ctx, c.CacheOptions())
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open %s cache", c.Cache.Backend)
	}
	keyer := cache.NewDefaultKeyer()
	if c.Cache.KeyPrefix != "" {
		keyer = cache.NewScopedKeyer(keyer, c.Cache.KeyPrefix)
	}
	return cc, keyer, nil
}
