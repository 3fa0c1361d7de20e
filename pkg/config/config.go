// Package config holds the tunables of every stage, with defaults, and
// loads overrides from a TOML or YAML file.
//
// Unset keys keep their defaults, unknown keys are rejected:
//
//	# canopy.toml
//	[layout]
//	leaf_step = 300
//	polar = true
//
//	[cache]
//	backend = "bolt"
//	ttl = "72h"
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/grid"
	"github.com/canopyviz/canopy/pkg/labels"
	"github.com/canopyviz/canopy/pkg/pipeline"
	"github.com/canopyviz/canopy/pkg/render"
	"github.com/canopyviz/canopy/pkg/visual"
)

// Config is the full configuration.
type Config struct {
	Log    LogConfig    `toml:"log" yaml:"log"`
	Layout LayoutConfig `toml:"layout" yaml:"layout"`
	Render RenderConfig `toml:"render" yaml:"render"`
	Labels LabelsConfig `toml:"labels" yaml:"labels"`
	Cache  CacheConfig  `toml:"cache" yaml:"cache"`
	Server ServerConfig `toml:"server" yaml:"server"`
}

// LogConfig selects the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// LayoutConfig is the tree geometry.
type LayoutConfig struct {
	LeafStep     float64 `toml:"leaf_step" yaml:"leaf_step"`
	XScale       float64 `toml:"x_scale" yaml:"x_scale"`
	MinStemGap   float64 `toml:"min_stem_gap" yaml:"min_stem_gap"`
	ParentStub   float64 `toml:"parent_stub" yaml:"parent_stub"`
	WeightedStub float64 `toml:"weighted_stub" yaml:"weighted_stub"`
	TipPad       float64 `toml:"tip_pad" yaml:"tip_pad"`
	Polar        bool    `toml:"polar" yaml:"polar"`
	Strict       bool    `toml:"strict" yaml:"strict"`
}

// RenderConfig is the frame budget and output image.
type RenderConfig struct {
	Width          int     `toml:"width" yaml:"width"`
	Height         int     `toml:"height" yaml:"height"`
	VertexBudget   int     `toml:"vertex_budget" yaml:"vertex_budget"`
	EdgeThreshold  int     `toml:"edge_threshold" yaml:"edge_threshold"`
	TargetCells    int     `toml:"target_cells" yaml:"target_cells"`
	SizeMultiplier float64 `toml:"size_multiplier" yaml:"size_multiplier"`
}

// LabelsConfig bounds label placement.
type LabelsConfig struct {
	PoolSize   int     `toml:"pool_size" yaml:"pool_size"`
	MaxLabels  int     `toml:"max_labels" yaml:"max_labels"`
	CellWidth  float64 `toml:"cell_width" yaml:"cell_width"`
	CellHeight float64 `toml:"cell_height" yaml:"cell_height"`
	Margin     float64 `toml:"margin" yaml:"margin"`
	FontSize   float64 `toml:"font_size" yaml:"font_size"`
}

// CacheConfig selects the snapshot cache backend.
type CacheConfig struct {
	// Backend is one of none, file, bolt, redis.
	Backend string        `toml:"backend" yaml:"backend"`
	Dir     string        `toml:"dir" yaml:"dir"`
	TTL     time.Duration `toml:"ttl" yaml:"ttl"`

	RedisAddr     string `toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `toml:"redis_password" yaml:"redis_password"`
	RedisDB       int    `toml:"redis_db" yaml:"redis_db"`
	KeyPrefix     string `toml:"key_prefix" yaml:"key_prefix"`
}

// ServerConfig configures `canopy serve`.
type ServerConfig struct {
	Addr              string        `toml:"addr" yaml:"addr"`
	JobTTL            time.Duration `toml:"job_ttl" yaml:"job_ttl"`
	ReadHeaderTimeout time.Duration `toml:"read_header_timeout" yaml:"read_header_timeout"`
	// Input is the Newick file built when a start request names none.
	Input string `toml:"input" yaml:"input"`
}

// Default returns the built-in configuration.
func Default() Config {
	v := visual.DefaultOptions()
	l := labels.DefaultOptions()
	return Config{
		Log: LogConfig{Level: "info"},
		Layout: LayoutConfig{
			LeafStep:     pipeline.DefaultLeafStep,
			XScale:       v.XScale,
			MinStemGap:   v.MinStemGap,
			ParentStub:   v.ParentStub,
			WeightedStub: v.WeightedStub,
			TipPad:       v.TipPad,
		},
		Render: RenderConfig{
			Width:          1600,
			Height:         1000,
			VertexBudget:   render.DefaultVertexBudget,
			EdgeThreshold:  render.DefaultEdgeThreshold,
			TargetCells:    grid.DefaultTargetCells,
			SizeMultiplier: 1,
		},
		Labels: LabelsConfig{
			PoolSize:   l.PoolSize,
			MaxLabels:  l.MaxLabels,
			CellWidth:  l.CellWidth,
			CellHeight: l.CellHeight,
			Margin:     l.Margin,
			FontSize:   12,
		},
		Cache: CacheConfig{
			Backend:   cache.BackendFile,
			Dir:       DefaultCacheDir(),
			TTL:       cache.DefaultTTL,
			RedisAddr: "localhost:6379",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			JobTTL:            pipeline.DefaultJobTTL,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// DefaultCacheDir returns the user cache directory for canopy.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "canopy")
	}
	return filepath.Join(os.TempDir(), "canopy-cache")
}

// Load reads path over the defaults and validates the result. The format
// follows the extension: .toml, .yaml or .yml. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown key %q", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "open %s", path)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && err != io.EOF {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
		}
	default:
		return cfg, errors.New(errors.ErrCodeInvalidConfig, "%s: unsupported config format (want .toml, .yaml or .yml)", path)
	}
	return cfg, cfg.Validate()
}

// Find returns the first existing config file among canopy.toml,
// canopy.yaml and canopy.yml in the working directory, then config.toml and
// config.yaml in the user config directory. It returns "" when none exists.
func Find() string {
	candidates := []string{"canopy.toml", "canopy.yaml", "canopy.yml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(dir, "canopy", "config.toml"),
			filepath.Join(dir, "canopy", "config.yaml"))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
