package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/render"
	"github.com/canopyviz/canopy/pkg/visual"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.VisualOptions() != visual.DefaultOptions() {
		t.Error("default visual options differ from the builder defaults")
	}
	if cfg.Budget() != render.DefaultBudget() {
		t.Error("default budget differs from the renderer default")
	}
	if cfg.Layout.LeafStep != 400 || cfg.Labels.MaxLabels != 300 || cfg.Render.TargetCells != 4096 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Error("Load(\"\") should return the defaults")
	}
}

func TestLoadTOML(t *testing.T) {
	path := write(t, "canopy.toml", `
[layout]
leaf_step = 300
polar = true

[cache]
backend = "bolt"
ttl = "72h"

[server]
addr = ":9000"
job_ttl = "30m"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Layout.LeafStep != 300 || !cfg.Layout.Polar {
		t.Errorf("layout = %+v", cfg.Layout)
	}
	if cfg.Layout.XScale != 140 {
		t.Errorf("unset key lost its default: x_scale = %g", cfg.Layout.XScale)
	}
	if cfg.Cache.Backend != cache.BackendBolt || cfg.Cache.TTL != 72*time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.JobTTL != 30*time.Minute {
		t.Errorf("server = %+v", cfg.Server)
	}
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "canopy.yaml", `
log:
  level: debug
render:
  width: 800
  vertex_budget: 5000
labels:
  max_labels: 50
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel() != log.DebugLevel {
		t.Errorf("level = %v", cfg.LogLevel())
	}
	if cfg.Render.Width != 800 || cfg.Render.Height != 1000 || cfg.Budget().VertexBudget != 5000 {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.LabelOptions().MaxLabels != 50 {
		t.Errorf("labels = %+v", cfg.Labels)
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	cfg, err := Load(write(t, "empty.yml", ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Error("empty file should keep the defaults")
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"unknown toml key", "c.toml", "[layout]\nleaf_stp = 3\n"},
		{"unknown yaml key", "c.yaml", "layout:\n  leaf_stp: 3\n"},
		{"bad toml", "c.toml", "[layout\n"},
		{"bad extension", "c.ini", "a=b"},
		{"negative budget", "c.toml", "[render]\nvertex_budget = -1\n"},
		{"bad backend", "c.toml", "[cache]\nbackend = \"memcached\"\n"},
		{"bad level", "c.yaml", "log:\n  level: loud\n"},
		{"redis without addr", "c.toml", "[cache]\nbackend = \"redis\"\nredis_addr = \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(write(t, tt.file, tt.content))
			if !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("err = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestOpenCache(t *testing.T) {
	cfg := Default()
	cfg.Cache.Dir = t.TempDir()
	cfg.Cache.KeyPrefix = "test:"

	c, keyer, err := cfg.OpenCache(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if k := keyer.SnapshotKey("h", cache.SnapshotKeyOpts{}); k[:5] != "test:" {
		t.Errorf("key = %s", k)
	}

	cfg.Cache.Backend = "memcached"
	if _, _, err := cfg.OpenCache(context.Background()); err == nil {
		t.Error("OpenCache accepted an unknown backend")
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)

	if got := Find(); got != "" {
		t.Errorf("Find() = %q with no config present", got)
	}
	if err := os.WriteFile("canopy.yaml", []byte("log:\n  level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Find(); got != "canopy.yaml" {
		t.Errorf("Find() = %q", got)
	}
}
