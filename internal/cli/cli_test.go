package cli

import (
	"bytes"
	"context"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/canopyviz/canopy/pkg/snapshot"
	"github.com/canopyviz/canopy/pkg/stream"
)

const apes = "((Homo_sapiens:0.2,Pan_troglodytes:0.3)Hominini:1,(Gorilla:0.5,(Pongo:0.4,Homo_erectus:0.6):0.2):0.4)Hominoidea;"

// workspace writes a tree and a config whose cache lives in a temp dir.
func workspace(t *testing.T) (dir, tree, cfg string) {
	t.Helper()
	dir = t.TempDir()
	tree = filepath.Join(dir, "apes.nwk")
	if err := os.WriteFile(tree, []byte(apes), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg = filepath.Join(dir, "canopy.toml")
	body := "[render]\nwidth = 200\nheight = 150\n\n[cache]\ndir = '" + filepath.Join(dir, "cache") + "'\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, tree, cfg
}

// run executes the root command and returns what it wrote through cobra's
// output stream.
func run(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLayoutWritesSnapshotAndJSON(t *testing.T) {
	dir, tree, cfg := workspace(t)

	if _, err := run(t, cfg, "layout", tree); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "apes.gtol"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := snapshot.Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"apes.json.gz", "apes.json"} {
		out := filepath.Join(dir, name)
		if _, err := run(t, cfg, "layout", tree, "-o", out); err != nil {
			t.Fatal(err)
		}
		f, err := os.Open(out)
		if err != nil {
			t.Fatal(err)
		}
		got, err := stream.ParseStream(context.Background(), f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if got.NodeCount() != b.NodeCount() || got.LinkCount() != b.LinkCount() {
			t.Errorf("%s: %d points %d links, snapshot has %d and %d",
				name, got.NodeCount(), got.LinkCount(), b.NodeCount(), b.LinkCount())
		}
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "cache"))
	if len(entries) == 0 {
		t.Error("layout left the cache empty")
	}
}

func TestLayoutRejectsBadTree(t *testing.T) {
	_, _, cfg := workspace(t)
	if _, err := run(t, cfg, "layout", "((A,B);", "--strict", "-o", filepath.Join(t.TempDir(), "x.gtol")); err == nil {
		t.Error("unbalanced tree accepted with --strict")
	}
}

func TestRenderWritesPNG(t *testing.T) {
	dir, tree, cfg := workspace(t)
	out := filepath.Join(dir, "apes.png")
	if _, err := run(t, cfg, "render", tree, "-o", out, "--polar"); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 150 {
		t.Errorf("image is %dx%d, want 200x150", b.Dx(), b.Dy())
	}

	if _, err := run(t, cfg, "render", tree, "--zoom", "0"); err == nil {
		t.Error("zero zoom accepted")
	}
}

func TestRenderFromSnapshot(t *testing.T) {
	dir, tree, cfg := workspace(t)
	if _, err := run(t, cfg, "layout", tree); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "from-snapshot.png")
	if _, err := run(t, cfg, "render", filepath.Join(dir, "apes.gtol"), "-o", out, "--no-labels"); err != nil {
		t.Fatal(err)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Errorf("no image written: %v", err)
	}
}

func TestInspect(t *testing.T) {
	_, tree, cfg := workspace(t)
	if _, err := run(t, cfg, "inspect", tree); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(t.TempDir(), "empty.gtol")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, cfg, "inspect", empty); err == nil {
		t.Error("empty input accepted")
	}
}

func TestSearch(t *testing.T) {
	dir, tree, cfg := workspace(t)

	out, err := run(t, cfg, "search", tree, "homo")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// Leaf nodes and their tip markers carry the same label.
	if len(lines) != 4 || !strings.Contains(out, "\tHomo_sapiens\n") || !strings.Contains(out, "\tHomo_erectus\n") {
		t.Errorf("search output = %q", out)
	}

	if _, err := run(t, cfg, "layout", tree); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, cfg, "search", filepath.Join(dir, "apes.gtol"), "^p", "--regex")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Pan_troglodytes") || !strings.Contains(out, "Pongo") || strings.Contains(out, "Homo") {
		t.Errorf("regex search output = %q", out)
	}

	if _, err := run(t, cfg, "search", tree, "(", "--regex"); err == nil {
		t.Error("invalid regex accepted")
	}
}

func TestExportDOT(t *testing.T) {
	dir, tree, cfg := workspace(t)
	out := filepath.Join(dir, "apes.dot")
	if _, err := run(t, cfg, "export", tree, "-o", out, "--branch-lengths"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "digraph G {") || !strings.Contains(string(data), "Gorilla") {
		t.Errorf("dot output = %s", data)
	}

	if _, err := run(t, cfg, "export", tree, "-f", "pdf"); err == nil {
		t.Error("pdf format accepted")
	}
	if _, err := run(t, cfg, "export", tree, "-f", "dot", "--max-nodes", "3", "-o", out); err == nil {
		t.Error("oversized tree accepted")
	}
}

func TestCacheCommands(t *testing.T) {
	dir, tree, cfg := workspace(t)
	if _, err := run(t, cfg, "layout", tree); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, cfg, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.Join(dir, "cache") {
		t.Errorf("cache path = %q", out)
	}
	if _, err := run(t, cfg, "cache", "prune"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, cfg, "cache", "clear"); err != nil {
		t.Fatal(err)
	}
	if entries, _ := os.ReadDir(filepath.Join(dir, "cache")); len(entries) != 0 {
		t.Errorf("cache holds %d entries after clear", len(entries))
	}
}

func TestBadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "canopy.toml")
	if err := os.WriteFile(cfg, []byte("[layout]\nnope = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, cfg, "cache", "path"); err == nil {
		t.Error("unknown config key accepted")
	}
}

func TestDefaultOutput(t *testing.T) {
	tests := []struct {
		input, ext, want string
	}{
		{"data/tree.nwk", ".gtol", filepath.Join("data", "tree.gtol")},
		{"tree.json.gz", ".png", "tree.png"},
		{"tree.gtol", ".png", "tree.png"},
		{"(A,B);", ".gtol", "tree.gtol"},
		{"https://example.org/big.nwk", ".png", "tree.png"},
	}
	for _, tt := range tests {
		if got := defaultOutput(tt.input, tt.ext); got != tt.want {
			t.Errorf("defaultOutput(%q, %q) = %q, want %q", tt.input, tt.ext, got, tt.want)
		}
	}
}
