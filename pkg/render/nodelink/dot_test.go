package nodelink

import (
	"context"
	"strings"
	"testing"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/newick"
)

func mustParse(t *testing.T, s string) *newick.Tree {
	t.Helper()
	tree, err := newick.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return tree
}

func TestToDOT(t *testing.T) {
	tree := mustParse(t, "((A:1,:2.5)X:0.5,C:3);")
	dot, err := ToDOT(tree, Options{BranchLengths: true})
	if err != nil {
		t.Fatalf("ToDOT: %v", err)
	}
	for _, want := range []string{
		"rankdir=LR",
		`label="A"`,
		`label="X"`,
		`label="C"`,
		`label="2.5"`,
		"shape=point",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if got := strings.Count(dot, "->"); got != tree.Len()-1 {
		t.Errorf("edges = %d, want %d", got, tree.Len()-1)
	}
	// The unnamed leaf gets its synthetic id.
	if !strings.Contains(dot, `label="n`) {
		t.Errorf("unnamed leaf has no synthetic label:\n%s", dot)
	}
}

func TestToDOTWithoutBranchLengths(t *testing.T) {
	dot, err := ToDOT(mustParse(t, "(A:1,B:2);"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(dot, `label="1"`) {
		t.Errorf("branch length emitted:\n%s", dot)
	}
}

func TestToDOTLimit(t *testing.T) {
	_, err := ToDOT(mustParse(t, "((A,B),(C,D));"), Options{MaxNodes: 3})
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("err = %v, want UNSUPPORTED", err)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="62pt" height="44pt" viewBox="0.00 0.00 62.00 44.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	out := string(normalizeViewBox(in))
	if !strings.Contains(out, `viewBox="0 0 62.00 44.00" width="62" height="44"`) {
		t.Errorf("normalizeViewBox = %s", out)
	}
	if string(normalizeViewBox([]byte("<svg>"))) != "<svg>" {
		t.Error("input without viewBox should pass through")
	}
}

func TestRenderSVG(t *testing.T) {
	dot, err := ToDOT(mustParse(t, "(A,B)R;"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	svg, err := RenderSVG(context.Background(), dot)
	if err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") || !strings.Contains(string(svg), ">A<") {
		t.Errorf("unexpected SVG output: %.200s", svg)
	}
}
