package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/layout"
	"github.com/canopyviz/canopy/pkg/newick"
)

// DefaultMaxNodes caps the trees ToDOT accepts. Graphviz layout time grows
// quickly and these diagrams are meant for small subtrees.
const DefaultMaxNodes = 5000

// Options configures node-link diagram rendering.
type Options struct {
	// BranchLengths labels every edge with the child's branch length.
	BranchLengths bool
	// MaxNodes overrides DefaultMaxNodes when positive.
	MaxNodes int
}

// ToDOT converts a tree to Graphviz DOT source, root on the left. Unnamed
// leaves are labelled with their synthetic id and unnamed internal nodes
// are drawn as small points.
func ToDOT(t *newick.Tree, opts Options) (string, error) {
	limit := opts.MaxNodes
	if limit <= 0 {
		limit = DefaultMaxNodes
	}
	if t.Len() > limit {
		return "", errors.New(errors.ErrCodeUnsupported, "tree has %d nodes, node-link export is limited to %d", t.Len(), limit)
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.1,0.05\"];\n")
	buf.WriteString("  edge [arrowhead=none];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("  nodesep=0.15;\n")
	buf.WriteString("\n")

	for _, u := range t.PreOrder() {
		fmt.Fprintf(&buf, "  n%d [%s];\n", u, strings.Join(fmtAttrs(t, u), ", "))
	}

	buf.WriteString("\n")
	for _, u := range t.PreOrder() {
		for _, c := range t.Children[u] {
			if opts.BranchLengths {
				fmt.Fprintf(&buf, "  n%d -> n%d [label=%q];\n", u, c, strconv.FormatFloat(t.BranchLengths[c], 'g', 4, 64))
			} else {
				fmt.Fprintf(&buf, "  n%d -> n%d;\n", u, c)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func fmtAttrs(t *newick.Tree, u int32) []string {
	name := t.Names[u]
	switch {
	case t.IsLeaf(u):
		if name == "" {
			name = layout.SyntheticName(u)
		}
		return []string{fmt.Sprintf("label=%q", name), "fillcolor=\"#f5d76e\""}
	case name == "":
		return []string{"label=\"\"", "shape=point", "width=0.08"}
	default:
		return []string{fmt.Sprintf("label=%q", name), "fillcolor=\"#8ab4f8\""}
	}
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	svg, err := renderFormat(ctx, dot, graphviz.SVG)
	if err != nil {
		return nil, err
	}
	return normalizeViewBox(svg), nil
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(ctx context.Context, dot string) ([]byte, error) {
	return renderFormat(ctx, dot, graphviz.PNG)
}

func renderFormat(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %v", format)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-sized root element with one whose
// width and height match the viewBox, so the SVG scales in a browser.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
