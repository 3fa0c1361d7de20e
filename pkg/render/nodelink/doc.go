// Package nodelink renders small phylogenetic trees as Graphviz node-link
// diagrams.
//
// It is a debugging and export aid for subtrees of a few thousand nodes; the
// LOD renderer in package render is the path for large trees.
//
//	dot, err := nodelink.ToDOT(tree, nodelink.Options{BranchLengths: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The DOT output lays the root out on the left (rankdir=LR), leaves as
// yellow boxes, named internal nodes as blue boxes and unnamed internal
// nodes as points. SVG and PNG rendering run in-process through
// [github.com/goccy/go-graphviz].
package nodelink
