// Package layout computes 2D coordinates for a parsed tree.
//
// X is the distance from the root (sum of clamped branch lengths). Y places
// leaves at equal spacing in a deterministic order, children sorted by the
// smallest leaf name of their subtree, and centres every internal node on the
// mean of its children. All passes are iterative and O(n) apart from the
// per-node child sort.
package layout

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/canopyviz/canopy/pkg/errors"
	"github.com/canopyviz/canopy/pkg/newick"
	"github.com/canopyviz/canopy/pkg/progress"
)

// DefaultLeafStep is the vertical distance between consecutive leaves.
const DefaultLeafStep = 400

// Coords is the layout of one tree. X and Y are indexed by tree node.
// Children holds each node's children in layout order and Order lists all
// nodes in depth-first pre-order over those sorted children.
type Coords struct {
	X, Y     []float64
	Children [][]int32
	Order    []int32
	Leaves   int
}

// MaxX returns the largest X.
func (c *Coords) MaxX() float64 { return maxOf(c.X) }

// MaxY returns the largest Y.
func (c *Coords) MaxY() float64 { return maxOf(c.Y) }

func maxOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return slices.Max(v)
}

// Compute lays out t with leaves leafStep apart. t is not modified. A done
// ctx stops the passes with a TIMEOUT error.
func Compute(ctx context.Context, t *newick.Tree, leafStep float64, fn progress.Func) (*Coords, error) {
	n := t.Len()
	if n == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "empty tree")
	}
	if leafStep <= 0 {
		leafStep = DefaultLeafStep
	}

	// Pass 1, post-order: minLeaf[u] is the leaf with the smallest name in
	// u's subtree. Reverse pre-order visits every child before its parent.
	keys := leafKeys(t)
	less := func(a, b int32) int {
		if c := cmp.Compare(keys[a], keys[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	}
	pre := t.PreOrder()
	minLeaf := make([]int32, n)
	for i := len(pre) - 1; i >= 0; i-- {
		if err := checkCanceled(ctx, i); err != nil {
			return nil, err
		}
		u := pre[i]
		kids := t.Children[u]
		if len(kids) == 0 {
			minLeaf[u] = u
			continue
		}
		best := minLeaf[kids[0]]
		for _, c := range kids[1:] {
			if less(minLeaf[c], best) < 0 {
				best = minLeaf[c]
			}
		}
		minLeaf[u] = best
	}
	children := make([][]int32, n)
	for u, kids := range t.Children {
		if err := checkCanceled(ctx, u); err != nil {
			return nil, err
		}
		sorted := slices.Clone(kids)
		slices.SortStableFunc(sorted, func(a, b int32) int { return less(minLeaf[a], minLeaf[b]) })
		children[u] = sorted
	}
	fn.Report("Sorting subtrees", 33)

	// Pass 2, pre-order over sorted children: x accumulates branch lengths,
	// leaves take consecutive y slots.
	c := &Coords{
		X:        make([]float64, n),
		Y:        make([]float64, n),
		Children: children,
		Order:    make([]int32, 0, n),
	}
	stack := []int32{t.Root}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := checkCanceled(ctx, len(c.Order)); err != nil {
			return nil, err
		}
		c.Order = append(c.Order, u)
		if len(children[u]) == 0 {
			c.Y[u] = float64(c.Leaves) * leafStep
			c.Leaves++
			continue
		}
		for i := len(children[u]) - 1; i >= 0; i-- {
			k := children[u][i]
			c.X[k] = c.X[u] + max(0, t.BranchLengths[k])
			stack = append(stack, k)
		}
	}
	if len(c.Order) != n {
		return nil, errors.New(errors.ErrCodeInvalidInput, "tree has %d nodes but only %d reachable from root", n, len(c.Order))
	}
	fn.Report("Placing leaves", 66)

	// Pass 3, post-order: internal y is the mean of its children's y.
	for i := len(c.Order) - 1; i >= 0; i-- {
		if err := checkCanceled(ctx, i); err != nil {
			return nil, err
		}
		u := c.Order[i]
		kids := children[u]
		if len(kids) == 0 {
			continue
		}
		var sum float64
		for _, k := range kids {
			sum += c.Y[k]
		}
		c.Y[u] = sum / float64(len(kids))
	}
	fn.Report("Centering internal nodes", 100)
	return c, nil
}

// checkEvery is how many nodes a pass visits between context checks.
const checkEvery = 1 << 16

func checkCanceled(ctx context.Context, i int) error {
	if i%checkEvery != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeTimeout, err, "layout interrupted")
	}
	return nil
}

// leafKeys returns the sort key of every leaf: its name, or "n<k>" (k = index
// + 1) when unnamed. Internal nodes get "".
func leafKeys(t *newick.Tree) []string {
	keys := make([]string, t.Len())
	for i, kids := range t.Children {
		if len(kids) > 0 {
			continue
		}
		if t.Names[i] != "" {
			keys[i] = t.Names[i]
		} else {
			keys[i] = SyntheticName(int32(i))
		}
	}
	return keys
}

// SyntheticName is the display name of an unnamed node.
func SyntheticName(i int32) string { return fmt.Sprintf("n%d", i+1) }
