// Package newick parses Newick tree text into a flat parent/children
// topology.
//
// Parsing and every traversal in this package use explicit index stacks, so
// trees nested hundreds of thousands of levels deep never touch the goroutine
// stack limit.
package newick

// Tree is a rooted tree stored as parallel per-node arrays.
//
// Parent[i] is -1 only for Root. Children[i] lists the children of i in input
// order and is the inverse of Parent. BranchLengths default to 0 and may be
// negative as written in the input; consumers clamp them when measuring
// distance. Names may be empty.
type Tree struct {
	Parent        []int32
	Children      [][]int32
	Names         []string
	BranchLengths []float64
	Root          int32
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.Parent) }

// IsLeaf reports whether node i has no children.
func (t *Tree) IsLeaf(i int32) bool { return len(t.Children[i]) == 0 }

// Leaves returns the number of leaf nodes.
func (t *Tree) Leaves() int {
	n := 0
	for _, c := range t.Children {
		if len(c) == 0 {
			n++
		}
	}
	return n
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if t.Len() == 0 {
		return 0
	}
	type frame struct {
		node  int32
		depth int
	}
	best := 0
	stack := []frame{{t.Root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		best = max(best, f.depth)
		for _, c := range t.Children[f.node] {
			stack = append(stack, frame{c, f.depth + 1})
		}
	}
	return best
}

// PreOrder returns node indices in depth-first pre-order from the root,
// visiting children in their stored order.
func (t *Tree) PreOrder() []int32 {
	if t.Len() == 0 {
		return nil
	}
	order := make([]int32, 0, t.Len())
	stack := []int32{t.Root}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, u)
		kids := t.Children[u]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return order
}
