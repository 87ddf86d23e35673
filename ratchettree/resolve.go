package ratchettree

import "github.com/kindlyrobotics/maelstrom/treemath"

// Resolve returns the minimum set of non-blank nodes whose keys jointly
// cover the subtree rooted at i (spec.md §4.2 resolve).
func (t *Tree) Resolve(i treemath.NodeIndex) []treemath.NodeIndex {
	n := t.Nodes[i]
	if treemath.IsLeaf(i) {
		if n.IsBlank() {
			return nil
		}
		return []treemath.NodeIndex{i}
	}
	if !n.IsBlank() {
		out := make([]treemath.NodeIndex, 0, 1+len(n.Parent.UnmergedLeaves))
		out = append(out, i)
		for _, l := range n.Parent.UnmergedLeaves {
			out = append(out, l.ToNodeIndex())
		}
		return out
	}
	size := t.Size()
	left := treemath.Left(i)
	right := treemath.Right(i, size)
	out := t.Resolve(left)
	out = append(out, t.Resolve(right)...)
	return out
}

// indexOf returns the position of target within resolution, or -1.
func indexOf(resolution []treemath.NodeIndex, target treemath.NodeIndex) int {
	for idx, n := range resolution {
		if n == target {
			return idx
		}
	}
	return -1
}
