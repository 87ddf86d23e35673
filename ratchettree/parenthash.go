package ratchettree

import (
	"bytes"
	"fmt"

	"github.com/kindlyrobotics/maelstrom/extensions"
	"github.com/kindlyrobotics/maelstrom/node"
	"github.com/kindlyrobotics/maelstrom/treemath"
)

// recomputeParentHashChain recomputes and installs the parent-hash chain
// from root down to leaf's immediate parent, mutating each ancestor's
// ParentHash field along the way, and returns the value to store in
// leaf's own KeyPackage ParentHash extension (spec.md §4.2 parent_hash).
//
// ph(root) = hash(root_node); ph(i) = hash(parent(i), with parent(i)'s own
// ParentHash field set to ph(parent(i))) for the node directly below.
// Only the branch actually owned by leaf's path is touched; the sibling
// branch at each level keeps whatever a prior path update left there,
// which is what makes the parent-hash XOR invariant (I3) hold.
func (t *Tree) recomputeParentHashChain(leaf treemath.NodeIndex) ([]byte, error) {
	size := t.Size()
	ancestors := treemath.DirPathRoot(leaf, size)
	if len(ancestors) == 0 {
		// sole-leaf tree: nothing above leaf to chain through.
		return nil, nil
	}

	root := ancestors[len(ancestors)-1]
	rootNode := t.Nodes[root]
	if rootNode.IsBlank() {
		return nil, fmt.Errorf("ratchettree: %w: root is blank", ErrMalformedTree)
	}
	ph := node.ParentContentHash(t.Suite, *rootNode.Parent)

	// Walk from just below root down to leaf's immediate parent,
	// installing each ancestor's ParentHash field from the level above.
	for k := len(ancestors) - 2; k >= 0; k-- {
		idx := ancestors[k]
		n := t.Nodes[idx]
		if n.IsBlank() {
			return nil, fmt.Errorf("ratchettree: %w: ancestor %d is blank", ErrMalformedTree, idx)
		}
		n.Parent.ParentHash = ph
		t.Nodes[idx] = n
		ph = node.ParentContentHash(t.Suite, *n.Parent)
	}
	return ph, nil
}

// VerifyIntegrity checks spec.md §4.2 verify_integrity: every non-blank
// parent has exactly one child whose recorded parent_hash equals hash(p),
// and leaf KeyPackage signatures verify.
func (t *Tree) VerifyIntegrity() error {
	size := t.Size()
	for i := treemath.NodeIndex(0); uint32(i) < size; i++ {
		n := t.Nodes[i]
		if treemath.IsLeaf(i) {
			if !n.IsBlank() {
				if err := n.KeyPackage.VerifySignature(t.Suite); err != nil {
					return fmt.Errorf("ratchettree: %w: leaf %d signature: %v", ErrInvalidCommit, i, err)
				}
			}
			continue
		}
		if n.IsBlank() {
			continue
		}
		left := treemath.Left(i)
		right := treemath.Right(i, size)
		want := node.ParentContentHash(t.Suite, *n.Parent)
		leftMatch := t.childParentHashMatches(left, want)
		rightMatch := t.childParentHashMatches(right, want)
		if leftMatch == rightMatch {
			return fmt.Errorf("ratchettree: %w: node %d parent-hash chain broken (left=%v right=%v)", ErrInvalidCommit, i, leftMatch, rightMatch)
		}
	}
	return nil
}

func (t *Tree) childParentHashMatches(child treemath.NodeIndex, want []byte) bool {
	n := t.Nodes[child]
	if n.IsBlank() {
		return false
	}
	if treemath.IsLeaf(child) {
		ext, ok := n.KeyPackage.Extensions.Find(extensions.TypeParentHash)
		if !ok {
			return false
		}
		ph, err := extensions.DecodeParentHash(ext.Data)
		if err != nil {
			return false
		}
		return bytes.Equal(ph.Hash, want)
	}
	return bytes.Equal(n.Parent.ParentHash, want)
}

// TreeHash returns the current bottom-up tree hash (spec.md §4.2 tree_hash).
func (t *Tree) TreeHash() []byte {
	return node.TreeHash(t.Suite, t.Nodes)
}
