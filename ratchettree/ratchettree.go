// Package ratchettree implements tree-wide operations over the
// left-balanced binary ratchet tree: resolve, direct-path update,
// apply_proposals, tree-hash, and parent-hash verification (spec.md §4.2).
// This is the largest component of the core; it is the only package that
// mutates tree state, and every mutating method assumes exclusive access
// per spec.md §5 (GroupState is single-owner, single-threaded per group).
package ratchettree

import (
	"fmt"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/node"
	"github.com/kindlyrobotics/maelstrom/treemath"
)

// OwnLeaf tracks the state specific to the local member: which bundle
// backs their leaf, where that leaf sits, and which node private keys
// they currently hold on their direct path (spec.md §3 invariant I4).
type OwnLeaf struct {
	Bundle       keypackage.Bundle
	NodeIndex    treemath.NodeIndex
	PathKeypairs map[treemath.NodeIndex][]byte
}

// Tree is the RatchetTree of spec.md §3: (ciphersuite, nodes, own_leaf).
type Tree struct {
	Suite ciphersuite.Suite
	Nodes []node.Node
	Own   OwnLeaf
}

// NewFounder builds the single-leaf tree a group is created with
// (spec.md §3 GroupState.new()).
func NewFounder(suite ciphersuite.Suite, founder keypackage.Bundle) *Tree {
	return &Tree{
		Suite: suite,
		Nodes: []node.Node{node.Leaf(founder.KeyPackage)},
		Own: OwnLeaf{
			Bundle:       founder,
			NodeIndex:    0,
			PathKeypairs: make(map[treemath.NodeIndex][]byte),
		},
	}
}

// Size returns the current node-array length.
func (t *Tree) Size() uint32 { return uint32(len(t.Nodes)) }

// NumLeaves returns the current leaf count.
func (t *Tree) NumLeaves() uint32 { return treemath.NumLeaves(t.Size()) }

// Clone returns a deep-enough copy for the checkpoint-before-mutation
// discipline spec.md §5 requires of Commit paths: callers mutate this copy,
// install it on success and discard it on error.
func (t *Tree) Clone() *Tree {
	nodesCopy := make([]node.Node, len(t.Nodes))
	copy(nodesCopy, t.Nodes)
	for i, n := range nodesCopy {
		if n.Parent != nil {
			p := *n.Parent
			p.UnmergedLeaves = append([]treemath.LeafIndex(nil), p.UnmergedLeaves...)
			nodesCopy[i].Parent = &p
		}
	}
	pathKeys := make(map[treemath.NodeIndex][]byte, len(t.Own.PathKeypairs))
	for k, v := range t.Own.PathKeypairs {
		pathKeys[k] = append([]byte{}, v...)
	}
	return &Tree{
		Suite: t.Suite,
		Nodes: nodesCopy,
		Own: OwnLeaf{
			Bundle:       t.Own.Bundle,
			NodeIndex:    t.Own.NodeIndex,
			PathKeypairs: pathKeys,
		},
	}
}

// PublicKeyAt returns the HPKE public key a resolved node index
// contributes: a leaf's init key, or a parent's node key.
func (t *Tree) PublicKeyAt(i treemath.NodeIndex) ([]byte, error) {
	n := t.Nodes[i]
	if treemath.IsLeaf(i) {
		if n.KeyPackage == nil {
			return nil, ErrBlankNode
		}
		return n.KeyPackage.InitPublicKey, nil
	}
	if n.Parent == nil {
		return nil, ErrBlankNode
	}
	return n.Parent.PublicKey, nil
}

// BlankMember blanks leaf, the root, and every node on leaf's direct path
// (spec.md §4.2 blank_member).
func (t *Tree) BlankMember(leaf treemath.LeafIndex) {
	size := t.Size()
	ni := leaf.ToNodeIndex()
	t.Nodes[ni] = node.BlankLeaf()
	root := treemath.Root(size)
	if root != ni {
		t.Nodes[root] = node.BlankParent()
	}
	for _, p := range treemath.DirPath(ni, size) {
		t.Nodes[p] = node.BlankParent()
	}
}

// FreeLeaves returns blank leaf indices in ascending order.
func (t *Tree) FreeLeaves() []treemath.LeafIndex {
	var free []treemath.LeafIndex
	n := t.NumLeaves()
	for l := treemath.LeafIndex(0); uint32(l) < n; l++ {
		if t.Nodes[l.ToNodeIndex()].IsBlank() {
			free = append(free, l)
		}
	}
	return free
}

// LeafKeyPackage returns the KeyPackage installed at a leaf, or nil if
// blank.
func (t *Tree) LeafKeyPackage(leaf treemath.LeafIndex) *keypackage.KeyPackage {
	return t.Nodes[leaf.ToNodeIndex()].KeyPackage
}

func (t *Tree) checkLeafBounds(leaf treemath.LeafIndex) error {
	if uint32(leaf) >= t.NumLeaves() {
		return fmt.Errorf("ratchettree: %w: leaf %d out of range (have %d leaves)", ErrMalformedTree, leaf, t.NumLeaves())
	}
	return nil
}
