package ratchettree

import (
	"fmt"

	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/node"
	"github.com/kindlyrobotics/maelstrom/proposal"
	"github.com/kindlyrobotics/maelstrom/treemath"
)

// ApplyResult reports what a proposal application did to membership
// (spec.md §4.2 apply_proposals).
type ApplyResult struct {
	Invited     []treemath.LeafIndex
	SelfRemoved bool
	Removed     []RemovedMember
}

// RemovedMember records a removed leaf's last-known credential, for
// transcript bookkeeping.
type RemovedMember struct {
	Leaf       treemath.LeafIndex
	Credential keypackage.Credential
}

// ApplyProposals applies queued updates, then removes, then adds, in that
// order (spec.md §4.2: order is order-critical).
func (t *Tree) ApplyProposals(lists proposal.Lists) (ApplyResult, error) {
	var result ApplyResult

	for _, qp := range lists.Updates {
		newKP := qp.Proposal.Update.KeyPackage
		t.BlankMember(qp.Sender)
		t.Nodes[qp.Sender.ToNodeIndex()] = node.Leaf(newKP)
		if qp.OwnKeyPackageBundle != nil {
			eq, err := qp.OwnKeyPackageBundle.Equal(newKP)
			if err != nil {
				return ApplyResult{}, err
			}
			if eq {
				t.Own.Bundle = *qp.OwnKeyPackageBundle
				t.Own.NodeIndex = qp.Sender.ToNodeIndex()
			}
		}
	}

	for _, qp := range lists.Removes {
		target := qp.Proposal.Remove.Removed
		if err := t.checkLeafBounds(target); err != nil {
			return ApplyResult{}, err
		}
		if t.Nodes[target.ToNodeIndex()].IsBlank() {
			return ApplyResult{}, fmt.Errorf("ratchettree: %w: remove targets already-blank leaf %d", ErrInvalidCommit, target)
		}
		cred := t.Nodes[target.ToNodeIndex()].KeyPackage.Credential
		if target == t.Own.NodeIndex.ToLeafIndex() {
			result.SelfRemoved = true
		}
		t.BlankMember(target)
		result.Removed = append(result.Removed, RemovedMember{Leaf: target, Credential: cred})
	}

	if len(lists.Adds) > 0 {
		free := t.FreeLeaves()
		n := len(free)
		if n > len(lists.Adds) {
			n = len(lists.Adds)
		}
		for i := 0; i < n; i++ {
			leaf := free[i]
			t.installAdd(leaf, lists.Adds[i].Proposal.Add.KeyPackage, &result)
		}
		for i := n; i < len(lists.Adds); i++ {
			leaf := t.extendForNewLeaf()
			t.installAdd(leaf, lists.Adds[i].Proposal.Add.KeyPackage, &result)
		}
	}

	t.trimTrailingBlanks()
	return result, nil
}

// installAdd places kp at leaf and records leaf into every non-blank
// ancestor's unmerged_leaves set (spec.md §4.2 apply_proposals, Add case).
func (t *Tree) installAdd(leaf treemath.LeafIndex, kp keypackage.KeyPackage, result *ApplyResult) {
	leafNode := leaf.ToNodeIndex()
	t.Nodes[leafNode] = node.Leaf(kp)
	for _, ancestor := range treemath.DirPath(leafNode, t.Size()) {
		n := t.Nodes[ancestor]
		if n.IsBlank() {
			continue
		}
		n.Parent.AddUnmergedLeaf(leaf)
	}
	result.Invited = append(result.Invited, leaf)
}

// extendForNewLeaf grows the tree by one blank parent and one blank leaf,
// returning the index of the new leaf (spec.md §4.2 apply_proposals, Add
// case: "extending the tree two positions per leaf").
func (t *Tree) extendForNewLeaf() treemath.LeafIndex {
	oldSize := t.Size()
	if oldSize == 0 {
		t.Nodes = append(t.Nodes, node.BlankLeaf())
		return treemath.LeafIndex(0)
	}
	t.Nodes = append(t.Nodes, node.BlankParent(), node.BlankLeaf())
	newSize := t.Size()
	newLeafNode := treemath.NodeIndex(newSize - 1)
	return newLeafNode.ToLeafIndex()
}

// trimTrailingBlanks shrinks the node array while the top two slots (the
// current root's right-most subtree) are an entirely blank parent+leaf
// pair, per spec.md §4.2 apply_proposals' "trim trailing blanks".
func (t *Tree) trimTrailingBlanks() {
	for len(t.Nodes) > 1 {
		last := len(t.Nodes) - 1
		if !t.Nodes[last].IsBlank() || !t.Nodes[last-1].IsBlank() {
			break
		}
		t.Nodes = t.Nodes[:last-1]
	}
}
