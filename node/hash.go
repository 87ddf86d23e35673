package node

import (
	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/treemath"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// LeafHash computes hash(encode(LeafNodeHashInput{leaf_index, optional
// key_package})) per spec.md §4.2.
func LeafHash(suite ciphersuite.Suite, leafIndex treemath.LeafIndex, kp *keypackage.KeyPackage) []byte {
	w := wireformat.NewWriter()
	w.WriteUint32(uint32(leafIndex))
	w.WriteOptional(kp != nil, func(w *wireformat.Writer) {
		_ = kp.Encode(w)
	})
	return suite.Hash(w.Bytes())
}

// ParentHashInput computes hash(encode(ParentNodeHashInput{node_index, optional
// parent_node, left_hash, right_hash})) per spec.md §4.2.
func ParentHashInput(suite ciphersuite.Suite, nodeIndex treemath.NodeIndex, p *ParentNode, leftHash, rightHash []byte) []byte {
	w := wireformat.NewWriter()
	w.WriteUint32(uint32(nodeIndex))
	w.WriteOptional(p != nil, func(w *wireformat.Writer) {
		_ = p.Encode(w)
	})
	_ = w.WriteVarBytesU8(leftHash)
	_ = w.WriteVarBytesU8(rightHash)
	return suite.Hash(w.Bytes())
}

// TreeHash computes the bottom-up canonical tree hash over the full node
// array, rooted at treemath.Root(len(nodes)).
func TreeHash(suite ciphersuite.Suite, nodes []Node) []byte {
	size := uint32(len(nodes))
	if size == 0 {
		return suite.Hash(nil)
	}
	var hashAt func(i treemath.NodeIndex) []byte
	hashAt = func(i treemath.NodeIndex) []byte {
		n := nodes[i]
		if treemath.IsLeaf(i) {
			return LeafHash(suite, i.ToLeafIndex(), n.KeyPackage)
		}
		left := treemath.Left(i)
		right := treemath.Right(i, size)
		leftHash := hashAt(left)
		rightHash := hashAt(right)
		return ParentHashInput(suite, i, n.Parent, leftHash, rightHash)
	}
	return hashAt(treemath.Root(size))
}

// ParentContentHash hashes just a parent node's own content (public key,
// parent_hash field, unmerged leaves) with no child hashes folded in. This
// is the "hash(node)" used by the parent-hash chain of spec.md §4.2, kept
// distinct from TreeHash's ParentHashInput, which folds in child hashes and
// exists for a different purpose (tree_hash, not the parent-hash chain).
func ParentContentHash(suite ciphersuite.Suite, p ParentNode) []byte {
	w := wireformat.NewWriter()
	_ = p.Encode(w)
	return suite.Hash(w.Bytes())
}
