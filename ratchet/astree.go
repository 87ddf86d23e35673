package ratchet

import (
	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/treemath"
)

// ASTree is the per-epoch collection of SenderRatchets, one per occupied
// leaf, all seeded from the same epoch's application_secret (spec.md §4.5).
// Ratchets are created lazily on first use — a group rarely needs every
// leaf's chain in the same epoch.
type ASTree struct {
	suite             ciphersuite.Suite
	applicationSecret []byte
	ratchets          map[treemath.LeafIndex]*SenderRatchet
}

// NewASTree seeds a fresh ASTree for one epoch.
func NewASTree(suite ciphersuite.Suite, applicationSecret []byte) *ASTree {
	return &ASTree{
		suite:             suite,
		applicationSecret: applicationSecret,
		ratchets:          make(map[treemath.LeafIndex]*SenderRatchet),
	}
}

// RatchetFor returns the SenderRatchet for leaf, creating it on first use.
func (t *ASTree) RatchetFor(leaf treemath.LeafIndex) *SenderRatchet {
	r, ok := t.ratchets[leaf]
	if !ok {
		r = NewSenderRatchet(t.suite, leaf, t.applicationSecret)
		t.ratchets[leaf] = r
	}
	return r
}

// GetSecret is a convenience wrapper over RatchetFor(leaf).GetSecret(generation).
func (t *ASTree) GetSecret(leaf treemath.LeafIndex, generation uint32) (Secret, error) {
	return t.RatchetFor(leaf).GetSecret(generation)
}
