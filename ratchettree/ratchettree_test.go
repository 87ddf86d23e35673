package ratchettree

import (
	"testing"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/extensions"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/proposal"
	"github.com/kindlyrobotics/maelstrom/treemath"
)

func newTestBundle(t *testing.T, suite ciphersuite.Suite, name string) keypackage.Bundle {
	t.Helper()
	sigPub, sigPriv, err := suite.GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("GenerateSigningKeyPair: %v", err)
	}
	cred := keypackage.Credential{Identity: []byte(name), SignaturePublicKey: sigPub}
	caps := extensions.Capabilities{Versions: []uint8{0}, Ciphersuites: []uint16{uint16(suite.ID())}}
	lifetime := extensions.NewLifetime(1_700_000_000, 86400)
	b, err := keypackage.New(suite, cred, caps, lifetime, sigPriv)
	if err != nil {
		t.Fatalf("keypackage.New: %v", err)
	}
	return b
}

// TestFounderAddBob is scenario S1: founder + 1 Add yields a 3-node tree.
func TestFounderAddBob(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")

	tree := NewFounder(suite, alice)
	q := proposal.NewQueue(suite)
	addID, err := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	lists, err := q.GetCommitLists([]proposal.ID{addID})
	if err != nil {
		t.Fatalf("GetCommitLists: %v", err)
	}
	result, err := tree.ApplyProposals(lists)
	if err != nil {
		t.Fatalf("ApplyProposals: %v", err)
	}
	if len(tree.Nodes) != 3 {
		t.Fatalf("expected 3 nodes after S1, got %d", len(tree.Nodes))
	}
	if tree.Nodes[0].IsBlank() || tree.Nodes[2].IsBlank() {
		t.Fatalf("expected both leaves non-blank")
	}
	if !tree.Nodes[1].IsBlank() {
		t.Fatalf("expected parent node to remain blank (no path update yet)")
	}
	if len(result.Invited) != 1 || result.Invited[0] != 1 {
		t.Fatalf("expected bob invited at leaf 1, got %v", result.Invited)
	}
}

// TestBulkAddBeyondCapacity is scenario S5.
func TestBulkAddBeyondCapacity(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")
	tree := NewFounder(suite, alice)

	q := proposal.NewQueue(suite)
	id, _ := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	lists, _ := q.GetCommitLists([]proposal.ID{id})
	if _, err := tree.ApplyProposals(lists); err != nil {
		t.Fatalf("ApplyProposals initial add: %v", err)
	}

	q2 := proposal.NewQueue(suite)
	var ids []proposal.ID
	for i := 0; i < 5; i++ {
		b := newTestBundle(t, suite, "member")
		id, err := q2.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: b.KeyPackage}}, 0, nil)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		ids = append(ids, id)
	}
	lists2, err := q2.GetCommitLists(ids)
	if err != nil {
		t.Fatalf("GetCommitLists: %v", err)
	}
	result, err := tree.ApplyProposals(lists2)
	if err != nil {
		t.Fatalf("ApplyProposals bulk: %v", err)
	}
	if len(tree.Nodes) != 13 {
		t.Fatalf("expected 13 nodes (7 leaves) after S5, got %d", len(tree.Nodes))
	}
	if len(result.Invited) != 5 {
		t.Fatalf("expected 5 invited, got %d", len(result.Invited))
	}
}

func TestRemoveSelfIsRemoved(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")
	carol := newTestBundle(t, suite, "carol")

	tree := NewFounder(suite, alice)
	q := proposal.NewQueue(suite)
	id1, _ := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	id2, _ := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: carol.KeyPackage}}, 0, nil)
	lists, _ := q.GetCommitLists([]proposal.ID{id1, id2})
	if _, err := tree.ApplyProposals(lists); err != nil {
		t.Fatalf("ApplyProposals adds: %v", err)
	}

	// Simulate Bob's perspective: his own leaf is index 1.
	bobTree := tree.Clone()
	bobTree.Own.NodeIndex = treemath.LeafIndex(1).ToNodeIndex()

	q2 := proposal.NewQueue(suite)
	removeID, _ := q2.Insert(proposal.Proposal{Type: proposal.TypeRemove, Remove: &proposal.RemoveProposal{Removed: 1}}, 0, nil)
	lists2, _ := q2.GetCommitLists([]proposal.ID{removeID})
	result, err := bobTree.ApplyProposals(lists2)
	if err != nil {
		t.Fatalf("ApplyProposals remove: %v", err)
	}
	if !result.SelfRemoved {
		t.Fatalf("expected Bob to observe SelfRemoved")
	}
	if !bobTree.Nodes[treemath.LeafIndex(1).ToNodeIndex()].IsBlank() {
		t.Fatalf("expected Bob's leaf blanked")
	}
}

func TestResolveCoversNonBlankLeaves(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")
	tree := NewFounder(suite, alice)
	q := proposal.NewQueue(suite)
	id, _ := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	lists, _ := q.GetCommitLists([]proposal.ID{id})
	if _, err := tree.ApplyProposals(lists); err != nil {
		t.Fatalf("ApplyProposals: %v", err)
	}
	root := treemath.Root(tree.Size())
	res := tree.Resolve(root)
	if len(res) != 2 {
		t.Fatalf("expected root resolution to cover both leaves (blank parent), got %v", res)
	}
}

func TestUpdateOwnLeafAndApplyDirectPath(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")

	tree := NewFounder(suite, alice)
	q := proposal.NewQueue(suite)
	id, _ := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	lists, _ := q.GetCommitLists([]proposal.ID{id})
	if _, err := tree.ApplyProposals(lists); err != nil {
		t.Fatalf("ApplyProposals: %v", err)
	}

	bobTree := tree.Clone()
	bobTree.Own.Bundle = bob
	bobTree.Own.NodeIndex = treemath.LeafIndex(1).ToNodeIndex()
	bobTree.Own.PathKeypairs = make(map[treemath.NodeIndex][]byte)

	groupContext := []byte("group-context-epoch-1")
	newAlice := newTestBundle(t, suite, "alice-updated")
	commitSecretSender, updatedBundle, dp, err := tree.UpdateOwnLeaf(newAlice.SignaturePrivateKey, newAlice, groupContext, true)
	if err != nil {
		t.Fatalf("UpdateOwnLeaf: %v", err)
	}
	if dp == nil || len(dp.Nodes) != 1 {
		t.Fatalf("expected direct path with 1 entry for a 2-leaf tree, got %v", dp)
	}

	commitSecretReceiver, err := bobTree.ApplyDirectPath(0, updatedBundle.KeyPackage, dp, groupContext)
	if err != nil {
		t.Fatalf("ApplyDirectPath: %v", err)
	}
	if len(commitSecretSender) == 0 || len(commitSecretReceiver) == 0 {
		t.Fatalf("expected non-empty commit secrets")
	}
	if string(commitSecretSender) != string(commitSecretReceiver) {
		t.Fatalf("commit secrets diverged between sender and receiver")
	}
}

func TestTreeHashChangesAfterUpdate(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")
	tree := NewFounder(suite, alice)
	q := proposal.NewQueue(suite)
	id, _ := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	lists, _ := q.GetCommitLists([]proposal.ID{id})
	if _, err := tree.ApplyProposals(lists); err != nil {
		t.Fatalf("ApplyProposals: %v", err)
	}
	before := tree.TreeHash()
	newAlice := newTestBundle(t, suite, "alice-updated")
	if _, _, _, err := tree.UpdateOwnLeaf(newAlice.SignaturePrivateKey, newAlice, []byte("ctx"), false); err != nil {
		t.Fatalf("UpdateOwnLeaf: %v", err)
	}
	after := tree.TreeHash()
	if string(before) == string(after) {
		t.Fatalf("expected tree hash to change after a path update")
	}
}
