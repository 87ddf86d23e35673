package main

import (
	"bytes"
	"fmt"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/extensions"
	"github.com/kindlyrobotics/maelstrom/group"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/proposal"
	"github.com/kindlyrobotics/maelstrom/ratchet"
	"github.com/kindlyrobotics/maelstrom/treemath"
)

func newBundle(suite ciphersuite.Suite, name string) (keypackage.Bundle, error) {
	sigPub, sigPriv, err := suite.GenerateSigningKeyPair()
	if err != nil {
		return keypackage.Bundle{}, err
	}
	cred := keypackage.Credential{Identity: []byte(name), SignaturePublicKey: sigPub}
	caps := extensions.Capabilities{Versions: []uint8{0}, Ciphersuites: []uint16{uint16(suite.ID())}}
	lifetime := extensions.NewLifetime(1_700_000_000, 86400)
	return keypackage.New(suite, cred, caps, lifetime, sigPriv)
}

// scenarioFounderAddWelcome is S1: Alice founds the group, adds Bob, and
// Bob's new_from_welcome reproduces Alice's GroupContext.
func scenarioFounderAddWelcome(suite ciphersuite.Suite) error {
	alice, err := newBundle(suite, "alice")
	if err != nil {
		return err
	}
	bob, err := newBundle(suite, "bob")
	if err != nil {
		return err
	}
	groupID := []byte{0x00}

	alicesState := group.New(suite, groupID, alice)
	q := proposal.NewQueue(suite)
	addID, err := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	if err != nil {
		return err
	}
	result, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, nil, q, []proposal.ID{addID}, false)
	if err != nil {
		return err
	}
	if len(alicesState.Tree.Nodes) != 3 {
		return fmt.Errorf("expected 3 tree nodes, got %d", len(alicesState.Tree.Nodes))
	}
	if alicesState.Epoch != 1 {
		return fmt.Errorf("expected epoch 1, got %d", alicesState.Epoch)
	}
	if result.Welcome == nil {
		return fmt.Errorf("expected a Welcome for the invited member")
	}

	bobsState, err := group.NewFromWelcome(suite, groupID, result.Welcome, bob, treemath.LeafIndex(1))
	if err != nil {
		return err
	}
	if bobsState.Epoch != alicesState.Epoch {
		return fmt.Errorf("bob epoch %d != alice epoch %d", bobsState.Epoch, alicesState.Epoch)
	}
	if !bytes.Equal(bobsState.ConfirmedTranscriptHash, alicesState.ConfirmedTranscriptHash) {
		return fmt.Errorf("bob and alice confirmed transcript hashes diverged")
	}
	return nil
}

// scenarioUpdatePath is S2: Bob issues an Update and commits it, Alice
// applies the Commit, and both sides must land on the same
// commit_secret-derived epoch secrets.
func scenarioUpdatePath(suite ciphersuite.Suite) error {
	alice, err := newBundle(suite, "alice")
	if err != nil {
		return err
	}
	bob, err := newBundle(suite, "bob")
	if err != nil {
		return err
	}
	groupID := []byte{0x00}

	alicesState := group.New(suite, groupID, alice)
	q := proposal.NewQueue(suite)
	addID, err := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	if err != nil {
		return err
	}
	result, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, nil, q, []proposal.ID{addID}, false)
	if err != nil {
		return err
	}
	bobsState, err := group.NewFromWelcome(suite, groupID, result.Welcome, bob, treemath.LeafIndex(1))
	if err != nil {
		return err
	}

	bobUpdated, err := newBundle(suite, "bob-updated")
	if err != nil {
		return err
	}
	q2 := proposal.NewQueue(suite)
	updID, err := q2.Insert(proposal.Proposal{Type: proposal.TypeUpdate, Update: &proposal.UpdateProposal{KeyPackage: bobUpdated.KeyPackage}}, 1, nil)
	if err != nil {
		return err
	}
	beforeHash := append([]byte{}, alicesState.Tree.TreeHash()...)

	updateResult, err := bobsState.CreateCommit(nil, bob.SignaturePrivateKey, &bobUpdated, q2, []proposal.ID{updID}, false)
	if err != nil {
		return err
	}
	if err := alicesState.ApplyCommit(updateResult.Plaintext, q2); err != nil {
		return err
	}

	if bytes.Equal(beforeHash, alicesState.Tree.TreeHash()) {
		return fmt.Errorf("expected tree_hash to change after update path commit")
	}
	if !bytes.Equal(alicesState.Secrets.ApplicationSecret, bobsState.Secrets.ApplicationSecret) {
		return fmt.Errorf("application secrets diverged after update path commit")
	}
	return nil
}

// scenarioRemoveSelfIsRemoved is S3: {A,B,C}; A removes B; B observes
// SelfRemoved, A and C continue.
func scenarioRemoveSelfIsRemoved(suite ciphersuite.Suite) error {
	alice, err := newBundle(suite, "alice")
	if err != nil {
		return err
	}
	bob, err := newBundle(suite, "bob")
	if err != nil {
		return err
	}
	carol, err := newBundle(suite, "carol")
	if err != nil {
		return err
	}
	groupID := []byte{0x00}

	alicesState := group.New(suite, groupID, alice)
	q := proposal.NewQueue(suite)
	addBob, err := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	if err != nil {
		return err
	}
	addCarol, err := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: carol.KeyPackage}}, 0, nil)
	if err != nil {
		return err
	}
	result, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, nil, q, []proposal.ID{addBob, addCarol}, false)
	if err != nil {
		return err
	}
	bobsState, err := group.NewFromWelcome(suite, groupID, result.Welcome, bob, treemath.LeafIndex(1))
	if err != nil {
		return err
	}
	carolsState, err := group.NewFromWelcome(suite, groupID, result.Welcome, carol, treemath.LeafIndex(2))
	if err != nil {
		return err
	}

	aliceUpdated, err := newBundle(suite, "alice-updated")
	if err != nil {
		return err
	}
	q2 := proposal.NewQueue(suite)
	removeBob, err := q2.Insert(proposal.Proposal{Type: proposal.TypeRemove, Remove: &proposal.RemoveProposal{Removed: 1}}, 0, nil)
	if err != nil {
		return err
	}
	removeResult, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, &aliceUpdated, q2, []proposal.ID{removeBob}, false)
	if err != nil {
		return err
	}

	if err := bobsState.ApplyCommit(removeResult.Plaintext, q2); err == nil {
		return fmt.Errorf("expected bob's ApplyCommit to report self-removal")
	} else if !bobsState.SelfRemoved {
		return fmt.Errorf("bob's ApplyCommit failed without setting SelfRemoved: %v", err)
	}

	if err := carolsState.ApplyCommit(removeResult.Plaintext, q2); err != nil {
		return fmt.Errorf("carol failed to apply the remove commit: %w", err)
	}
	if carolsState.SelfRemoved {
		return fmt.Errorf("carol should not observe self-removal")
	}
	if !bytes.Equal(alicesState.Tree.TreeHash(), carolsState.Tree.TreeHash()) {
		return fmt.Errorf("alice and carol tree hashes diverged after remove commit")
	}

	ct, err := alicesState.Encrypt(nil, []byte("still here"))
	if err != nil {
		return err
	}
	_, body, err := carolsState.Decrypt(ct)
	if err != nil {
		return fmt.Errorf("carol failed to decrypt post-removal application message: %w", err)
	}
	if string(body) != "still here" {
		return fmt.Errorf("unexpected decrypted body %q", body)
	}
	return nil
}

// scenarioOutOfOrderApplication is S4: generations delivered out of order
// all succeed; a sufficiently stale generation is rejected.
func scenarioOutOfOrderApplication(suite ciphersuite.Suite) error {
	r := ratchet.NewSenderRatchet(suite, treemath.LeafIndex(0), bytes.Repeat([]byte{0x42}, suite.HashLen()))
	order := []uint32{0, 2, 1, 3, 5, 4}
	for _, g := range order {
		if _, err := r.GetSecret(g); err != nil {
			return fmt.Errorf("generation %d: %w", g, err)
		}
	}
	if _, err := r.GetSecret(6); err != nil {
		return fmt.Errorf("generation 6: %w", err)
	}
	if _, err := r.GetSecret(0); err == nil {
		return fmt.Errorf("expected generation 0 to be rejected as too distant in the past once current generation reached 6")
	}
	return nil
}

// scenarioBulkAddBeyondCapacity is S5: a 2-member group commits 5 Add
// proposals in one Commit, growing to 13 nodes / 7 leaves.
func scenarioBulkAddBeyondCapacity(suite ciphersuite.Suite) error {
	alice, err := newBundle(suite, "alice")
	if err != nil {
		return err
	}
	bob, err := newBundle(suite, "bob")
	if err != nil {
		return err
	}
	groupID := []byte{0x00}

	alicesState := group.New(suite, groupID, alice)
	q := proposal.NewQueue(suite)
	addBob, err := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	if err != nil {
		return err
	}
	if _, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, nil, q, []proposal.ID{addBob}, false); err != nil {
		return err
	}

	q2 := proposal.NewQueue(suite)
	var ids []proposal.ID
	for i := 0; i < 5; i++ {
		b, err := newBundle(suite, fmt.Sprintf("member-%d", i))
		if err != nil {
			return err
		}
		id, err := q2.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: b.KeyPackage}}, 0, nil)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if _, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, nil, q2, ids, false); err != nil {
		return err
	}
	if len(alicesState.Tree.Nodes) != 13 {
		return fmt.Errorf("expected 13 nodes after bulk add, got %d", len(alicesState.Tree.Nodes))
	}
	return nil
}

// scenarioWelcomeIntegrity is S6: a tampered EncryptedGroupInfo must be
// rejected by NewFromWelcome rather than silently producing bad state.
func scenarioWelcomeIntegrity(suite ciphersuite.Suite) error {
	alice, err := newBundle(suite, "alice")
	if err != nil {
		return err
	}
	bob, err := newBundle(suite, "bob")
	if err != nil {
		return err
	}
	groupID := []byte{0x00}

	alicesState := group.New(suite, groupID, alice)
	q := proposal.NewQueue(suite)
	addID, err := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	if err != nil {
		return err
	}
	result, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, nil, q, []proposal.ID{addID}, false)
	if err != nil {
		return err
	}

	tampered := *result.Welcome
	tampered.EncryptedGroupInfo = append([]byte{}, result.Welcome.EncryptedGroupInfo...)
	tampered.EncryptedGroupInfo[0] ^= 0xFF

	if _, err := group.NewFromWelcome(suite, groupID, &tampered, bob, treemath.LeafIndex(1)); err == nil {
		return fmt.Errorf("expected tampered welcome to be rejected")
	}
	return nil
}
