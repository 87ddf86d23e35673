package group

import (
	"bytes"
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

// TestFounderAddAndWelcome is scenario S1 end to end: Alice founds a group,
// commits an Add for Bob, and Bob joins from the resulting Welcome.
func TestFounderAddAndWelcome(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")
	groupID := []byte("group-s1")

	g := New(suite, groupID, alice)

	q := proposal.NewQueue(suite)
	addID, err := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	result, err := g.CreateCommit(nil, alice.SignaturePrivateKey, nil, q, []proposal.ID{addID}, false)
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}
	if result.Welcome == nil {
		t.Fatalf("expected a Welcome for the invited member")
	}
	if g.Epoch != 1 {
		t.Fatalf("expected epoch 1 after commit, got %d", g.Epoch)
	}

	bobState, err := NewFromWelcome(suite, groupID, result.Welcome, bob, treemath.LeafIndex(1))
	if err != nil {
		t.Fatalf("NewFromWelcome: %v", err)
	}
	if bobState.Epoch != g.Epoch {
		t.Fatalf("expected bob's epoch %d to match alice's %d", bobState.Epoch, g.Epoch)
	}
	if !bytes.Equal(bobState.Secrets.ApplicationSecret, g.Secrets.ApplicationSecret) {
		t.Fatalf("expected matching application secrets after join")
	}
	if !bytes.Equal(bobState.ConfirmedTranscriptHash, g.ConfirmedTranscriptHash) {
		t.Fatalf("expected matching confirmed transcript hash after join")
	}
}

// TestCommitSecretMatchesAcrossPathUpdate is scenario S2: a path-update
// commit's commit_secret (and therefore derived epoch secrets) must match
// between committer and receiver.
func TestCommitSecretMatchesAcrossPathUpdate(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")
	groupID := []byte("group-s2")

	alicesState := New(suite, groupID, alice)
	q := proposal.NewQueue(suite)
	addID, _ := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	result, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, nil, q, []proposal.ID{addID}, false)
	if err != nil {
		t.Fatalf("CreateCommit add: %v", err)
	}

	bobsState, err := NewFromWelcome(suite, groupID, result.Welcome, bob, treemath.LeafIndex(1))
	if err != nil {
		t.Fatalf("NewFromWelcome: %v", err)
	}

	// Alice forces a self-update commit with an empty proposal list.
	newAlice := newTestBundle(t, suite, "alice-updated")
	q2 := proposal.NewQueue(suite)
	updateResult, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, &newAlice, q2, nil, true)
	if err != nil {
		t.Fatalf("CreateCommit update: %v", err)
	}

	if err := bobsState.ApplyCommit(updateResult.Plaintext, q2); err != nil {
		t.Fatalf("ApplyCommit: %v", err)
	}

	if alicesState.Epoch != bobsState.Epoch {
		t.Fatalf("expected matching epoch, alice=%d bob=%d", alicesState.Epoch, bobsState.Epoch)
	}
	if !bytes.Equal(alicesState.Secrets.ApplicationSecret, bobsState.Secrets.ApplicationSecret) {
		t.Fatalf("expected matching application secrets after path update commit")
	}
	if !bytes.Equal(alicesState.ConfirmedTranscriptHash, bobsState.ConfirmedTranscriptHash) {
		t.Fatalf("expected matching confirmed transcript hash after path update commit")
	}
}

// TestSelfRemoveTerminatesReceiver is scenario S3: a Remove naming the
// receiver's own leaf surfaces ErrSelfRemoved from ApplyCommit.
func TestSelfRemoveTerminatesReceiver(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")
	groupID := []byte("group-s3")

	alicesState := New(suite, groupID, alice)
	q := proposal.NewQueue(suite)
	addID, _ := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	result, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, nil, q, []proposal.ID{addID}, false)
	if err != nil {
		t.Fatalf("CreateCommit add: %v", err)
	}
	bobsState, err := NewFromWelcome(suite, groupID, result.Welcome, bob, treemath.LeafIndex(1))
	if err != nil {
		t.Fatalf("NewFromWelcome: %v", err)
	}

	newAlice := newTestBundle(t, suite, "alice-updated")
	q2 := proposal.NewQueue(suite)
	removeID, _ := q2.Insert(proposal.Proposal{Type: proposal.TypeRemove, Remove: &proposal.RemoveProposal{Removed: 1}}, 0, nil)
	removeResult, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, &newAlice, q2, []proposal.ID{removeID}, false)
	if err != nil {
		t.Fatalf("CreateCommit remove: %v", err)
	}

	err = bobsState.ApplyCommit(removeResult.Plaintext, q2)
	if err == nil {
		t.Fatalf("expected ApplyCommit to report self removal")
	}
	if !bobsState.SelfRemoved {
		t.Fatalf("expected bobsState.SelfRemoved to be set")
	}
}

// TestApplicationMessageRoundTrip checks Encrypt/Decrypt across members
// sharing the same epoch.
func TestApplicationMessageRoundTrip(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")
	groupID := []byte("group-app")

	alicesState := New(suite, groupID, alice)
	q := proposal.NewQueue(suite)
	addID, _ := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	result, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, nil, q, []proposal.ID{addID}, false)
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}
	bobsState, err := NewFromWelcome(suite, groupID, result.Welcome, bob, treemath.LeafIndex(1))
	if err != nil {
		t.Fatalf("NewFromWelcome: %v", err)
	}

	ct, err := alicesState.Encrypt([]byte("aad"), []byte("hello bob"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	sender, body, err := bobsState.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if sender != 0 {
		t.Fatalf("expected sender leaf 0, got %d", sender)
	}
	if string(body) != "hello bob" {
		t.Fatalf("expected decrypted body %q, got %q", "hello bob", body)
	}
}

// TestTamperedWelcomeGroupInfoRejected is scenario S6: a corrupted
// EncryptedGroupInfo must fail AEAD decryption in NewFromWelcome.
func TestTamperedWelcomeGroupInfoRejected(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	alice := newTestBundle(t, suite, "alice")
	bob := newTestBundle(t, suite, "bob")
	groupID := []byte("group-s6")

	alicesState := New(suite, groupID, alice)
	q := proposal.NewQueue(suite)
	addID, _ := q.Insert(proposal.Proposal{Type: proposal.TypeAdd, Add: &proposal.AddProposal{KeyPackage: bob.KeyPackage}}, 0, nil)
	result, err := alicesState.CreateCommit(nil, alice.SignaturePrivateKey, nil, q, []proposal.ID{addID}, false)
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}

	tampered := *result.Welcome
	tampered.EncryptedGroupInfo = append([]byte{}, result.Welcome.EncryptedGroupInfo...)
	tampered.EncryptedGroupInfo[0] ^= 0xFF

	if _, err := NewFromWelcome(suite, groupID, &tampered, bob, treemath.LeafIndex(1)); err == nil {
		t.Fatalf("expected tampered welcome to be rejected")
	}
}
