package proposal

import (
	"testing"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/extensions"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/treemath"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

func testBundle(t *testing.T, suite ciphersuite.Suite, name string) keypackage.Bundle {
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

func TestProposalEncodeDecodeRoundTrip(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	b := testBundle(t, suite, "carol")
	cases := []Proposal{
		{Type: TypeAdd, Add: &AddProposal{KeyPackage: b.KeyPackage}},
		{Type: TypeUpdate, Update: &UpdateProposal{KeyPackage: b.KeyPackage}},
		{Type: TypeRemove, Remove: &RemoveProposal{Removed: treemath.LeafIndex(2)}},
	}
	for _, p := range cases {
		w := wireformat.NewWriter()
		if err := p.Encode(w); err != nil {
			t.Fatalf("Encode: %v", err)
		}
		r := wireformat.NewReader(w.Bytes())
		got, err := DecodeProposal(r)
		if err != nil {
			t.Fatalf("DecodeProposal: %v", err)
		}
		if got.Type != p.Type {
			t.Fatalf("type mismatch: got %v want %v", got.Type, p.Type)
		}
		if !r.AtEnd() {
			t.Fatalf("trailing bytes after decode")
		}
	}
}

func TestQueueDedupAndOrdering(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	q := NewQueue(suite)
	bob := testBundle(t, suite, "bob")
	carol := testBundle(t, suite, "carol")

	addBob := Proposal{Type: TypeAdd, Add: &AddProposal{KeyPackage: bob.KeyPackage}}
	removeOne := Proposal{Type: TypeRemove, Remove: &RemoveProposal{Removed: 1}}
	addCarol := Proposal{Type: TypeAdd, Add: &AddProposal{KeyPackage: carol.KeyPackage}}

	id1, err := q.Insert(addBob, 0, nil)
	if err != nil {
		t.Fatalf("Insert addBob: %v", err)
	}
	id2, err := q.Insert(removeOne, 0, nil)
	if err != nil {
		t.Fatalf("Insert removeOne: %v", err)
	}
	id3, err := q.Insert(addCarol, 0, nil)
	if err != nil {
		t.Fatalf("Insert addCarol: %v", err)
	}
	// re-inserting an identical proposal must not create a new entry.
	idDup, err := q.Insert(addBob, 0, nil)
	if err != nil {
		t.Fatalf("Insert duplicate: %v", err)
	}
	if idDup != id1 {
		t.Fatalf("duplicate insert produced a new id")
	}
	if len(q.AllIDs()) != 3 {
		t.Fatalf("expected 3 distinct proposals, got %d", len(q.AllIDs()))
	}

	lists, err := q.GetCommitLists([]ID{id1, id2, id3})
	if err != nil {
		t.Fatalf("GetCommitLists: %v", err)
	}
	if len(lists.Adds) != 2 || len(lists.Removes) != 1 || len(lists.Updates) != 0 {
		t.Fatalf("unexpected bucket sizes: %+v", lists)
	}
	if lists.Adds[0].ID != id1 || lists.Adds[1].ID != id3 {
		t.Fatalf("expected add bucket to preserve insertion order")
	}
}

func TestQueueRejectsUnverifiableAdd(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	q := NewQueue(suite)
	bob := testBundle(t, suite, "bob")
	tampered := bob.KeyPackage
	tampered.InitPublicKey[0] ^= 0xFF
	_, err := q.Insert(Proposal{Type: TypeAdd, Add: &AddProposal{KeyPackage: tampered}}, 0, nil)
	if err == nil {
		t.Fatalf("expected insertion to reject a key package with invalid signature")
	}
}

func TestGetUnknownProposalIsNotFound(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	q := NewQueue(suite)
	_, err := q.Get(ID{})
	if err != ErrProposalNotFound {
		t.Fatalf("expected ErrProposalNotFound, got %v", err)
	}
}
