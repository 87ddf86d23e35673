package ratchet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/treemath"
)

func newTestRatchet(t *testing.T) *SenderRatchet {
	t.Helper()
	suite := ciphersuite.NewX25519Suite()
	return NewSenderRatchet(suite, treemath.LeafIndex(0), []byte("application-secret-for-epoch-1!"))
}

// TestOutOfOrderDelivery is scenario S4: generations delivered out of order
// within the tolerance window all succeed and are stable on replay.
func TestOutOfOrderDelivery(t *testing.T) {
	r := newTestRatchet(t)
	order := []uint32{0, 2, 1, 3, 5, 4}
	secrets := make(map[uint32]Secret)
	for _, g := range order {
		s, err := r.GetSecret(g)
		if err != nil {
			t.Fatalf("GetSecret(%d): %v", g, err)
		}
		secrets[g] = s
	}
	// Replaying an already-seen generation must return the same secret.
	replay, err := r.GetSecret(1)
	if err != nil {
		t.Fatalf("GetSecret(1) replay: %v", err)
	}
	if !bytes.Equal(replay.Key, secrets[1].Key) || !bytes.Equal(replay.Nonce, secrets[1].Nonce) {
		t.Fatalf("expected replay of generation 1 to return the same secret")
	}
	for a := range secrets {
		for b := range secrets {
			if a == b {
				continue
			}
			if bytes.Equal(secrets[a].Key, secrets[b].Key) {
				t.Fatalf("expected distinct keys for generations %d and %d", a, b)
			}
		}
	}
}

// TestTooDistantInThePast is the tail of scenario S4: after advancing to
// generation 6, requesting generation 0 is rejected (6 − 0 = 6 ≥ 5).
func TestTooDistantInThePast(t *testing.T) {
	r := newTestRatchet(t)
	if _, err := r.GetSecret(6); err != nil {
		t.Fatalf("GetSecret(6): %v", err)
	}
	_, err := r.GetSecret(0)
	if !errors.Is(err, ErrTooDistantInThePast) {
		t.Fatalf("expected ErrTooDistantInThePast, got %v", err)
	}
}

func TestTooDistantInTheFuture(t *testing.T) {
	r := newTestRatchet(t)
	_, err := r.GetSecret(futureLookahead + 1)
	if !errors.Is(err, ErrTooDistantInTheFuture) {
		t.Fatalf("expected ErrTooDistantInTheFuture, got %v", err)
	}
}

func TestBoundaryOfPastWindowIsRetained(t *testing.T) {
	r := newTestRatchet(t)
	if _, err := r.GetSecret(4); err != nil {
		t.Fatalf("GetSecret(4): %v", err)
	}
	if _, err := r.GetSecret(0); err != nil {
		t.Fatalf("expected generation 0 still retained at distance 4, got %v", err)
	}
}

func TestASTreeSeparatesLeaves(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	tree := NewASTree(suite, []byte("application-secret-for-epoch-1!"))
	a, err := tree.GetSecret(0, 0)
	if err != nil {
		t.Fatalf("GetSecret(leaf 0): %v", err)
	}
	b, err := tree.GetSecret(1, 0)
	if err != nil {
		t.Fatalf("GetSecret(leaf 1): %v", err)
	}
	if bytes.Equal(a.Key, b.Key) {
		t.Fatalf("expected distinct leaves to derive distinct keys at the same generation")
	}
}
