// Package ratchet implements the per-sender forward-secret symmetric chain
// (SenderRatchet) and its per-leaf collection (ASTree), spec.md §4.5.
package ratchet

import (
	"fmt"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/treemath"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// OutOfOrderTolerance bounds how far behind the current generation a past
// secret is retained for (spec.md §4.5; this value and its FIFO eviction
// semantics are carried over from the original source's sender_ratchet.rs).
const OutOfOrderTolerance = 5

// futureLookahead bounds how far ahead of the current generation a caller
// may request a secret for in one step — far enough that legitimate
// reordering never trips it, tight enough to reject a runaway generation
// counter.
const futureLookahead = 1000

// Secret is a derived (key, nonce) pair for one generation.
type Secret struct {
	Key   []byte
	Nonce []byte
}

// SenderRatchet is the per-leaf forward-secret chain: (leaf_index,
// generation, past_secrets: bounded deque), spec.md §3.
type SenderRatchet struct {
	suite      ciphersuite.Suite
	leaf       treemath.LeafIndex
	generation uint32
	secret     []byte
	past       map[uint32][]byte
	pastOrder  []uint32
	sent       bool
}

// NewSenderRatchet seeds a fresh ratchet for leaf from the epoch's
// application_secret (spec.md §4.5).
func NewSenderRatchet(suite ciphersuite.Suite, leaf treemath.LeafIndex, applicationSecret []byte) *SenderRatchet {
	return &SenderRatchet{
		suite:      suite,
		leaf:       leaf,
		generation: 0,
		secret:     suite.HKDFExpandLabel(applicationSecret, "app-secret", encodeLeafGeneration(leaf, 0), suite.HashLen()),
		past:       make(map[uint32][]byte),
	}
}

// Generation returns the current generation counter.
func (r *SenderRatchet) Generation() uint32 { return r.generation }

// NextSendSecret returns the (generation, secret) pair a sender should use
// for its next outgoing message: generation 0 on first use, stepping
// forward by one thereafter. Unlike GetSecret(g), which serves decryption
// by arbitrary generation number, this is the sender-side counterpart that
// never re-derives a generation already used for sending.
func (r *SenderRatchet) NextSendSecret() (uint32, Secret) {
	if !r.sent {
		r.sent = true
		return 0, r.secretToKeyNonce(r.secret, 0)
	}
	r.pushPast(r.generation, r.secret)
	r.secret = deriveAppSecret(r.suite, r.secret, "app-secret", r.leaf, r.generation+1)
	r.generation++
	return r.generation, r.secretToKeyNonce(r.secret, r.generation)
}

func encodeLeafGeneration(leaf treemath.LeafIndex, generation uint32) []byte {
	w := wireformat.NewWriter()
	w.WriteUint32(uint32(leaf))
	w.WriteUint32(generation)
	return w.Bytes()
}

func deriveAppSecret(suite ciphersuite.Suite, secret []byte, label string, leaf treemath.LeafIndex, generation uint32) []byte {
	return suite.HKDFExpandLabel(secret, label, encodeLeafGeneration(leaf, generation), suite.HashLen())
}

func (r *SenderRatchet) secretToKeyNonce(secret []byte, generation uint32) Secret {
	key := r.suite.HKDFExpandLabel(secret, "app-key", encodeLeafGeneration(r.leaf, generation), r.suite.AeadKeyLen())
	nonce := r.suite.HKDFExpandLabel(secret, "app-nonce", encodeLeafGeneration(r.leaf, generation), r.suite.AeadNonceLen())
	return Secret{Key: key, Nonce: nonce}
}

// pushPast records the secret for generation into the bounded FIFO,
// evicting the oldest entry once OutOfOrderTolerance is exceeded.
func (r *SenderRatchet) pushPast(generation uint32, secret []byte) {
	r.past[generation] = secret
	r.pastOrder = append(r.pastOrder, generation)
	if len(r.pastOrder) > OutOfOrderTolerance {
		oldest := r.pastOrder[0]
		r.pastOrder = r.pastOrder[1:]
		delete(r.past, oldest)
	}
}

// GetSecret implements spec.md §4.5 get_secret(g): fetches (or derives) the
// (key, nonce) pair for generation g, stepping the ratchet forward if g is
// ahead of the current generation, without ever stepping backward.
func (r *SenderRatchet) GetSecret(g uint32) (Secret, error) {
	if g > r.generation && g-r.generation > futureLookahead {
		return Secret{}, fmt.Errorf("ratchet: %w: leaf %d generation %d (current %d)", ErrTooDistantInTheFuture, r.leaf, g, r.generation)
	}
	if g < r.generation && r.generation-g >= OutOfOrderTolerance {
		return Secret{}, fmt.Errorf("ratchet: %w: leaf %d generation %d (current %d)", ErrTooDistantInThePast, r.leaf, g, r.generation)
	}

	if g <= r.generation {
		if g == r.generation {
			return r.secretToKeyNonce(r.secret, g), nil
		}
		secret, ok := r.past[g]
		if !ok {
			return Secret{}, fmt.Errorf("ratchet: %w: leaf %d generation %d no longer retained", ErrTooDistantInThePast, r.leaf, g)
		}
		return r.secretToKeyNonce(secret, g), nil
	}

	for r.generation < g {
		r.pushPast(r.generation, r.secret)
		r.secret = deriveAppSecret(r.suite, r.secret, "app-secret", r.leaf, r.generation+1)
		r.generation++
	}
	return r.secretToKeyNonce(r.secret, r.generation), nil
}
