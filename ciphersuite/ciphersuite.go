// Package ciphersuite provides the cryptographic primitive contracts the
// ratchet tree, key schedule, and application ratchet are built on top of:
// hashing, HKDF, HPKE seal/open, AEAD, and signatures (spec.md §6).
//
// Two concrete suites are provided: NewX25519Suite (the classical ciphersuite
// used throughout S1-S6) and NewHybridPQSuite (an X25519+Kyber1024 hybrid KEM
// with Dilithium3 signatures, see SPEC_FULL.md DOMAIN STACK).
package ciphersuite

import "fmt"

// ID identifies a ciphersuite on the wire (§6: CiphersuiteID is u16).
type ID uint16

const (
	MLS10_128_DHKEMX25519_AES128GCM_SHA256_ED25519           ID = 0x0001
	MLS10_128_HYBRID_X25519KYBER1024_AES128GCM_SHA256_DILITHIUM3 ID = 0xF001
)

// HPKECiphertext is the result of an HPKE seal: an encapsulated KEM output
// plus the AEAD ciphertext, per spec.md §6.
type HPKECiphertext struct {
	KEMOutput  []byte
	Ciphertext []byte
}

// Suite is the primitive contract every ciphersuite-dependent component is
// written against. Implementations must never be reentrant-unsafe: all
// methods are expected to be safe for concurrent use since §5 permits
// parallel HPKE fan-out within a single group operation.
type Suite interface {
	ID() ID

	HashLen() int
	AeadKeyLen() int
	AeadNonceLen() int

	Hash(data []byte) []byte

	HKDFExtract(salt, ikm []byte) []byte
	HKDFExpand(prk, info []byte, length int) []byte
	// HKDFExpandLabel implements the MLSLabel-wrapped expand of spec.md §6:
	// HKDFLabel = (length, "mls10 "+label, context).
	HKDFExpandLabel(secret []byte, label string, context []byte, length int) []byte

	// GenerateHPKEKeyPair creates a fresh HPKE keypair.
	GenerateHPKEKeyPair() (public, private []byte, err error)
	// DeriveHPKEKeyPair deterministically derives an HPKE keypair from a
	// seed, used for path-secret-derived node keys (spec.md §4.2 step 7).
	DeriveHPKEKeyPair(seed []byte) (public, private []byte, err error)

	HPKESeal(publicKey, info, aad, plaintext []byte) (*HPKECiphertext, error)
	HPKEOpen(privateKey, info, aad []byte, ct *HPKECiphertext) ([]byte, error)

	AeadSeal(key, nonce, aad, plaintext []byte) ([]byte, error)
	AeadOpen(key, nonce, aad, ciphertext []byte) ([]byte, error)

	GenerateSigningKeyPair() (public, private []byte, err error)
	Sign(privateKey, message []byte) ([]byte, error)
	Verify(publicKey, message, signature []byte) bool
}

// ByID returns the concrete Suite for a given wire ID.
func ByID(id ID) (Suite, error) {
	switch id {
	case MLS10_128_DHKEMX25519_AES128GCM_SHA256_ED25519:
		return NewX25519Suite(), nil
	case MLS10_128_HYBRID_X25519KYBER1024_AES128GCM_SHA256_DILITHIUM3:
		return NewHybridPQSuite(), nil
	default:
		return nil, fmt.Errorf("ciphersuite: unknown ciphersuite id %d", id)
	}
}
