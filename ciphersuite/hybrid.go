package ciphersuite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/kyber/kyber1024"
	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// hybridPQSuite implements MLS10_128_HYBRID_X25519KYBER1024_AES128GCM_SHA256_DILITHIUM3.
//
// There is no standard HPKE KEM combining X25519 with Kyber-1024, so this
// suite builds its own "combined KEM" the same way the teacher's
// internal/crypto/pqc.go GenerateHybridKeyPair/CreateHybridSignedPreKey does
// for PQXDH: an ephemeral X25519 DH and a Kyber-1024 encapsulation are each
// performed against the recipient's half of a hybrid public key, and the two
// shared secrets are combined with HKDF-Extract before anything is derived
// from them, mirroring the concatenation the teacher signs in
// CreateHybridSignedPreKey.
type hybridPQSuite struct{}

// NewHybridPQSuite constructs the PQ-hybrid ciphersuite.
func NewHybridPQSuite() Suite { return &hybridPQSuite{} }

func (s *hybridPQSuite) ID() ID {
	return MLS10_128_HYBRID_X25519KYBER1024_AES128GCM_SHA256_DILITHIUM3
}

func (s *hybridPQSuite) HashLen() int      { return sha256.Size }
func (s *hybridPQSuite) AeadKeyLen() int   { return 16 }
func (s *hybridPQSuite) AeadNonceLen() int { return 12 }

func (s *hybridPQSuite) Hash(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

func (s *hybridPQSuite) HKDFExtract(salt, ikm []byte) []byte {
	return hkdf.Extract(sha256.New, ikm, salt)
}

func (s *hybridPQSuite) HKDFExpand(prk, info []byte, length int) []byte {
	r := hkdf.Expand(sha256.New, prk, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(fmt.Sprintf("ciphersuite: hkdf expand failed: %v", err))
	}
	return out
}

func (s *hybridPQSuite) HKDFExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	return s.HKDFExpand(secret, EncodeHKDFLabel(length, label, context), length)
}

// Hybrid public and private keys lay out the X25519 half first then the
// Kyber1024 half, the same ECPublicKey||PQPublicKey ordering the teacher's
// HybridKeyPair uses.
const (
	x25519PubLen  = 32
	x25519PrivLen = 32
)

func (s *hybridPQSuite) GenerateHPKEKeyPair() (public, private []byte, err error) {
	var ecPriv [x25519PrivLen]byte
	if _, err := rand.Read(ecPriv[:]); err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: generate x25519 private key: %w", err)
	}
	clampX25519(ecPriv[:])
	ecPub, err := curve25519.X25519(ecPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: derive x25519 public key: %w", err)
	}

	kyberPub, kyberPriv, err := kyber1024.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: generate kyber1024 keypair: %w", err)
	}
	kyberPubBytes := make([]byte, kyber1024.PublicKeySize)
	kyberPrivBytes := make([]byte, kyber1024.PrivateKeySize)
	kyberPub.Pack(kyberPubBytes)
	kyberPriv.Pack(kyberPrivBytes)

	public = append(append([]byte{}, ecPub...), kyberPubBytes...)
	private = append(append([]byte{}, ecPriv[:]...), kyberPrivBytes...)
	return public, private, nil
}

// DeriveHPKEKeyPair derives the X25519 half from Hash("hybrid-ec-seed" ||
// seed), clamped, and the Kyber1024 half from a domain-separated expansion of the same seed,
// so that a single MLS path secret still yields one deterministic node
// keypair as spec.md §4.2 step 7 requires.
func (s *hybridPQSuite) DeriveHPKEKeyPair(seed []byte) (public, private []byte, err error) {
	ecSeed := s.Hash(append([]byte("hybrid-ec-seed"), seed...))
	clampX25519(ecSeed)
	ecPub, err := curve25519.X25519(ecSeed, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: derive x25519 public key: %w", err)
	}

	kyberSeedReader := hkdf.Expand(sha256.New, seed, []byte("hybrid-kyber-seed"))
	kyberSeed := make([]byte, kyber1024.KeySeedSize)
	if _, err := io.ReadFull(kyberSeedReader, kyberSeed); err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: derive kyber seed: %w", err)
	}
	kyberPub, kyberPriv := kyber1024.NewKeyFromSeed(kyberSeed)
	kyberPubBytes := make([]byte, kyber1024.PublicKeySize)
	kyberPrivBytes := make([]byte, kyber1024.PrivateKeySize)
	kyberPub.Pack(kyberPubBytes)
	kyberPriv.Pack(kyberPrivBytes)

	public = append(append([]byte{}, ecPub...), kyberPubBytes...)
	private = append(append([]byte{}, ecSeed...), kyberPrivBytes...)
	return public, private, nil
}

func clampX25519(k []byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

func (s *hybridPQSuite) splitPublic(public []byte) (ecPub []byte, kyberPub kyber1024.PublicKey, err error) {
	if len(public) != x25519PubLen+kyber1024.PublicKeySize {
		return nil, kyber1024.PublicKey{}, fmt.Errorf("ciphersuite: invalid hybrid public key length %d", len(public))
	}
	ecPub = public[:x25519PubLen]
	kyberPub.Unpack(public[x25519PubLen:])
	return ecPub, kyberPub, nil
}

func (s *hybridPQSuite) splitPrivate(private []byte) (ecPriv []byte, kyberPriv kyber1024.PrivateKey, err error) {
	if len(private) != x25519PrivLen+kyber1024.PrivateKeySize {
		return nil, kyber1024.PrivateKey{}, fmt.Errorf("ciphersuite: invalid hybrid private key length %d", len(private))
	}
	ecPriv = private[:x25519PrivLen]
	kyberPriv.Unpack(private[x25519PrivLen:])
	return ecPriv, kyberPriv, nil
}

// HPKESeal performs an ephemeral X25519 DH plus a Kyber1024 encapsulation
// against the recipient's hybrid public key, combines the two shared
// secrets, derives an AEAD key/nonce from the combined secret and info, and
// seals plaintext. The KEM output carries the ephemeral X25519 public key
// and the Kyber ciphertext so the receiver can redo both operations.
func (s *hybridPQSuite) HPKESeal(publicKey, info, aad, plaintext []byte) (*HPKECiphertext, error) {
	recipientEC, recipientKyber, err := s.splitPublic(publicKey)
	if err != nil {
		return nil, err
	}

	var ephPriv [x25519PrivLen]byte
	if _, err := rand.Read(ephPriv[:]); err != nil {
		return nil, fmt.Errorf("ciphersuite: generate ephemeral x25519 key: %w", err)
	}
	clampX25519(ephPriv[:])
	ephPub, err := curve25519.X25519(ephPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: derive ephemeral x25519 public key: %w", err)
	}
	ecShared, err := curve25519.X25519(ephPriv[:], recipientEC)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: x25519 dh: %w", err)
	}

	kyberCT := make([]byte, kyber1024.CiphertextSize)
	kyberShared := make([]byte, kyber1024.SharedKeySize)
	recipientKyber.EncapsulateTo(kyberCT, kyberShared, nil)

	combined := s.HKDFExtract(info, append(append([]byte{}, ecShared...), kyberShared...))
	key := s.HKDFExpandLabel(combined, "hybrid-aead-key", aad, s.AeadKeyLen())
	nonce := s.HKDFExpandLabel(combined, "hybrid-aead-nonce", aad, s.AeadNonceLen())

	ct, err := aeadSeal(key, nonce, aad, plaintext)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: hybrid aead seal: %w", err)
	}

	kemOutput := append(append([]byte{}, ephPub...), kyberCT...)
	return &HPKECiphertext{KEMOutput: kemOutput, Ciphertext: ct}, nil
}

func (s *hybridPQSuite) HPKEOpen(privateKey, info, aad []byte, ct *HPKECiphertext) ([]byte, error) {
	ecPriv, kyberPriv, err := s.splitPrivate(privateKey)
	if err != nil {
		return nil, err
	}
	if len(ct.KEMOutput) != x25519PubLen+kyber1024.CiphertextSize {
		return nil, fmt.Errorf("ciphersuite: invalid hybrid kem output length %d", len(ct.KEMOutput))
	}
	ephPub := ct.KEMOutput[:x25519PubLen]
	kyberCT := ct.KEMOutput[x25519PubLen:]

	ecShared, err := curve25519.X25519(ecPriv, ephPub)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: x25519 dh: %w", err)
	}
	kyberShared := make([]byte, kyber1024.SharedKeySize)
	kyberPriv.DecapsulateTo(kyberShared, kyberCT)

	combined := s.HKDFExtract(info, append(append([]byte{}, ecShared...), kyberShared...))
	key := s.HKDFExpandLabel(combined, "hybrid-aead-key", aad, s.AeadKeyLen())
	nonce := s.HKDFExpandLabel(combined, "hybrid-aead-nonce", aad, s.AeadNonceLen())

	pt, err := aeadOpen(key, nonce, aad, ct.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: hybrid aead open failed: %w", err)
	}
	return pt, nil
}

func (s *hybridPQSuite) AeadSeal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	return aeadSeal(key, nonce, aad, plaintext)
}

func (s *hybridPQSuite) AeadOpen(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	return aeadOpen(key, nonce, aad, ciphertext)
}

func (s *hybridPQSuite) GenerateSigningKeyPair() (public, private []byte, err error) {
	pub, priv, err := mode3.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: generate dilithium3 key: %w", err)
	}
	return pub.Bytes(), priv.Bytes(), nil
}

func (s *hybridPQSuite) Sign(privateKey, message []byte) ([]byte, error) {
	if len(privateKey) != mode3.PrivateKeySize {
		return nil, fmt.Errorf("ciphersuite: invalid dilithium3 private key size %d", len(privateKey))
	}
	var priv mode3.PrivateKey
	var arr [mode3.PrivateKeySize]byte
	copy(arr[:], privateKey)
	priv.Unpack(&arr)
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(&priv, message, sig)
	return sig, nil
}

func (s *hybridPQSuite) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != mode3.PublicKeySize || len(signature) != mode3.SignatureSize {
		return false
	}
	var pub mode3.PublicKey
	var arr [mode3.PublicKeySize]byte
	copy(arr[:], publicKey)
	pub.Unpack(&arr)
	return mode3.Verify(&pub, message, signature)
}

func aeadSeal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: gcm: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

func aeadOpen(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: gcm: %w", err)
	}
	return gcm.Open(nil, nonce, ciphertext, aad)
}
