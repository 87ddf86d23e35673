package ciphersuite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cloudflare/circl/hpke"
	"golang.org/x/crypto/hkdf"
)

// x25519Suite implements MLS10_128_DHKEMX25519_AES128GCM_SHA256_ED25519.
//
// HPKE is provided by cloudflare/circl/hpke (the library the teacher already
// depends on for PQC primitives, here used for its classical X25519 HPKE
// support); signatures use stdlib crypto/ed25519, matching the teacher's own
// transparency/signing.go, which signs tree heads with Ed25519 rather than
// the Dilithium3 the rest of internal/crypto uses.
type x25519Suite struct {
	hpke hpke.Suite
}

// NewX25519Suite constructs the classical ciphersuite.
func NewX25519Suite() Suite {
	return &x25519Suite{
		hpke: hpke.NewSuite(hpke.KEM_X25519_HKDF_SHA256, hpke.KDF_HKDF_SHA256, hpke.AEAD_AES128GCM),
	}
}

func (s *x25519Suite) ID() ID { return MLS10_128_DHKEMX25519_AES128GCM_SHA256_ED25519 }

func (s *x25519Suite) HashLen() int      { return sha256.Size }
func (s *x25519Suite) AeadKeyLen() int   { return 16 }
func (s *x25519Suite) AeadNonceLen() int { return 12 }

func (s *x25519Suite) Hash(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

func (s *x25519Suite) HKDFExtract(salt, ikm []byte) []byte {
	return hkdf.Extract(sha256.New, ikm, salt)
}

func (s *x25519Suite) HKDFExpand(prk, info []byte, length int) []byte {
	r := hkdf.Expand(sha256.New, prk, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(fmt.Sprintf("ciphersuite: hkdf expand failed: %v", err))
	}
	return out
}

func (s *x25519Suite) HKDFExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	info := EncodeHKDFLabel(length, label, context)
	return s.HKDFExpand(secret, info, length)
}

// EncodeHKDFLabel implements spec.md §6's HKDFLabel encoding:
// (length: u16, label: vec<u8,u8> = "mls10 "+label, context: vec<u8,u32>).
func EncodeHKDFLabel(length int, label string, context []byte) []byte {
	full := "mls10 " + label
	buf := make([]byte, 0, 2+1+len(full)+4+len(context))
	var lenBytes [2]byte
	binary.BigEndian.PutUint16(lenBytes[:], uint16(length))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, byte(len(full)))
	buf = append(buf, full...)
	var ctxLen [4]byte
	binary.BigEndian.PutUint32(ctxLen[:], uint32(len(context)))
	buf = append(buf, ctxLen[:]...)
	buf = append(buf, context...)
	return buf
}

func (s *x25519Suite) GenerateHPKEKeyPair() (public, private []byte, err error) {
	pub, priv, err := s.hpke.KEM.Scheme().GenerateKeyPair()
	if err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: generate hpke keypair: %w", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: marshal hpke public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: marshal hpke private key: %w", err)
	}
	return pubBytes, privBytes, nil
}

func (s *x25519Suite) DeriveHPKEKeyPair(seed []byte) (public, private []byte, err error) {
	pub, priv := s.hpke.KEM.Scheme().DeriveKeyPair(seed)
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: marshal derived hpke public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: marshal derived hpke private key: %w", err)
	}
	return pubBytes, privBytes, nil
}

func (s *x25519Suite) HPKESeal(publicKey, info, aad, plaintext []byte) (*HPKECiphertext, error) {
	pub, err := s.hpke.KEM.Scheme().UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: unmarshal hpke public key: %w", err)
	}
	sender, err := s.hpke.NewSender(pub, info)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: new hpke sender: %w", err)
	}
	enc, sealer, err := sender.Setup(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: hpke setup: %w", err)
	}
	ct, err := sealer.Seal(plaintext, aad)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: hpke seal: %w", err)
	}
	return &HPKECiphertext{KEMOutput: enc, Ciphertext: ct}, nil
}

func (s *x25519Suite) HPKEOpen(privateKey, info, aad []byte, ct *HPKECiphertext) ([]byte, error) {
	priv, err := s.hpke.KEM.Scheme().UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: unmarshal hpke private key: %w", err)
	}
	receiver, err := s.hpke.NewReceiver(priv, info)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: new hpke receiver: %w", err)
	}
	opener, err := receiver.Setup(ct.KEMOutput)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: hpke setup: %w", err)
	}
	pt, err := opener.Open(ct.Ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: hpke open: %w", err)
	}
	return pt, nil
}

func (s *x25519Suite) AeadSeal(key, nonce, aad, plaintext []byte) ([]byte, error) {
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

func (s *x25519Suite) AeadOpen(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: gcm: %w", err)
	}
	pt, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("ciphersuite: aead open failed: %w", err)
	}
	return pt, nil
}

func (s *x25519Suite) GenerateSigningKeyPair() (public, private []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("ciphersuite: generate ed25519 key: %w", err)
	}
	return []byte(pub), []byte(priv), nil
}

func (s *x25519Suite) Sign(privateKey, message []byte) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ciphersuite: invalid ed25519 private key size %d", len(privateKey))
	}
	return ed25519.Sign(ed25519.PrivateKey(privateKey), message), nil
}

func (s *x25519Suite) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
