// Package keypackage implements the per-member signed bundle of identity,
// init key, capabilities, and extensions (spec.md §3, §4.2, §6).
package keypackage

import (
	"errors"
	"fmt"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/extensions"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// ProtocolVersion identifies the wire protocol generation (§6: u8, MLS10=0).
type ProtocolVersion uint8

const ProtocolVersionMLS10 ProtocolVersion = 0

// ErrSignatureInvalid is returned when a KeyPackage's signature does not
// verify against its credential's signature public key.
var ErrSignatureInvalid = errors.New("keypackage: signature verification failed")

// KeyPackage is (protocol_version, ciphersuite_id, init_public_key,
// credential, extensions, signature); the signature binds every prior
// field (spec.md §3).
type KeyPackage struct {
	ProtocolVersion ProtocolVersion
	CiphersuiteID   ciphersuite.ID
	InitPublicKey   []byte
	Credential      Credential
	Extensions      extensions.List
	Signature       []byte
}

// signedContent returns the canonical encoding of every field the
// signature covers, i.e. everything except the signature itself.
func (kp KeyPackage) signedContent() ([]byte, error) {
	w := wireformat.NewWriter()
	w.WriteUint8(uint8(kp.ProtocolVersion))
	w.WriteUint16(uint16(kp.CiphersuiteID))
	if err := w.WriteVarBytesU16(kp.InitPublicKey); err != nil {
		return nil, err
	}
	if err := kp.Credential.Encode(w); err != nil {
		return nil, err
	}
	if err := kp.Extensions.Encode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Validate checks the structural invariants of spec.md §3: exactly one
// Capabilities and one Lifetime extension must be present.
func (kp KeyPackage) Validate() error {
	count := func(t extensions.Type) int {
		n := 0
		for _, e := range kp.Extensions {
			if e.Type == t {
				n++
			}
		}
		return n
	}
	if count(extensions.TypeCapabilities) != 1 {
		return fmt.Errorf("keypackage: %w: expected exactly one Capabilities extension", extensions.ErrMissingExtension)
	}
	if count(extensions.TypeLifetime) != 1 {
		return fmt.Errorf("keypackage: %w: expected exactly one Lifetime extension", extensions.ErrMissingExtension)
	}
	return nil
}

// Sign computes and installs the signature over every field but the
// signature itself.
func (kp *KeyPackage) Sign(suite ciphersuite.Suite, signaturePrivateKey []byte) error {
	content, err := kp.signedContent()
	if err != nil {
		return err
	}
	sig, err := suite.Sign(signaturePrivateKey, content)
	if err != nil {
		return fmt.Errorf("keypackage: sign: %w", err)
	}
	kp.Signature = sig
	return nil
}

// VerifySignature checks kp.Signature against kp.Credential's signature
// public key.
func (kp KeyPackage) VerifySignature(suite ciphersuite.Suite) error {
	content, err := kp.signedContent()
	if err != nil {
		return err
	}
	if !suite.Verify(kp.Credential.SignaturePublicKey, content, kp.Signature) {
		return ErrSignatureInvalid
	}
	return nil
}

func (kp KeyPackage) Encode(w *wireformat.Writer) error {
	content, err := kp.signedContent()
	if err != nil {
		return err
	}
	w.WriteRaw(content)
	return w.WriteVarBytesU16(kp.Signature)
}

func DecodeKeyPackage(r *wireformat.Reader) (KeyPackage, error) {
	version, err := r.ReadUint8()
	if err != nil {
		return KeyPackage{}, err
	}
	suiteID, err := r.ReadUint16()
	if err != nil {
		return KeyPackage{}, err
	}
	initKey, err := r.ReadVarBytesU16()
	if err != nil {
		return KeyPackage{}, err
	}
	cred, err := DecodeCredential(r)
	if err != nil {
		return KeyPackage{}, err
	}
	exts, err := extensions.DecodeList(r)
	if err != nil {
		return KeyPackage{}, err
	}
	sig, err := r.ReadVarBytesU16()
	if err != nil {
		return KeyPackage{}, err
	}
	return KeyPackage{
		ProtocolVersion: ProtocolVersion(version),
		CiphersuiteID:   ciphersuite.ID(suiteID),
		InitPublicKey:   append([]byte{}, initKey...),
		Credential:      cred,
		Extensions:      exts,
		Signature:       append([]byte{}, sig...),
	}, nil
}

// Bundle pairs a KeyPackage with the private keys its owner holds: the
// init private key and the signature private key.
type Bundle struct {
	KeyPackage         KeyPackage
	InitPrivateKey     []byte
	SignaturePrivateKey []byte
}

// Equal reports whether two bundles carry the same KeyPackage, matched the
// way apply_proposals matches a pending bundle to an Update proposal
// (spec.md §4.2): same encoding of every signed field. The signature itself
// is not compared.
func (b Bundle) Equal(other KeyPackage) (bool, error) {
	a, err := b.KeyPackage.signedContent()
	if err != nil {
		return false, err
	}
	c, err := other.signedContent()
	if err != nil {
		return false, err
	}
	if len(a) != len(c) {
		return false, nil
	}
	for i := range a {
		if a[i] != c[i] {
			return false, nil
		}
	}
	return true, nil
}

// New builds and signs a fresh KeyPackage/Bundle pair with the given
// credential and a freshly generated init keypair.
func New(suite ciphersuite.Suite, cred Credential, caps extensions.Capabilities, lifetime extensions.Lifetime, signaturePrivateKey []byte) (Bundle, error) {
	initPub, initPriv, err := suite.GenerateHPKEKeyPair()
	if err != nil {
		return Bundle{}, fmt.Errorf("keypackage: generate init keypair: %w", err)
	}
	capsExt, err := caps.ToExtension()
	if err != nil {
		return Bundle{}, err
	}
	kp := KeyPackage{
		ProtocolVersion: ProtocolVersionMLS10,
		CiphersuiteID:   suite.ID(),
		InitPublicKey:   initPub,
		Credential:      cred,
		Extensions:      extensions.List{capsExt, lifetime.ToExtension()},
	}
	if err := kp.Sign(suite, signaturePrivateKey); err != nil {
		return Bundle{}, err
	}
	return Bundle{KeyPackage: kp, InitPrivateKey: initPriv, SignaturePrivateKey: signaturePrivateKey}, nil
}
