// Package framing implements the MLSPlaintext/MLSCiphertext message
// envelopes and their signature/confirmation/membership tags (spec.md §4.7).
package framing

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/treemath"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// ContentType distinguishes what a Plaintext's Content holds.
type ContentType uint8

const (
	ContentTypeApplication ContentType = 1
	ContentTypeProposal    ContentType = 2
	ContentTypeCommit      ContentType = 3
)

// Plaintext is the handshake/application envelope of spec.md §4.7:
// (group_id, epoch, sender, authenticated_data, content, signature,
// [confirmation_tag], [membership_tag]).
type Plaintext struct {
	GroupID           []byte
	Epoch             uint64
	Sender            treemath.LeafIndex
	AuthenticatedData []byte
	ContentType       ContentType
	Content           []byte
	Signature         []byte
	ConfirmationTag   []byte
	MembershipTag     []byte
}

// signedContent returns groupContext followed by the canonical encoding of
// (sender, aad, content_type, content) — exactly what the signature of
// spec.md §4.7 covers.
func (p Plaintext) signedContent(groupContext []byte) ([]byte, error) {
	w := wireformat.NewWriter()
	w.WriteRaw(groupContext)
	w.WriteUint32(uint32(p.Sender))
	if err := w.WriteVarBytesU32(p.AuthenticatedData); err != nil {
		return nil, err
	}
	w.WriteUint8(uint8(p.ContentType))
	if err := w.WriteVarBytesU32(p.Content); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Sign computes and installs the signature over (groupContext, sender, aad,
// content).
func (p *Plaintext) Sign(suite ciphersuite.Suite, groupContext, signaturePrivateKey []byte) error {
	content, err := p.signedContent(groupContext)
	if err != nil {
		return err
	}
	sig, err := suite.Sign(signaturePrivateKey, content)
	if err != nil {
		return err
	}
	p.Signature = sig
	return nil
}

// VerifySignature checks p.Signature against signaturePublicKey.
func (p Plaintext) VerifySignature(suite ciphersuite.Suite, groupContext, signaturePublicKey []byte) error {
	content, err := p.signedContent(groupContext)
	if err != nil {
		return err
	}
	if !suite.Verify(signaturePublicKey, content, p.Signature) {
		return ErrSignatureInvalid
	}
	return nil
}

// tag computes HMAC-SHA256(key, message) — confirmation and membership
// tags are both plain HMACs over ciphersuite-independent transcript
// material, matching how the original source treats them (a MAC, not an
// AEAD), so this does not go through the ciphersuite's AEAD contract.
func tag(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// SetConfirmationTag computes and installs confirmation_tag =
// HMAC(confirmation_key, confirmed_transcript_hash) (spec.md §4.6 step 6).
func (p *Plaintext) SetConfirmationTag(confirmationKey, confirmedTranscriptHash []byte) {
	p.ConfirmationTag = tag(confirmationKey, confirmedTranscriptHash)
}

// VerifyConfirmationTag recomputes and compares the confirmation tag.
func (p Plaintext) VerifyConfirmationTag(confirmationKey, confirmedTranscriptHash []byte) error {
	want := tag(confirmationKey, confirmedTranscriptHash)
	if !hmac.Equal(p.ConfirmationTag, want) {
		return ErrConfirmationTagInvalid
	}
	return nil
}

// SetMembershipTag computes and installs membership_tag over the signed
// content plus signature, binding a Plaintext to a specific member's
// membership_key.
func (p *Plaintext) SetMembershipTag(groupContext, membershipKey []byte) error {
	content, err := p.signedContent(groupContext)
	if err != nil {
		return err
	}
	p.MembershipTag = tag(membershipKey, append(content, p.Signature...))
	return nil
}

// VerifyMembershipTag recomputes and compares the membership tag.
func (p Plaintext) VerifyMembershipTag(groupContext, membershipKey []byte) error {
	content, err := p.signedContent(groupContext)
	if err != nil {
		return err
	}
	want := tag(membershipKey, append(content, p.Signature...))
	if !hmac.Equal(p.MembershipTag, want) {
		return ErrMembershipTagInvalid
	}
	return nil
}

func (p Plaintext) Encode(w *wireformat.Writer) error {
	if err := w.WriteVarBytesU8(p.GroupID); err != nil {
		return err
	}
	w.WriteUint64(p.Epoch)
	w.WriteUint32(uint32(p.Sender))
	if err := w.WriteVarBytesU32(p.AuthenticatedData); err != nil {
		return err
	}
	w.WriteUint8(uint8(p.ContentType))
	if err := w.WriteVarBytesU32(p.Content); err != nil {
		return err
	}
	if err := w.WriteVarBytesU16(p.Signature); err != nil {
		return err
	}
	w.WriteOptional(p.ConfirmationTag != nil, func(w *wireformat.Writer) {
		_ = w.WriteVarBytesU8(p.ConfirmationTag)
	})
	w.WriteOptional(p.MembershipTag != nil, func(w *wireformat.Writer) {
		_ = w.WriteVarBytesU8(p.MembershipTag)
	})
	return nil
}

func DecodePlaintext(r *wireformat.Reader) (Plaintext, error) {
	groupID, err := r.ReadVarBytesU8()
	if err != nil {
		return Plaintext{}, err
	}
	epoch, err := r.ReadUint64()
	if err != nil {
		return Plaintext{}, err
	}
	sender, err := r.ReadUint32()
	if err != nil {
		return Plaintext{}, err
	}
	aad, err := r.ReadVarBytesU32()
	if err != nil {
		return Plaintext{}, err
	}
	contentTypeByte, err := r.ReadUint8()
	if err != nil {
		return Plaintext{}, err
	}
	content, err := r.ReadVarBytesU32()
	if err != nil {
		return Plaintext{}, err
	}
	sig, err := r.ReadVarBytesU16()
	if err != nil {
		return Plaintext{}, err
	}
	p := Plaintext{
		GroupID:           append([]byte{}, groupID...),
		Epoch:             epoch,
		Sender:            treemath.LeafIndex(sender),
		AuthenticatedData: append([]byte{}, aad...),
		ContentType:       ContentType(contentTypeByte),
		Content:           append([]byte{}, content...),
		Signature:         append([]byte{}, sig...),
	}
	if _, err := r.ReadOptional(func(r *wireformat.Reader) error {
		v, err := r.ReadVarBytesU8()
		if err != nil {
			return err
		}
		p.ConfirmationTag = append([]byte{}, v...)
		return nil
	}); err != nil {
		return Plaintext{}, err
	}
	if _, err := r.ReadOptional(func(r *wireformat.Reader) error {
		v, err := r.ReadVarBytesU8()
		if err != nil {
			return err
		}
		p.MembershipTag = append([]byte{}, v...)
		return nil
	}); err != nil {
		return Plaintext{}, err
	}
	if err := r.RequireAtEnd(); err != nil {
		return Plaintext{}, err
	}
	return p, nil
}
