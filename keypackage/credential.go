package keypackage

import "github.com/kindlyrobotics/maelstrom/wireformat"

// Credential binds a member's identity to the signature key that signs
// their KeyPackage. spec.md leaves credential-authority verification out of
// scope (§1 Non-goals); this core only carries and encodes the credential,
// it does not validate who issued it.
type Credential struct {
	Identity           []byte
	SignaturePublicKey []byte
}

func (c Credential) Encode(w *wireformat.Writer) error {
	if err := w.WriteVarBytesU16(c.Identity); err != nil {
		return err
	}
	return w.WriteVarBytesU16(c.SignaturePublicKey)
}

func DecodeCredential(r *wireformat.Reader) (Credential, error) {
	identity, err := r.ReadVarBytesU16()
	if err != nil {
		return Credential{}, err
	}
	sigKey, err := r.ReadVarBytesU16()
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		Identity:           append([]byte{}, identity...),
		SignaturePublicKey: append([]byte{}, sigKey...),
	}, nil
}
