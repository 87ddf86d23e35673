// Package proposal implements the Add/Update/Remove proposal types and the
// deduplicated ProposalQueue of spec.md §3 and §4.3.
package proposal

import (
	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/treemath"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// Type is the wire tag distinguishing proposal kinds (§6: ProposalType u8).
type Type uint8

const (
	TypeAdd    Type = 1
	TypeUpdate Type = 2
	TypeRemove Type = 3
	// TypeInvalid is the defined fallback for unrecognized tags (spec.md §9).
	TypeInvalid Type = 0
)

func TypeFromUint8(v uint8) Type {
	switch Type(v) {
	case TypeAdd, TypeUpdate, TypeRemove:
		return Type(v)
	default:
		return TypeInvalid
	}
}

// Proposal is a tagged Add/Update/Remove change request.
type Proposal struct {
	Type    Type
	Add     *AddProposal
	Update  *UpdateProposal
	Remove  *RemoveProposal
}

type AddProposal struct {
	KeyPackage keypackage.KeyPackage
}

type UpdateProposal struct {
	KeyPackage keypackage.KeyPackage
}

// RemoveProposal names the leaf to remove (§6: removed:u32).
type RemoveProposal struct {
	Removed treemath.LeafIndex
}

func (p Proposal) Encode(w *wireformat.Writer) error {
	w.WriteUint8(uint8(p.Type))
	switch p.Type {
	case TypeAdd:
		return p.Add.KeyPackage.Encode(w)
	case TypeUpdate:
		return p.Update.KeyPackage.Encode(w)
	case TypeRemove:
		w.WriteUint32(uint32(p.Remove.Removed))
		return nil
	default:
		return ErrInvalidType
	}
}

func DecodeProposal(r *wireformat.Reader) (Proposal, error) {
	tagByte, err := r.ReadUint8()
	if err != nil {
		return Proposal{}, err
	}
	typ := TypeFromUint8(tagByte)
	switch typ {
	case TypeAdd:
		kp, err := keypackage.DecodeKeyPackage(r)
		if err != nil {
			return Proposal{}, err
		}
		return Proposal{Type: TypeAdd, Add: &AddProposal{KeyPackage: kp}}, nil
	case TypeUpdate:
		kp, err := keypackage.DecodeKeyPackage(r)
		if err != nil {
			return Proposal{}, err
		}
		return Proposal{Type: TypeUpdate, Update: &UpdateProposal{KeyPackage: kp}}, nil
	case TypeRemove:
		removed, err := r.ReadUint32()
		if err != nil {
			return Proposal{}, err
		}
		return Proposal{Type: TypeRemove, Remove: &RemoveProposal{Removed: treemath.LeafIndex(removed)}}, nil
	default:
		return Proposal{}, ErrInvalidType
	}
}

// Digest returns the 32-byte ProposalQueue key: the ciphersuite hash of the
// proposal's canonical encoding, truncated to 32 bytes (spec.md §4.3).
func Digest(suite ciphersuite.Suite, p Proposal) ([32]byte, error) {
	w := wireformat.NewWriter()
	if err := p.Encode(w); err != nil {
		return [32]byte{}, err
	}
	h := suite.Hash(w.Bytes())
	var out [32]byte
	n := copy(out[:], h)
	_ = n
	return out, nil
}
