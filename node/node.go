// Package node implements the Leaf/Parent tagged node representation that
// the ratchet tree's array is built from, including the blanking,
// parent-hash, and tree-hash input encodings of spec.md §3 and §4.2.
package node

import (
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/treemath"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// Tag distinguishes a Leaf slot from a Parent slot on the wire.
type Tag uint8

const (
	TagLeaf   Tag = 0
	TagParent Tag = 1
)

// ParentNode is a non-blank parent's payload: its HPKE public key, the
// parent-hash binding to its child, and the set of leaves merged into it
// since it was last refreshed (spec.md §3, invariant I5).
type ParentNode struct {
	PublicKey      []byte
	ParentHash     []byte
	UnmergedLeaves []treemath.LeafIndex
}

func (p ParentNode) Encode(w *wireformat.Writer) error {
	if err := w.WriteVarBytesU16(p.PublicKey); err != nil {
		return err
	}
	if err := w.WriteVarBytesU8(p.ParentHash); err != nil {
		return err
	}
	w.WriteUint32(uint32(len(p.UnmergedLeaves)))
	for _, l := range p.UnmergedLeaves {
		w.WriteUint32(uint32(l))
	}
	return nil
}

func DecodeParentNode(r *wireformat.Reader) (ParentNode, error) {
	pub, err := r.ReadVarBytesU16()
	if err != nil {
		return ParentNode{}, err
	}
	ph, err := r.ReadVarBytesU8()
	if err != nil {
		return ParentNode{}, err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return ParentNode{}, err
	}
	leaves := make([]treemath.LeafIndex, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := r.ReadUint32()
		if err != nil {
			return ParentNode{}, err
		}
		leaves = append(leaves, treemath.LeafIndex(v))
	}
	return ParentNode{
		PublicKey:      append([]byte{}, pub...),
		ParentHash:     append([]byte{}, ph...),
		UnmergedLeaves: leaves,
	}, nil
}

// AddUnmergedLeaf appends l to the unmerged set if not already present,
// preserving append order (spec.md §4.2 apply_proposals, Add case).
func (p *ParentNode) AddUnmergedLeaf(l treemath.LeafIndex) {
	for _, existing := range p.UnmergedLeaves {
		if existing == l {
			return
		}
	}
	p.UnmergedLeaves = append(p.UnmergedLeaves, l)
}

// Node is a tagged Leaf or Parent slot. A nil KeyPackage/ParentNode means
// the slot is blank.
type Node struct {
	Tag        Tag
	KeyPackage *keypackage.KeyPackage
	Parent     *ParentNode
}

// Leaf constructs a non-blank leaf node.
func Leaf(kp keypackage.KeyPackage) Node {
	return Node{Tag: TagLeaf, KeyPackage: &kp}
}

// BlankLeaf constructs a blank leaf slot.
func BlankLeaf() Node {
	return Node{Tag: TagLeaf}
}

// ParentOf constructs a non-blank parent node.
func ParentOf(p ParentNode) Node {
	return Node{Tag: TagParent, Parent: &p}
}

// BlankParent constructs a blank parent slot.
func BlankParent() Node {
	return Node{Tag: TagParent}
}

// IsBlank reports whether the slot carries no key material.
func (n Node) IsBlank() bool {
	if n.Tag == TagLeaf {
		return n.KeyPackage == nil
	}
	return n.Parent == nil
}

func (n Node) Encode(w *wireformat.Writer) error {
	w.WriteUint8(uint8(n.Tag))
	if n.Tag == TagLeaf {
		w.WriteOptional(n.KeyPackage != nil, func(w *wireformat.Writer) {
			_ = n.KeyPackage.Encode(w)
		})
		return nil
	}
	var encErr error
	w.WriteOptional(n.Parent != nil, func(w *wireformat.Writer) {
		encErr = n.Parent.Encode(w)
	})
	return encErr
}

func DecodeNode(r *wireformat.Reader) (Node, error) {
	tagByte, err := r.ReadUint8()
	if err != nil {
		return Node{}, err
	}
	tag := Tag(tagByte)
	if tag != TagLeaf && tag != TagParent {
		return Node{}, ErrInvalidTag
	}
	if tag == TagLeaf {
		var kp *keypackage.KeyPackage
		_, err := r.ReadOptional(func(r *wireformat.Reader) error {
			v, err := keypackage.DecodeKeyPackage(r)
			if err != nil {
				return err
			}
			kp = &v
			return nil
		})
		if err != nil {
			return Node{}, err
		}
		return Node{Tag: TagLeaf, KeyPackage: kp}, nil
	}
	var p *ParentNode
	_, err = r.ReadOptional(func(r *wireformat.Reader) error {
		v, err := DecodeParentNode(r)
		if err != nil {
			return err
		}
		p = &v
		return nil
	})
	if err != nil {
		return Node{}, err
	}
	return Node{Tag: TagParent, Parent: p}, nil
}
