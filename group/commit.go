// Package group implements GroupState: the epoch-bearing orchestrator that
// ties RatchetTree, ProposalQueue, KeySchedule, the application ratchet,
// and Framing together into create_commit/apply_commit, Welcome, and
// message encrypt/decrypt (spec.md §4.6).
package group

import (
	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/proposal"
	"github.com/kindlyrobotics/maelstrom/ratchettree"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// Commit is the handshake content a Commit Plaintext carries: the list of
// proposals being applied, and an optional path update (spec.md §4.6 step 5).
// LeafKeyPackage is the committer's refreshed KeyPackage, carried alongside
// Path since DirectPath itself only refreshes ancestor nodes, not the
// leaf — ApplyDirectPath needs it to install the sender's new leaf.
type Commit struct {
	ProposalIDs    []proposal.ID
	Path           *ratchettree.DirectPath
	LeafKeyPackage *keypackage.KeyPackage
}

func (c Commit) Encode() ([]byte, error) {
	w := wireformat.NewWriter()
	w.WriteUint32(uint32(len(c.ProposalIDs)))
	for _, id := range c.ProposalIDs {
		w.WriteRaw(id[:])
	}
	w.WriteOptional(c.Path != nil, func(w *wireformat.Writer) {
		_ = encodeDirectPath(w, *c.Path)
		_ = c.LeafKeyPackage.Encode(w)
	})
	return w.Bytes(), nil
}

func DecodeCommit(b []byte) (Commit, error) {
	r := wireformat.NewReader(b)
	n, err := r.ReadUint32()
	if err != nil {
		return Commit{}, err
	}
	ids := make([]proposal.ID, n)
	for i := range ids {
		raw, err := r.ReadRaw(32)
		if err != nil {
			return Commit{}, err
		}
		copy(ids[i][:], raw)
	}
	var path *ratchettree.DirectPath
	var leafKP *keypackage.KeyPackage
	_, err = r.ReadOptional(func(r *wireformat.Reader) error {
		p, err := decodeDirectPath(r)
		if err != nil {
			return err
		}
		kp, err := keypackage.DecodeKeyPackage(r)
		if err != nil {
			return err
		}
		path = &p
		leafKP = &kp
		return nil
	})
	if err != nil {
		return Commit{}, err
	}
	if err := r.RequireAtEnd(); err != nil {
		return Commit{}, err
	}
	return Commit{ProposalIDs: ids, Path: path, LeafKeyPackage: leafKP}, nil
}

func encodeDirectPath(w *wireformat.Writer, path ratchettree.DirectPath) error {
	w.WriteUint32(uint32(len(path.Nodes)))
	for _, n := range path.Nodes {
		if err := w.WriteVarBytesU16(n.PublicKey); err != nil {
			return err
		}
		w.WriteUint32(uint32(len(n.EncryptedPathSecret)))
		for _, ct := range n.EncryptedPathSecret {
			if err := w.WriteVarBytesU16(ct.KEMOutput); err != nil {
				return err
			}
			if err := w.WriteVarBytesU32(ct.Ciphertext); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeDirectPath(r *wireformat.Reader) (ratchettree.DirectPath, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return ratchettree.DirectPath{}, err
	}
	nodes := make([]ratchettree.DirectPathNode, n)
	for i := range nodes {
		pub, err := r.ReadVarBytesU16()
		if err != nil {
			return ratchettree.DirectPath{}, err
		}
		count, err := r.ReadUint32()
		if err != nil {
			return ratchettree.DirectPath{}, err
		}
		cts := make([]ciphersuite.HPKECiphertext, count)
		for j := range cts {
			kem, err := r.ReadVarBytesU16()
			if err != nil {
				return ratchettree.DirectPath{}, err
			}
			ct, err := r.ReadVarBytesU32()
			if err != nil {
				return ratchettree.DirectPath{}, err
			}
			cts[j] = ciphersuite.HPKECiphertext{KEMOutput: append([]byte{}, kem...), Ciphertext: append([]byte{}, ct...)}
		}
		nodes[i] = ratchettree.DirectPathNode{PublicKey: append([]byte{}, pub...), EncryptedPathSecret: cts}
	}
	return ratchettree.DirectPath{Nodes: nodes}, nil
}
