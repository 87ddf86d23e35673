// Package keyschedule derives per-epoch secrets from a commit_secret and the
// prior epoch's init_secret, and exposes the mls_exporter interface
// (spec.md §4.4).
package keyschedule

import "github.com/kindlyrobotics/maelstrom/wireformat"

// GroupContext is the signed, authenticated context every handshake message
// binds to: (group_id, epoch, tree_hash, confirmed_transcript_hash),
// spec.md §3.
type GroupContext struct {
	GroupID                  []byte
	Epoch                    uint64
	TreeHash                 []byte
	ConfirmedTranscriptHash  []byte
}

func (gc GroupContext) Encode(w *wireformat.Writer) error {
	if err := w.WriteVarBytesU8(gc.GroupID); err != nil {
		return err
	}
	w.WriteUint64(gc.Epoch)
	if err := w.WriteVarBytesU8(gc.TreeHash); err != nil {
		return err
	}
	return w.WriteVarBytesU8(gc.ConfirmedTranscriptHash)
}

func DecodeGroupContext(r *wireformat.Reader) (GroupContext, error) {
	groupID, err := r.ReadVarBytesU8()
	if err != nil {
		return GroupContext{}, err
	}
	epoch, err := r.ReadUint64()
	if err != nil {
		return GroupContext{}, err
	}
	treeHash, err := r.ReadVarBytesU8()
	if err != nil {
		return GroupContext{}, err
	}
	confirmedHash, err := r.ReadVarBytesU8()
	if err != nil {
		return GroupContext{}, err
	}
	return GroupContext{
		GroupID:                 append([]byte{}, groupID...),
		Epoch:                   epoch,
		TreeHash:                append([]byte{}, treeHash...),
		ConfirmedTranscriptHash: append([]byte{}, confirmedHash...),
	}, nil
}

// Bytes returns the canonical encoding used as HKDF-Expand-Label context
// and as the context a Commit's signature and membership tag cover.
func (gc GroupContext) Bytes() ([]byte, error) {
	w := wireformat.NewWriter()
	if err := gc.Encode(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
