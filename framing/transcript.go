package framing

import (
	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// ConfirmedTranscriptHash computes confirmed_transcript_hash =
// hash(interim_transcript_hash || encode(commit_content)), spec.md §4.6
// step 6. commitContent is the encoded Commit carried in the Plaintext's
// Content field.
func ConfirmedTranscriptHash(suite ciphersuite.Suite, interimTranscriptHash, commitContent []byte) []byte {
	buf := append(append([]byte{}, interimTranscriptHash...), commitContent...)
	return suite.Hash(buf)
}

// InterimTranscriptHash advances the transcript past a just-confirmed
// Commit: hash(confirmed_transcript_hash || encode(signature, confirmation_tag)).
// Every subsequent Commit's confirmed_transcript_hash is computed against
// this value, chaining every epoch's Commit into one running hash.
func InterimTranscriptHash(suite ciphersuite.Suite, confirmedTranscriptHash, signature, confirmationTag []byte) ([]byte, error) {
	w := wireformat.NewWriter()
	w.WriteRaw(confirmedTranscriptHash)
	if err := w.WriteVarBytesU16(signature); err != nil {
		return nil, err
	}
	if err := w.WriteVarBytesU8(confirmationTag); err != nil {
		return nil, err
	}
	return suite.Hash(w.Bytes()), nil
}
