package framing

import (
	"fmt"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/treemath"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// Ciphertext is the ciphertext envelope of spec.md §4.7: sender identity is
// hidden behind sender-data encryption keyed off sender_data_secret; the
// body is sealed under the per-sender application ratchet's (key, nonce)
// for the sending generation.
type Ciphertext struct {
	GroupID             []byte
	Epoch               uint64
	ContentType         ContentType
	AuthenticatedData   []byte
	EncryptedSenderData []byte
	Ciphertext          []byte
}

type senderData struct {
	Sender     treemath.LeafIndex
	Generation uint32
}

func (sd senderData) encode() []byte {
	w := wireformat.NewWriter()
	w.WriteUint32(uint32(sd.Sender))
	w.WriteUint32(sd.Generation)
	return w.Bytes()
}

func decodeSenderData(b []byte) (senderData, error) {
	r := wireformat.NewReader(b)
	sender, err := r.ReadUint32()
	if err != nil {
		return senderData{}, err
	}
	gen, err := r.ReadUint32()
	if err != nil {
		return senderData{}, err
	}
	return senderData{Sender: treemath.LeafIndex(sender), Generation: gen}, nil
}

// sample returns the leading bytes of ciphertext used as sender-data-key
// derivation context, per spec.md §4.7 ("sender-data encryption using
// sender_data_secret"); a ciphertext shorter than HashLen bytes is
// zero-padded to HashLen.
func sample(suite ciphersuite.Suite, ciphertext []byte) []byte {
	n := suite.HashLen()
	if len(ciphertext) >= n {
		return ciphertext[:n]
	}
	out := make([]byte, n)
	copy(out, ciphertext)
	return out
}

func senderDataKeyNonce(suite ciphersuite.Suite, senderDataSecret, ciphertextSample []byte) (key, nonce []byte) {
	key = suite.HKDFExpandLabel(senderDataSecret, "sd key", ciphertextSample, suite.AeadKeyLen())
	nonce = suite.HKDFExpandLabel(senderDataSecret, "sd nonce", ciphertextSample, suite.AeadNonceLen())
	return key, nonce
}

// Seal encrypts plaintextBody under (appKey, appNonce) — the per-sender
// application ratchet secret for this (leaf, generation) — and hides
// (sender, generation) behind sender_data_secret.
func Seal(suite ciphersuite.Suite, groupID []byte, epoch uint64, contentType ContentType, sender treemath.LeafIndex, generation uint32, authenticatedData, appKey, appNonce, senderDataSecret, plaintextBody []byte) (*Ciphertext, error) {
	body, err := suite.AeadSeal(appKey, appNonce, authenticatedData, plaintextBody)
	if err != nil {
		return nil, fmt.Errorf("framing: seal body: %w", err)
	}
	sdKey, sdNonce := senderDataKeyNonce(suite, senderDataSecret, sample(suite, body))
	sd := senderData{Sender: sender, Generation: generation}
	encryptedSD, err := suite.AeadSeal(sdKey, sdNonce, nil, sd.encode())
	if err != nil {
		return nil, fmt.Errorf("framing: seal sender data: %w", err)
	}
	return &Ciphertext{
		GroupID:             groupID,
		Epoch:               epoch,
		ContentType:         contentType,
		AuthenticatedData:   authenticatedData,
		EncryptedSenderData: encryptedSD,
		Ciphertext:          body,
	}, nil
}

// OpenSenderData recovers (sender, generation) from c, without yet knowing
// the per-sender application key — the receiver needs this to look up the
// right SenderRatchet before it can open the body.
func OpenSenderData(suite ciphersuite.Suite, c *Ciphertext, senderDataSecret []byte) (treemath.LeafIndex, uint32, error) {
	sdKey, sdNonce := senderDataKeyNonce(suite, senderDataSecret, sample(suite, c.Ciphertext))
	plain, err := suite.AeadOpen(sdKey, sdNonce, nil, c.EncryptedSenderData)
	if err != nil {
		return 0, 0, fmt.Errorf("framing: open sender data: %w", err)
	}
	sd, err := decodeSenderData(plain)
	if err != nil {
		return 0, 0, err
	}
	return sd.Sender, sd.Generation, nil
}

// OpenBody decrypts c's body under the per-sender application key/nonce
// the caller already derived from the correct SenderRatchet generation.
func OpenBody(suite ciphersuite.Suite, c *Ciphertext, appKey, appNonce []byte) ([]byte, error) {
	pt, err := suite.AeadOpen(appKey, appNonce, c.AuthenticatedData, c.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("framing: open body: %w", err)
	}
	return pt, nil
}
