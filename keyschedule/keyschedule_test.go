package keyschedule

import (
	"bytes"
	"testing"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

func TestGroupContextRoundTrip(t *testing.T) {
	gc := GroupContext{
		GroupID:                 []byte{0x00},
		Epoch:                   1,
		TreeHash:                bytes.Repeat([]byte{0xAB}, 32),
		ConfirmedTranscriptHash: bytes.Repeat([]byte{0xCD}, 32),
	}
	encoded, err := gc.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	got, err := DecodeGroupContext(wireformat.NewReader(encoded))
	if err != nil {
		t.Fatalf("DecodeGroupContext: %v", err)
	}
	if !bytes.Equal(got.GroupID, gc.GroupID) || got.Epoch != gc.Epoch ||
		!bytes.Equal(got.TreeHash, gc.TreeHash) || !bytes.Equal(got.ConfirmedTranscriptHash, gc.ConfirmedTranscriptHash) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, gc)
	}
}

func TestDeriveIsDeterministicAndDistinctPerSecret(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	gc := GroupContext{GroupID: []byte{0x00}, Epoch: 1, TreeHash: []byte("th"), ConfirmedTranscriptHash: []byte("cth")}
	commitSecret := []byte("commit-secret-bytes-32-long-ok!!")

	d1, err := Derive(suite, ZeroInitSecret(suite), commitSecret, gc)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	d2, err := Derive(suite, ZeroInitSecret(suite), commitSecret, gc)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !bytes.Equal(d1.Epoch.EpochSecret, d2.Epoch.EpochSecret) {
		t.Fatalf("expected deterministic epoch_secret for identical inputs")
	}
	if !bytes.Equal(d1.Welcome.Key, d2.Welcome.Key) || !bytes.Equal(d1.Welcome.Nonce, d2.Welcome.Nonce) {
		t.Fatalf("expected deterministic welcome key/nonce for identical inputs")
	}

	secrets := [][]byte{
		d1.Epoch.InitSecret, d1.Epoch.SenderDataSecret, d1.Epoch.HandshakeSecret,
		d1.Epoch.ApplicationSecret, d1.Epoch.ExporterSecret, d1.Epoch.ConfirmationKey,
		d1.Epoch.MembershipKey, d1.Epoch.ResumptionSecret,
	}
	for i := range secrets {
		for j := i + 1; j < len(secrets); j++ {
			if bytes.Equal(secrets[i], secrets[j]) {
				t.Fatalf("expected labeled secrets %d and %d to differ", i, j)
			}
		}
	}
}

func TestDeriveChangesWithGroupContext(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	commitSecret := []byte("commit-secret-bytes-32-long-ok!!")
	gc1 := GroupContext{GroupID: []byte{0x00}, Epoch: 1, TreeHash: []byte("th-1"), ConfirmedTranscriptHash: []byte("cth")}
	gc2 := GroupContext{GroupID: []byte{0x00}, Epoch: 1, TreeHash: []byte("th-2"), ConfirmedTranscriptHash: []byte("cth")}

	d1, err := Derive(suite, ZeroInitSecret(suite), commitSecret, gc1)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	d2, err := Derive(suite, ZeroInitSecret(suite), commitSecret, gc2)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if bytes.Equal(d1.Epoch.EpochSecret, d2.Epoch.EpochSecret) {
		t.Fatalf("expected epoch_secret to depend on tree_hash via group context")
	}
}

func TestExporterIsLabelAndContextSensitive(t *testing.T) {
	suite := ciphersuite.NewX25519Suite()
	exporterSecret := []byte("exporter-secret-bytes-here-32!!")
	a := Exporter(suite, exporterSecret, "app-a", []byte("ctx"), 32)
	b := Exporter(suite, exporterSecret, "app-b", []byte("ctx"), 32)
	c := Exporter(suite, exporterSecret, "app-a", []byte("different-ctx"), 32)
	if bytes.Equal(a, b) {
		t.Fatalf("expected different labels to produce different exporter output")
	}
	if bytes.Equal(a, c) {
		t.Fatalf("expected different contexts to produce different exporter output")
	}
	if len(a) != 32 {
		t.Fatalf("expected requested length 32, got %d", len(a))
	}
}
