package keyschedule

import (
	"fmt"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
)

// EpochSecrets is the immutable derived state of one epoch (spec.md §3).
type EpochSecrets struct {
	InitSecret       []byte
	SenderDataSecret []byte
	HandshakeSecret  []byte
	ApplicationSecret []byte
	ExporterSecret   []byte
	ConfirmationKey  []byte
	MembershipKey    []byte
	ResumptionSecret []byte
	EpochSecret      []byte
}

// WelcomeSecrets carries the symmetric key/nonce used to encrypt the outer
// Welcome message body (spec.md §4.4 step 2).
type WelcomeSecrets struct {
	Key   []byte
	Nonce []byte
}

// Derived bundles everything one call to Derive produces: the new epoch's
// secrets plus the joiner-facing welcome material a Commit's Welcome needs.
type Derived struct {
	JoinerSecret []byte
	Welcome      WelcomeSecrets
	Epoch        EpochSecrets
}

// Derive runs the epoch key schedule of spec.md §4.4 given the prior epoch's
// init_secret (all-zero HashLen bytes for epoch 0), this epoch's
// commit_secret, and the new GroupContext (epoch already incremented, tree
// hash and confirmed transcript hash already computed).
func Derive(suite ciphersuite.Suite, initSecret, commitSecret []byte, groupContext GroupContext) (Derived, error) {
	joinerSecret := suite.HKDFExtract(initSecret, commitSecret)
	return DeriveFromJoinerSecret(suite, joinerSecret, groupContext)
}

// DeriveFromJoinerSecret runs the epoch key schedule from joiner_secret
// onward (spec.md §4.4 steps 2-4), skipping the HKDF-Extract step. A
// committer reaches joiner_secret via Derive; a joiner processing a
// Welcome already holds joiner_secret directly (it was HPKE-sealed to
// them in GroupSecrets) and has no init_secret/commit_secret pair to
// extract it from, so it calls this directly.
func DeriveFromJoinerSecret(suite ciphersuite.Suite, joinerSecret []byte, groupContext GroupContext) (Derived, error) {
	welcomeSecret := suite.HKDFExpand(joinerSecret, []byte("mls 1.0 welcome"), suite.HashLen())
	welcomeKey := suite.HKDFExpand(welcomeSecret, []byte("key"), suite.AeadKeyLen())
	welcomeNonce := suite.HKDFExpand(welcomeSecret, []byte("nonce"), suite.AeadNonceLen())

	contextBytes, err := groupContext.Bytes()
	if err != nil {
		return Derived{}, fmt.Errorf("keyschedule: encode group context: %w", err)
	}
	epochSecret := suite.HKDFExpandLabel(joinerSecret, "epoch", contextBytes, suite.HashLen())

	derive := func(label string) []byte {
		return suite.HKDFExpandLabel(epochSecret, label, nil, suite.HashLen())
	}

	epoch := EpochSecrets{
		InitSecret:        derive("init"),
		SenderDataSecret:  derive("sender data"),
		HandshakeSecret:   derive("handshake"),
		ApplicationSecret: derive("application"),
		ExporterSecret:    derive("exporter"),
		ConfirmationKey:   derive("confirm"),
		MembershipKey:     derive("membership"),
		ResumptionSecret:  derive("resumption"),
		EpochSecret:       epochSecret,
	}

	return Derived{
		JoinerSecret: joinerSecret,
		Welcome:      WelcomeSecrets{Key: welcomeKey, Nonce: welcomeNonce},
		Epoch:        epoch,
	}, nil
}

// Exporter implements mls_exporter(label, length) (spec.md §4.4 step 5):
// a further-labeled, context-bound derivation from the epoch's
// exporter_secret, for use by application layers above the group.
func Exporter(suite ciphersuite.Suite, exporterSecret []byte, label string, context []byte, length int) []byte {
	inner := suite.HKDFExpandLabel(exporterSecret, label, nil, suite.HashLen())
	return suite.HKDFExpandLabel(inner, "exporter", context, length)
}

// ZeroInitSecret returns the all-zero init_secret epoch 0 starts from.
func ZeroInitSecret(suite ciphersuite.Suite) []byte {
	return make([]byte, suite.HashLen())
}
