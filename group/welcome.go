package group

import (
	"fmt"
	"sort"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/keyschedule"
	"github.com/kindlyrobotics/maelstrom/node"
	"github.com/kindlyrobotics/maelstrom/wireformat"
)

// GroupSecrets is the per-joiner payload HPKE-sealed to a new member's
// init key: the joiner_secret the new member needs to derive EpochSecrets,
// plus the decrypted path_secret at the joiner's position when the
// committer's DirectPath reaches far enough to cover it (nil for a
// brand-new leaf, which has nothing merged into it yet). CreateCommit
// always leaves PathSecret nil.
type GroupSecrets struct {
	JoinerSecret []byte
	PathSecret   []byte
}

func (gs GroupSecrets) Encode() ([]byte, error) {
	w := wireformat.NewWriter()
	if err := w.WriteVarBytesU8(gs.JoinerSecret); err != nil {
		return nil, err
	}
	w.WriteOptional(gs.PathSecret != nil, func(w *wireformat.Writer) {
		_ = w.WriteVarBytesU8(gs.PathSecret)
	})
	return w.Bytes(), nil
}

func decodeGroupSecrets(b []byte) (GroupSecrets, error) {
	r := wireformat.NewReader(b)
	joiner, err := r.ReadVarBytesU8()
	if err != nil {
		return GroupSecrets{}, err
	}
	var gs GroupSecrets
	gs.JoinerSecret = append([]byte{}, joiner...)
	if _, err := r.ReadOptional(func(r *wireformat.Reader) error {
		v, err := r.ReadVarBytesU8()
		if err != nil {
			return err
		}
		gs.PathSecret = append([]byte{}, v...)
		return nil
	}); err != nil {
		return GroupSecrets{}, err
	}
	if err := r.RequireAtEnd(); err != nil {
		return GroupSecrets{}, err
	}
	return gs, nil
}

// GroupInfo is the information a joiner needs to rebuild group state: the
// finalized GroupContext, the Commit's confirmation tag, and the full node
// array (spec.md §6 RatchetTreeExtension).
type GroupInfo struct {
	GroupContext    keyschedule.GroupContext
	ConfirmationTag []byte
	Nodes           []node.Node
}

func (gi GroupInfo) Encode() ([]byte, error) {
	w := wireformat.NewWriter()
	if err := gi.GroupContext.Encode(w); err != nil {
		return nil, err
	}
	if err := w.WriteVarBytesU8(gi.ConfirmationTag); err != nil {
		return nil, err
	}
	w.WriteUint32(uint32(len(gi.Nodes)))
	for _, n := range gi.Nodes {
		if err := n.Encode(w); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func decodeGroupInfo(b []byte) (GroupInfo, error) {
	r := wireformat.NewReader(b)
	gc, err := keyschedule.DecodeGroupContext(r)
	if err != nil {
		return GroupInfo{}, err
	}
	tag, err := r.ReadVarBytesU8()
	if err != nil {
		return GroupInfo{}, err
	}
	count, err := r.ReadUint32()
	if err != nil {
		return GroupInfo{}, err
	}
	nodes := make([]node.Node, count)
	for i := range nodes {
		n, err := node.DecodeNode(r)
		if err != nil {
			return GroupInfo{}, err
		}
		nodes[i] = n
	}
	if err := r.RequireAtEnd(); err != nil {
		return GroupInfo{}, err
	}
	return GroupInfo{GroupContext: gc, ConfirmationTag: append([]byte{}, tag...), Nodes: nodes}, nil
}

// WelcomeEntry addresses one joiner: their KeyPackage's identifying hash
// plus their GroupSecrets, HPKE-sealed to their init key.
type WelcomeEntry struct {
	KeyPackageHash      []byte
	EncryptedGroupSecrets ciphersuite.HPKECiphertext
}

// Welcome is the message a committer sends to every newly invited member
// (spec.md §4.6 step 9): one GroupSecrets per joiner, plus a single
// GroupInfo body encrypted under the epoch's welcome_key/nonce.
type Welcome struct {
	CipherSuite        ciphersuite.ID
	Secrets            []WelcomeEntry
	EncryptedGroupInfo []byte
}

// keyPackageHash identifies a joiner's KeyPackage for Welcome addressing
// (spec.md §4.6: "locate own KeyPackage by hash in welcome.secrets").
func keyPackageHash(suite ciphersuite.Suite, kp keypackage.KeyPackage) ([]byte, error) {
	w := wireformat.NewWriter()
	if err := kp.Encode(w); err != nil {
		return nil, err
	}
	return suite.Hash(w.Bytes()), nil
}

// BuildWelcome seals groupInfo under welcome.Key/Nonce and one GroupSecrets
// per invited member, HPKE-sealed to each member's KeyPackage init key.
func BuildWelcome(suite ciphersuite.Suite, welcomeKey, welcomeNonce []byte, groupInfo GroupInfo, invited map[string]keypackage.KeyPackage, joinerSecret []byte, pathSecrets map[string][]byte) (*Welcome, error) {
	infoBytes, err := groupInfo.Encode()
	if err != nil {
		return nil, err
	}
	encryptedInfo, err := suite.AeadSeal(welcomeKey, welcomeNonce, nil, infoBytes)
	if err != nil {
		return nil, fmt.Errorf("group: seal group info: %w", err)
	}

	ids := make([]string, 0, len(invited))
	for id := range invited {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var entries []WelcomeEntry
	for _, id := range ids {
		kp := invited[id]
		gs := GroupSecrets{JoinerSecret: joinerSecret, PathSecret: pathSecrets[id]}
		gsBytes, err := gs.Encode()
		if err != nil {
			return nil, err
		}
		ct, err := suite.HPKESeal(kp.InitPublicKey, groupInfo.GroupContext.GroupID, nil, gsBytes)
		if err != nil {
			return nil, fmt.Errorf("group: seal group secrets: %w", err)
		}
		h, err := keyPackageHash(suite, kp)
		if err != nil {
			return nil, err
		}
		entries = append(entries, WelcomeEntry{KeyPackageHash: h, EncryptedGroupSecrets: *ct})
	}
	return &Welcome{CipherSuite: suite.ID(), Secrets: entries, EncryptedGroupInfo: encryptedInfo}, nil
}
