package group

import (
	"fmt"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/framing"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/keyschedule"
	"github.com/kindlyrobotics/maelstrom/proposal"
	"github.com/kindlyrobotics/maelstrom/ratchet"
	"github.com/kindlyrobotics/maelstrom/ratchettree"
	"github.com/kindlyrobotics/maelstrom/treemath"
)

// GroupState is the epoch-bearing object spec.md §3/§4.6 describes:
// current tree, transcript hashes, epoch secrets, and the per-epoch
// application ratchet collection. It is single-owner, single-threaded per
// group (spec.md §5) — callers must not mutate one GroupState from two
// goroutines concurrently.
type GroupState struct {
	Suite ciphersuite.Suite
	Tree  *ratchettree.Tree

	GroupID                 []byte
	Epoch                   uint64
	InterimTranscriptHash   []byte
	ConfirmedTranscriptHash []byte

	Secrets     keyschedule.EpochSecrets
	Application *ratchet.ASTree

	SelfRemoved bool
}

// New creates the single-member founder GroupState (spec.md §3, §4.6).
func New(suite ciphersuite.Suite, groupID []byte, founder keypackage.Bundle) *GroupState {
	tree := ratchettree.NewFounder(suite, founder)
	g := &GroupState{
		Suite:                   suite,
		Tree:                    tree,
		GroupID:                 groupID,
		Epoch:                   0,
		InterimTranscriptHash:   make([]byte, suite.HashLen()),
		ConfirmedTranscriptHash: make([]byte, suite.HashLen()),
	}
	zeroCommit := make([]byte, suite.HashLen())
	derived, err := keyschedule.Derive(suite, keyschedule.ZeroInitSecret(suite), zeroCommit, g.groupContext())
	if err != nil {
		// Only failure mode is encoding the (already well-formed) group
		// context; a founder's GroupContext is always encodable.
		panic(fmt.Sprintf("group: founder key schedule derivation failed: %v", err))
	}
	g.Secrets = derived.Epoch
	g.Application = ratchet.NewASTree(suite, derived.Epoch.ApplicationSecret)
	return g
}

func (g *GroupState) groupContext() keyschedule.GroupContext {
	return keyschedule.GroupContext{
		GroupID:                 g.GroupID,
		Epoch:                   g.Epoch,
		TreeHash:                g.Tree.TreeHash(),
		ConfirmedTranscriptHash: g.ConfirmedTranscriptHash,
	}
}

// CreateCommitResult is what CreateCommit returns (spec.md §4.6 step 10).
type CreateCommitResult struct {
	Plaintext framing.Plaintext
	Welcome   *Welcome
	NewBundle *keypackage.Bundle
}

// CreateCommit implements spec.md §4.6's create_commit. On success it
// installs the new epoch into g; on any error g is left untouched.
func (g *GroupState) CreateCommit(aad []byte, signaturePrivateKey []byte, newBundle *keypackage.Bundle, queue *proposal.Queue, proposalIDs []proposal.ID, forceSelfUpdate bool) (*CreateCommitResult, error) {
	lists, err := queue.GetCommitLists(proposalIDs)
	if err != nil {
		return nil, err
	}

	clonedTree := g.Tree.Clone()
	applyResult, err := clonedTree.ApplyProposals(lists)
	if err != nil {
		return nil, err
	}

	pathRequired := len(proposalIDs) == 0 || len(lists.Updates) > 0 || len(lists.Removes) > 0 || forceSelfUpdate

	commitSecret := make([]byte, g.Suite.HashLen())
	var path *ratchettree.DirectPath
	updatedBundle := clonedTree.Own.Bundle
	if pathRequired {
		if newBundle == nil {
			return nil, fmt.Errorf("group: path update required but no new key package bundle supplied")
		}
		provisional := keyschedule.GroupContext{GroupID: g.GroupID, Epoch: g.Epoch + 1, TreeHash: clonedTree.TreeHash(), ConfirmedTranscriptHash: g.ConfirmedTranscriptHash}
		provisionalBytes, err := provisional.Bytes()
		if err != nil {
			return nil, err
		}
		commitSecret, updatedBundle, path, err = clonedTree.UpdateOwnLeaf(signaturePrivateKey, *newBundle, provisionalBytes, true)
		if err != nil {
			return nil, err
		}
	}

	commitMsg := Commit{ProposalIDs: proposalIDs, Path: path}
	if path != nil {
		commitMsg.LeafKeyPackage = &updatedBundle.KeyPackage
	}
	commitContent, err := commitMsg.Encode()
	if err != nil {
		return nil, err
	}

	confirmedTranscriptHash := framing.ConfirmedTranscriptHash(g.Suite, g.InterimTranscriptHash, commitContent)
	newGroupContext := keyschedule.GroupContext{
		GroupID:                 g.GroupID,
		Epoch:                   g.Epoch + 1,
		TreeHash:                clonedTree.TreeHash(),
		ConfirmedTranscriptHash: confirmedTranscriptHash,
	}

	derived, err := keyschedule.Derive(g.Suite, g.Secrets.InitSecret, commitSecret, newGroupContext)
	if err != nil {
		return nil, err
	}

	plaintext := framing.Plaintext{
		GroupID:           g.GroupID,
		Epoch:             g.Epoch,
		Sender:            g.Tree.Own.NodeIndex.ToLeafIndex(),
		AuthenticatedData: aad,
		ContentType:       framing.ContentTypeCommit,
		Content:           commitContent,
	}
	oldContextBytes, err := g.groupContext().Bytes()
	if err != nil {
		return nil, err
	}
	if err := plaintext.Sign(g.Suite, oldContextBytes, signaturePrivateKey); err != nil {
		return nil, err
	}
	plaintext.SetConfirmationTag(derived.Epoch.ConfirmationKey, confirmedTranscriptHash)
	if err := plaintext.SetMembershipTag(oldContextBytes, derived.Epoch.MembershipKey); err != nil {
		return nil, err
	}

	var welcome *Welcome
	if len(applyResult.Invited) > 0 {
		invited := make(map[string]keypackage.KeyPackage, len(applyResult.Invited))
		pathSecrets := make(map[string][]byte)
		for _, leaf := range applyResult.Invited {
			kp := clonedTree.LeafKeyPackage(leaf)
			if kp == nil {
				continue
			}
			invited[fmt.Sprintf("%d", leaf)] = *kp
		}
		groupInfo := GroupInfo{GroupContext: newGroupContext, ConfirmationTag: plaintext.ConfirmationTag, Nodes: clonedTree.Nodes}
		welcome, err = BuildWelcome(g.Suite, derived.Welcome.Key, derived.Welcome.Nonce, groupInfo, invited, derived.JoinerSecret, pathSecrets)
		if err != nil {
			return nil, err
		}
	}

	newInterim, err := framing.InterimTranscriptHash(g.Suite, confirmedTranscriptHash, plaintext.Signature, plaintext.ConfirmationTag)
	if err != nil {
		return nil, err
	}

	g.Tree = clonedTree
	g.Epoch++
	g.ConfirmedTranscriptHash = confirmedTranscriptHash
	g.InterimTranscriptHash = newInterim
	g.Secrets = derived.Epoch
	g.Application = ratchet.NewASTree(g.Suite, derived.Epoch.ApplicationSecret)
	if applyResult.SelfRemoved {
		g.SelfRemoved = true
	}

	var resultBundle *keypackage.Bundle
	if pathRequired {
		resultBundle = &updatedBundle
	}
	return &CreateCommitResult{Plaintext: plaintext, Welcome: welcome, NewBundle: resultBundle}, nil
}

// ApplyCommit implements spec.md §4.6's apply_commit: the receiver-side
// mirror of CreateCommit.
func (g *GroupState) ApplyCommit(plaintext framing.Plaintext, queue *proposal.Queue) error {
	if plaintext.Epoch < g.Epoch {
		return fmt.Errorf("group: %w: got %d, have %d", ErrStaleEpoch, plaintext.Epoch, g.Epoch)
	}
	if plaintext.Epoch > g.Epoch {
		return fmt.Errorf("group: %w: got %d, have %d", ErrFutureEpoch, plaintext.Epoch, g.Epoch)
	}

	oldContextBytes, err := g.groupContext().Bytes()
	if err != nil {
		return err
	}
	senderSigPub := g.Tree.LeafKeyPackage(plaintext.Sender)
	if senderSigPub == nil {
		return fmt.Errorf("group: %w: commit sender leaf is blank", ratchettree.ErrInvalidCommit)
	}
	if err := plaintext.VerifySignature(g.Suite, oldContextBytes, senderSigPub.Credential.SignaturePublicKey); err != nil {
		return err
	}

	commitMsg, err := DecodeCommit(plaintext.Content)
	if err != nil {
		return err
	}

	clonedTree := g.Tree.Clone()
	lists, err := queue.GetCommitLists(commitMsg.ProposalIDs)
	if err != nil {
		return err
	}
	applyResult, err := clonedTree.ApplyProposals(lists)
	if err != nil {
		return err
	}
	if applyResult.SelfRemoved {
		g.SelfRemoved = true
		return ErrSelfRemoved
	}

	commitSecret := make([]byte, g.Suite.HashLen())
	if commitMsg.Path != nil {
		if commitMsg.LeafKeyPackage == nil {
			return fmt.Errorf("group: commit carries a path but no leaf key package")
		}
		provisional := keyschedule.GroupContext{GroupID: g.GroupID, Epoch: g.Epoch + 1, TreeHash: clonedTree.TreeHash(), ConfirmedTranscriptHash: g.ConfirmedTranscriptHash}
		provisionalBytes, err := provisional.Bytes()
		if err != nil {
			return err
		}
		commitSecret, err = clonedTree.ApplyDirectPath(plaintext.Sender, *commitMsg.LeafKeyPackage, commitMsg.Path, provisionalBytes)
		if err != nil {
			return err
		}
	}

	confirmedTranscriptHash := framing.ConfirmedTranscriptHash(g.Suite, g.InterimTranscriptHash, plaintext.Content)
	newGroupContext := keyschedule.GroupContext{
		GroupID:                 g.GroupID,
		Epoch:                   g.Epoch + 1,
		TreeHash:                clonedTree.TreeHash(),
		ConfirmedTranscriptHash: confirmedTranscriptHash,
	}
	derived, err := keyschedule.Derive(g.Suite, g.Secrets.InitSecret, commitSecret, newGroupContext)
	if err != nil {
		return err
	}
	if err := plaintext.VerifyConfirmationTag(derived.Epoch.ConfirmationKey, confirmedTranscriptHash); err != nil {
		return err
	}

	newInterim, err := framing.InterimTranscriptHash(g.Suite, confirmedTranscriptHash, plaintext.Signature, plaintext.ConfirmationTag)
	if err != nil {
		return err
	}

	g.Tree = clonedTree
	g.Epoch++
	g.ConfirmedTranscriptHash = confirmedTranscriptHash
	g.InterimTranscriptHash = newInterim
	g.Secrets = derived.Epoch
	g.Application = ratchet.NewASTree(g.Suite, derived.Epoch.ApplicationSecret)
	return nil
}

// NewFromWelcome implements spec.md §4.6's new_from_welcome: a joiner
// bootstraps full GroupState from a Welcome, their own Bundle, and the
// nodes array carried in GroupInfo.
func NewFromWelcome(suite ciphersuite.Suite, groupID []byte, welcome *Welcome, kpb keypackage.Bundle, ownLeaf treemath.LeafIndex) (*GroupState, error) {
	myHash, err := keyPackageHash(suite, kpb.KeyPackage)
	if err != nil {
		return nil, err
	}
	var entry *WelcomeEntry
	for i := range welcome.Secrets {
		if bytesEqual(welcome.Secrets[i].KeyPackageHash, myHash) {
			entry = &welcome.Secrets[i]
			break
		}
	}
	if entry == nil {
		return nil, ErrKeyPackageNotFound
	}

	gsBytes, err := suite.HPKEOpen(kpb.InitPrivateKey, groupID, nil, &entry.EncryptedGroupSecrets)
	if err != nil {
		return nil, fmt.Errorf("group: %w: open group secrets: %v", ratchettree.ErrInvalidCommit, err)
	}
	groupSecrets, err := decodeGroupSecrets(gsBytes)
	if err != nil {
		return nil, err
	}

	welcomeKey, welcomeNonce := deriveWelcomeKeyNonce(suite, groupSecrets.JoinerSecret)
	infoBytes, err := suite.AeadOpen(welcomeKey, welcomeNonce, nil, welcome.EncryptedGroupInfo)
	if err != nil {
		return nil, fmt.Errorf("group: %w: open group info: %v", ratchettree.ErrInvalidCommit, err)
	}
	groupInfo, err := decodeGroupInfo(infoBytes)
	if err != nil {
		return nil, err
	}

	tree := &ratchettree.Tree{
		Suite: suite,
		Nodes: groupInfo.Nodes,
		Own: ratchettree.OwnLeaf{
			Bundle:       kpb,
			NodeIndex:    ownLeaf.ToNodeIndex(),
			PathKeypairs: make(map[treemath.NodeIndex][]byte),
		},
	}
	if err := tree.VerifyIntegrity(); err != nil {
		return nil, err
	}

	if groupSecrets.PathSecret != nil {
		installPathKeypairsFromSecret(suite, tree, ownLeaf, groupSecrets.PathSecret)
	}

	derived, err := keyschedule.DeriveFromJoinerSecret(suite, groupSecrets.JoinerSecret, groupInfo.GroupContext)
	if err != nil {
		return nil, err
	}

	g := &GroupState{
		Suite:                   suite,
		Tree:                    tree,
		GroupID:                 groupID,
		Epoch:                   groupInfo.GroupContext.Epoch,
		ConfirmedTranscriptHash: groupInfo.GroupContext.ConfirmedTranscriptHash,
		InterimTranscriptHash:   groupInfo.GroupContext.ConfirmedTranscriptHash,
		Secrets:                 derived.Epoch,
		Application:             ratchet.NewASTree(suite, derived.Epoch.ApplicationSecret),
	}
	return g, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// deriveWelcomeKeyNonce re-derives welcome_key/welcome_nonce straight from
// joiner_secret, mirroring the two HKDF-Expand steps of Derive's welcome
// branch without needing the rest of the schedule.
func deriveWelcomeKeyNonce(suite ciphersuite.Suite, joinerSecret []byte) (key, nonce []byte) {
	welcomeSecret := suite.HKDFExpand(joinerSecret, []byte("mls 1.0 welcome"), suite.HashLen())
	key = suite.HKDFExpand(welcomeSecret, []byte("key"), suite.AeadKeyLen())
	nonce = suite.HKDFExpand(welcomeSecret, []byte("nonce"), suite.AeadNonceLen())
	return key, nonce
}

func installPathKeypairsFromSecret(suite ciphersuite.Suite, tree *ratchettree.Tree, leaf treemath.LeafIndex, pathSecret []byte) {
	ancestors := treemath.DirPathRoot(leaf.ToNodeIndex(), tree.Size())
	secret := pathSecret
	for _, ancestor := range ancestors {
		nodeSecret := suite.HKDFExpandLabel(secret, "node", nil, suite.HashLen())
		_, priv, err := suite.DeriveHPKEKeyPair(nodeSecret)
		if err == nil {
			tree.Own.PathKeypairs[ancestor] = priv
		}
		secret = suite.HKDFExpandLabel(secret, "path", nil, suite.HashLen())
	}
}

// Encrypt seals an application message using the local leaf's current
// SenderRatchet generation, advancing it (spec.md §4.7).
func (g *GroupState) Encrypt(authenticatedData, plaintext []byte) (*framing.Ciphertext, error) {
	leaf := g.Tree.Own.NodeIndex.ToLeafIndex()
	r := g.Application.RatchetFor(leaf)
	generation, secret := r.NextSendSecret()
	return framing.Seal(g.Suite, g.GroupID, g.Epoch, framing.ContentTypeApplication, leaf, generation, authenticatedData, secret.Key, secret.Nonce, g.Secrets.SenderDataSecret, plaintext)
}

// Decrypt opens a ciphertext, recovering sender identity via
// sender_data_secret and then the application body via that sender's
// SenderRatchet at the recovered generation.
func (g *GroupState) Decrypt(ct *framing.Ciphertext) (sender treemath.LeafIndex, body []byte, err error) {
	if ct.Epoch != g.Epoch {
		if ct.Epoch < g.Epoch {
			return 0, nil, fmt.Errorf("group: %w: got %d, have %d", ErrStaleEpoch, ct.Epoch, g.Epoch)
		}
		return 0, nil, fmt.Errorf("group: %w: got %d, have %d", ErrFutureEpoch, ct.Epoch, g.Epoch)
	}
	sender, generation, err := framing.OpenSenderData(g.Suite, ct, g.Secrets.SenderDataSecret)
	if err != nil {
		return 0, nil, err
	}
	secret, err := g.Application.GetSecret(sender, generation)
	if err != nil {
		return 0, nil, err
	}
	body, err = framing.OpenBody(g.Suite, ct, secret.Key, secret.Nonce)
	if err != nil {
		return 0, nil, err
	}
	return sender, body, nil
}
