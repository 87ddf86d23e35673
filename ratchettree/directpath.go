package ratchettree

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/extensions"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/node"
	"github.com/kindlyrobotics/maelstrom/treemath"
)

// DirectPathNode carries one ancestor's refreshed public key plus the
// path secret encrypted to every member of the corresponding copath
// resolution (spec.md §4.2).
type DirectPathNode struct {
	PublicKey           []byte
	EncryptedPathSecret []ciphersuite.HPKECiphertext
}

// DirectPath is the full sequence of refreshed ancestors a committer
// publishes, index-aligned with treemath.DirPathRoot and treemath.Copath.
type DirectPath struct {
	Nodes []DirectPathNode
}

// pathSecrets holds the per-ancestor path secret chain derived from a
// single seed, plus the resulting commit_secret (spec.md §4.2 step 6).
type pathSecrets struct {
	secrets      [][]byte
	commitSecret []byte
}

func derivePathSecrets(suite ciphersuite.Suite, seed []byte, pathLen int) pathSecrets {
	if pathLen == 0 {
		return pathSecrets{commitSecret: suite.HKDFExpandLabel(seed, "path", nil, suite.HashLen())}
	}
	secrets := make([][]byte, pathLen)
	secrets[0] = seed
	for k := 1; k < pathLen; k++ {
		secrets[k] = suite.HKDFExpandLabel(secrets[k-1], "path", nil, suite.HashLen())
	}
	commitSecret := suite.HKDFExpandLabel(secrets[pathLen-1], "path", nil, suite.HashLen())
	return pathSecrets{secrets: secrets, commitSecret: commitSecret}
}

func nodeKeypairFromPathSecret(suite ciphersuite.Suite, pathSecret []byte) (public, private []byte, err error) {
	nodeSecret := suite.HKDFExpandLabel(pathSecret, "node", nil, suite.HashLen())
	return suite.DeriveHPKEKeyPair(nodeSecret)
}

// sealPathSecretToResolution encrypts secret to every member of resolution,
// in parallel (spec.md §5 permits CPU fan-out across copath resolution
// members), assembling the result vector in resolution order regardless of
// completion order.
func (t *Tree) sealPathSecretToResolution(groupContext, secret []byte, resolution []treemath.NodeIndex) ([]ciphersuite.HPKECiphertext, error) {
	out := make([]ciphersuite.HPKECiphertext, len(resolution))
	g, _ := errgroup.WithContext(context.Background())
	for idx, member := range resolution {
		idx, member := idx, member
		g.Go(func() error {
			pub, err := t.PublicKeyAt(member)
			if err != nil {
				return err
			}
			ct, err := t.Suite.HPKESeal(pub, groupContext, nil, secret)
			if err != nil {
				return fmt.Errorf("ratchettree: seal path secret to node %d: %w", member, err)
			}
			out[idx] = *ct
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateOwnLeaf is the committer variant of a path update (spec.md §4.2
// update_own_leaf): it derives a fresh keypair for every ancestor of the
// local leaf from newBundle's init private key, installs the new public
// keys into the tree, optionally re-signs newBundle with a fresh
// ParentHash extension, and optionally produces the DirectPath that
// refreshes every other member's copy of the tree.
func (t *Tree) UpdateOwnLeaf(signaturePrivateKey []byte, newBundle keypackage.Bundle, groupContext []byte, withDirectPath bool) (commitSecret []byte, updatedBundle keypackage.Bundle, path *DirectPath, err error) {
	size := t.Size()
	leafNode := t.Own.NodeIndex
	ancestors := treemath.DirPathRoot(leafNode, size)
	ps := derivePathSecrets(t.Suite, newBundle.InitPrivateKey, len(ancestors))

	pathKeys := make(map[treemath.NodeIndex][]byte, len(ancestors))
	pubKeys := make([][]byte, len(ancestors))
	for k, ancestor := range ancestors {
		pub, priv, err := nodeKeypairFromPathSecret(t.Suite, ps.secrets[k])
		if err != nil {
			return nil, keypackage.Bundle{}, nil, fmt.Errorf("ratchettree: derive node keypair: %w", err)
		}
		pubKeys[k] = pub
		pathKeys[ancestor] = priv
		existing := t.Nodes[ancestor]
		var unmerged []treemath.LeafIndex
		if !existing.IsBlank() {
			unmerged = existing.Parent.UnmergedLeaves
		}
		t.Nodes[ancestor] = node.ParentOf(node.ParentNode{PublicKey: pub, UnmergedLeaves: unmerged})
	}

	updatedBundle = newBundle
	if signaturePrivateKey != nil {
		leafParentHash, err := t.recomputeParentHashChain(leafNode)
		if err != nil {
			return nil, keypackage.Bundle{}, nil, err
		}
		phExt, err := extensions.ParentHash{Hash: leafParentHash}.ToExtension()
		if err != nil {
			return nil, keypackage.Bundle{}, nil, err
		}
		updatedBundle.KeyPackage.Extensions = updatedBundle.KeyPackage.Extensions.WithReplaced(phExt)
		if err := updatedBundle.KeyPackage.Sign(t.Suite, signaturePrivateKey); err != nil {
			return nil, keypackage.Bundle{}, nil, err
		}
		updatedBundle.SignaturePrivateKey = signaturePrivateKey
	}

	t.Nodes[leafNode] = node.Leaf(updatedBundle.KeyPackage)
	t.Own.Bundle = updatedBundle
	for idx, priv := range pathKeys {
		t.Own.PathKeypairs[idx] = priv
	}

	if !withDirectPath {
		return ps.commitSecret, updatedBundle, nil, nil
	}

	copath := treemath.Copath(leafNode, size)
	dp := &DirectPath{Nodes: make([]DirectPathNode, len(copath))}
	for k := range copath {
		resolution := t.Resolve(copath[k])
		cts, err := t.sealPathSecretToResolution(groupContext, ps.secrets[k], resolution)
		if err != nil {
			return nil, keypackage.Bundle{}, nil, err
		}
		dp.Nodes[k] = DirectPathNode{PublicKey: pubKeys[k], EncryptedPathSecret: cts}
	}
	return ps.commitSecret, updatedBundle, dp, nil
}

// ApplyDirectPath is the non-committer variant (spec.md §4.2
// update_direct_path): it locates the path entry whose copath resolution
// covers the local leaf, decrypts the path secret, re-derives the chain up
// to the root, verifies the sender's published public keys match, and
// installs both the sender's new leaf and every refreshed ancestor.
func (t *Tree) ApplyDirectPath(senderLeaf treemath.LeafIndex, senderKeyPackage keypackage.KeyPackage, path *DirectPath, groupContext []byte) (commitSecret []byte, err error) {
	size := t.Size()
	senderNode := senderLeaf.ToNodeIndex()
	ancestors := treemath.DirPathRoot(senderNode, size)
	copath := treemath.Copath(senderNode, size)
	if len(path.Nodes) != len(copath) {
		return nil, fmt.Errorf("ratchettree: %w: direct path length %d, want %d", ErrMalformedTree, len(path.Nodes), len(copath))
	}

	ancestor := treemath.CommonAncestor(senderNode, t.Own.NodeIndex, size)
	p := indexOf(ancestors, ancestor)
	if p < 0 {
		return nil, fmt.Errorf("ratchettree: %w: common ancestor not on sender direct path", ErrInvalidCommit)
	}

	resolution := t.Resolve(copath[p])
	pos := indexOf(resolution, t.Own.NodeIndex)
	if pos < 0 {
		pos = 0
	}
	if pos >= len(path.Nodes[p].EncryptedPathSecret) {
		return nil, fmt.Errorf("ratchettree: %w: no ciphertext for resolution position %d", ErrInvalidCommit, pos)
	}

	var privateKey []byte
	if len(resolution) > pos && resolution[pos] == t.Own.NodeIndex {
		privateKey = t.Own.Bundle.InitPrivateKey
	} else {
		privateKey = t.Own.PathKeypairs[copath[p]]
	}
	if privateKey == nil {
		return nil, fmt.Errorf("ratchettree: %w: no private key available to open direct path", ErrInvalidCommit)
	}

	ct := path.Nodes[p].EncryptedPathSecret[pos]
	decrypted, err := t.Suite.HPKEOpen(privateKey, groupContext, nil, &ct)
	if err != nil {
		return nil, fmt.Errorf("ratchettree: %w: open direct path: %v", ErrInvalidCommit, err)
	}

	remaining := len(ancestors) - p
	ps := derivePathSecrets(t.Suite, decrypted, remaining)
	for k := 0; k < remaining; k++ {
		pub, _, err := nodeKeypairFromPathSecret(t.Suite, ps.secrets[k])
		if err != nil {
			return nil, fmt.Errorf("ratchettree: derive node keypair: %w", err)
		}
		if !bytes.Equal(pub, path.Nodes[p+k].PublicKey) {
			return nil, fmt.Errorf("ratchettree: %w: derived public key mismatch at ancestor %d", ErrInvalidCommit, ancestors[p+k])
		}
	}

	for k := 0; k < p; k++ {
		existing := t.Nodes[ancestors[k]]
		var unmerged []treemath.LeafIndex
		if !existing.IsBlank() {
			unmerged = existing.Parent.UnmergedLeaves
		}
		t.Nodes[ancestors[k]] = node.ParentOf(node.ParentNode{PublicKey: path.Nodes[k].PublicKey, UnmergedLeaves: unmerged})
	}
	for k := 0; k < remaining; k++ {
		ancestorIdx := ancestors[p+k]
		pub, priv, err := nodeKeypairFromPathSecret(t.Suite, ps.secrets[k])
		if err != nil {
			return nil, err
		}
		existing := t.Nodes[ancestorIdx]
		var unmerged []treemath.LeafIndex
		if !existing.IsBlank() {
			unmerged = existing.Parent.UnmergedLeaves
		}
		t.Nodes[ancestorIdx] = node.ParentOf(node.ParentNode{PublicKey: pub, UnmergedLeaves: unmerged})
		t.Own.PathKeypairs[ancestorIdx] = priv
	}

	t.Nodes[senderNode] = node.Leaf(senderKeyPackage)
	if _, err := t.recomputeParentHashChain(senderNode); err != nil {
		return nil, err
	}

	return ps.commitSecret, nil
}
