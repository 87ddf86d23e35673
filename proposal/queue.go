package proposal

import (
	"fmt"

	"github.com/kindlyrobotics/maelstrom/ciphersuite"
	"github.com/kindlyrobotics/maelstrom/keypackage"
	"github.com/kindlyrobotics/maelstrom/treemath"
)

// ID is the 32-byte digest key a proposal is addressed by (spec.md §4.3).
type ID [32]byte

// QueuedProposal pairs a proposal with its sender and, for an Update the
// local member authored, the pending bundle that must replace own_leaf
// once the Commit lands (spec.md §3 ProposalQueue).
type QueuedProposal struct {
	ID                  ID
	Proposal            Proposal
	Sender              treemath.LeafIndex
	OwnKeyPackageBundle *keypackage.Bundle
}

// Queue is the deduplicated, insertion-ordered collection of pending
// proposals for the current epoch.
type Queue struct {
	suite   ciphersuite.Suite
	byID    map[ID]QueuedProposal
	order   []ID
}

// NewQueue constructs an empty queue bound to suite for digest computation
// and Add/Update signature verification.
func NewQueue(suite ciphersuite.Suite) *Queue {
	return &Queue{suite: suite, byID: make(map[ID]QueuedProposal)}
}

// Insert validates and adds a proposal. Duplicates by digest are silently
// ignored (first-write-wins, spec.md §3). Add/Update proposals must carry a
// KeyPackage whose signature verifies, checked here since a KeyPackage's
// well-formedness needs no tree context. A Remove naming an already-blank
// leaf can't be caught at this layer — the queue holds no tree reference —
// so that check stays at apply_proposals time against live tree state.
func (q *Queue) Insert(p Proposal, sender treemath.LeafIndex, ownBundle *keypackage.Bundle) (ID, error) {
	if err := validate(q.suite, p); err != nil {
		return ID{}, err
	}
	digest, err := Digest(q.suite, p)
	if err != nil {
		return ID{}, err
	}
	id := ID(digest)
	if _, exists := q.byID[id]; exists {
		return id, nil
	}
	q.byID[id] = QueuedProposal{ID: id, Proposal: p, Sender: sender, OwnKeyPackageBundle: ownBundle}
	q.order = append(q.order, id)
	return id, nil
}

func validate(suite ciphersuite.Suite, p Proposal) error {
	switch p.Type {
	case TypeAdd:
		if err := p.Add.KeyPackage.Validate(); err != nil {
			return fmt.Errorf("proposal: invalid add: %w", err)
		}
		if err := p.Add.KeyPackage.VerifySignature(suite); err != nil {
			return fmt.Errorf("proposal: invalid add: %w", err)
		}
	case TypeUpdate:
		if err := p.Update.KeyPackage.Validate(); err != nil {
			return fmt.Errorf("proposal: invalid update: %w", err)
		}
		if err := p.Update.KeyPackage.VerifySignature(suite); err != nil {
			return fmt.Errorf("proposal: invalid update: %w", err)
		}
	case TypeRemove:
		// nothing to verify structurally; blank-target check happens at
		// apply time against live tree state, which the queue does not own.
	default:
		return ErrInvalidType
	}
	return nil
}

// Get resolves a referenced ProposalID to its queued entry.
func (q *Queue) Get(id ID) (QueuedProposal, error) {
	qp, ok := q.byID[id]
	if !ok {
		return QueuedProposal{}, ErrProposalNotFound
	}
	return qp, nil
}

// Lists partitions queued entries by ProposalID list into
// {updates, removes, adds}, preserving insertion order within each bucket
// (spec.md §4.3 get_commit_lists).
type Lists struct {
	Updates []QueuedProposal
	Removes []QueuedProposal
	Adds    []QueuedProposal
}

// GetCommitLists resolves ids against the queue and buckets them by type.
func (q *Queue) GetCommitLists(ids []ID) (Lists, error) {
	var out Lists
	for _, id := range ids {
		qp, err := q.Get(id)
		if err != nil {
			return Lists{}, err
		}
		switch qp.Proposal.Type {
		case TypeUpdate:
			out.Updates = append(out.Updates, qp)
		case TypeRemove:
			out.Removes = append(out.Removes, qp)
		case TypeAdd:
			out.Adds = append(out.Adds, qp)
		}
	}
	return out, nil
}

// AllIDs returns every queued ProposalID in insertion order, the default
// commit list when a committer references "everything pending".
func (q *Queue) AllIDs() []ID {
	return append([]ID{}, q.order...)
}
