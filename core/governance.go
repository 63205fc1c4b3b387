package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CreateProposal opens a vote on raising the tap to proposedTap for the next
// durationSeconds. Only holders may propose, and only during the operational phase.
func (d *DAICO) CreateProposal(proposer common.Address, proposedTap *big.Int, durationSeconds uint64) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if d.phase(now, d.ledger) != Operational {
		return 0, errors.Wrap(ErrWrongPhase, "proposals open after funding")
	}
	if !d.registry.IsHolder(proposer) {
		return 0, errors.Wrapf(ErrUnauthorized, "%s is not a holder", proposer)
	}
	if proposedTap == nil || proposedTap.Cmp(d.ledger.Tap) <= 0 {
		return 0, errors.Wrapf(ErrInvalidProposal, "proposed tap %v does not exceed current tap %s", proposedTap, d.ledger.Tap)
	}
	if now+durationSeconds <= now {
		return 0, errors.Wrapf(ErrInvalidProposal, "voting period %ds leaves no deadline after %d", durationSeconds, now)
	}
	if limit := d.params.MaxVotingPeriod; limit != 0 && durationSeconds > limit {
		return 0, errors.Wrapf(ErrInvalidProposal, "voting period %ds exceeds %ds", durationSeconds, limit)
	}

	ledger := d.ledger.copy()
	p := &Proposal{
		ID:             ledger.ProposalCount,
		Proposer:       proposer,
		ProposedTap:    new(big.Int).Set(proposedTap),
		CreatedAt:      now,
		VotingDeadline: now + durationSeconds,
		NumberOfVotes:  new(big.Int),
		PositiveVotes:  new(big.Int),
	}
	ledger.ProposalCount++

	batch := d.store.NewBatch()
	if err := d.store.putProposal(batch, p); err != nil {
		return 0, err
	}
	if err := d.commit(batch, ledger); err != nil {
		return 0, err
	}

	d.logger.WithFields(logrus.Fields{
		"id":       p.ID,
		"proposer": proposer.Hex(),
		"tap":      p.ProposedTap,
		"deadline": p.VotingDeadline,
	}).Info("proposal created")
	return p.ID, nil
}

// Vote records one vote of voter on the proposal. The weight is 1 or the
// voter's balance, depending on the deployment's vote policy.
func (d *DAICO) Vote(voter common.Address, id uint64, inFavor bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	p, err := d.store.proposal(id)
	if err != nil {
		return err
	}
	if d.phase(now, d.ledger) != Operational {
		return errors.Wrap(ErrWrongPhase, "voting opens after funding")
	}
	if now > p.VotingDeadline {
		return errors.Wrapf(ErrVotingClosed, "proposal %d closed at %d", id, p.VotingDeadline)
	}
	if !d.registry.IsHolder(voter) {
		return errors.Wrapf(ErrUnauthorized, "%s is not a holder", voter)
	}
	prev, err := d.store.vote(id, voter)
	if err != nil {
		return err
	}
	if prev != nil {
		return errors.Wrapf(ErrAlreadyVoted, "%s on proposal %d", voter, id)
	}

	weight := big.NewInt(1)
	if VotePolicy(d.params.VotePolicy) == OneTokenOneVote {
		weight = d.registry.BalanceOf(voter)
	}
	p.NumberOfVotes.Add(p.NumberOfVotes, weight)
	if inFavor {
		p.PositiveVotes.Add(p.PositiveVotes, weight)
	}

	batch := d.store.NewBatch()
	if err := d.store.putProposal(batch, p); err != nil {
		return err
	}
	if err := d.store.putVote(batch, id, voter, &VoteReceipt{InFavor: inFavor, Weight: weight}); err != nil {
		return err
	}
	batch.Commit()

	d.logger.WithFields(logrus.Fields{
		"id":       id,
		"voter":    voter.Hex(),
		"in_favor": inFavor,
		"weight":   weight,
	}).Info("vote cast")
	return nil
}

// ExecuteProposal resolves a proposal once its deadline has passed. The
// proposal is marked executed whatever the outcome; the tap is raised only when
// quorum and majority are met and the proposed tap is still above the current
// one. Time elapsed so far is settled at the old tap before the raise.
func (d *DAICO) ExecuteProposal(caller common.Address, id uint64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	p, err := d.store.proposal(id)
	if err != nil {
		return false, err
	}
	if p.Executed {
		return false, errors.Wrapf(ErrAlreadyExecuted, "proposal %d", id)
	}
	if now <= p.VotingDeadline {
		return false, errors.Wrapf(ErrNotYetExecutable, "proposal %d votes until %d", id, p.VotingDeadline)
	}

	quorumMet := p.NumberOfVotes.Cmp(new(big.Int).SetUint64(d.params.Quorum)) >= 0
	majorityMet := p.PositiveVotes.Cmp(p.NegativeVotes()) > 0
	tapStillHigher := p.ProposedTap.Cmp(d.ledger.Tap) > 0

	p.Executed = true
	p.Passed = quorumMet && majorityMet && tapStillHigher

	ledger := d.ledger.copy()
	batch := d.store.NewBatch()
	settled := new(big.Int)
	if p.Passed {
		settled, err = d.settle(batch, now, ledger)
		if err != nil {
			return false, err
		}
		ledger.Tap.Set(p.ProposedTap)
	}
	if err := d.store.putProposal(batch, p); err != nil {
		return false, err
	}
	if err := d.commit(batch, ledger); err != nil {
		return false, err
	}

	d.logger.WithFields(logrus.Fields{
		"id":           id,
		"caller":       caller.Hex(),
		"passed":       p.Passed,
		"quorum_met":   quorumMet,
		"majority_met": majorityMet,
		"tap_higher":   tapStillHigher,
		"tap":          ledger.Tap,
		"settled":      settled,
	}).Info("proposal executed")
	return p.Passed, nil
}

func (d *DAICO) Proposal(id uint64) (*Proposal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.store.proposal(id)
}

func (d *DAICO) ProposalCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.ledger.ProposalCount
}

// Proposals returns the whole proposal history in id order.
func (d *DAICO) Proposals() ([]*Proposal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	proposals := make([]*Proposal, 0, d.ledger.ProposalCount)
	for id := uint64(0); id < d.ledger.ProposalCount; id++ {
		p, err := d.store.proposal(id)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// VoteOf returns the receipt of voter on proposal id, nil if it did not vote.
func (d *DAICO) VoteOf(id uint64, voter common.Address) (*VoteReceipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.store.proposal(id); err != nil {
		return nil, err
	}
	return d.store.vote(id, voter)
}
