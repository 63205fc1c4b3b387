package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Phase uint8

const (
	// Funding accepts contributions, withdrawals and proposals are disabled
	Funding Phase = iota

	// Operational releases funds through the tap and accepts proposals
	Operational
)

func (p Phase) String() string {
	switch p {
	case Funding:
		return "funding"
	case Operational:
		return "operational"
	default:
		return "unknown"
	}
}

type VotePolicy uint8

const (
	// OneAddressOneVote counts every holder's vote as 1
	OneAddressOneVote VotePolicy = iota

	// OneTokenOneVote weights a vote by the voter's token balance at vote time
	OneTokenOneVote
)

// Proposal is a request to raise the tap to ProposedTap.
// Only the tallies and the resolution fields change after creation.
type Proposal struct {
	ID             uint64
	Proposer       common.Address
	ProposedTap    *big.Int
	CreatedAt      uint64
	VotingDeadline uint64

	// NumberOfVotes is the total weight of all votes cast
	NumberOfVotes *big.Int
	// PositiveVotes is the weight of the votes in favor
	PositiveVotes *big.Int

	Executed bool
	// Passed is set together with Executed when the proposal changed the tap
	Passed bool
}

func (p *Proposal) NegativeVotes() *big.Int {
	return new(big.Int).Sub(p.NumberOfVotes, p.PositiveVotes)
}

// VoteReceipt marks a voter as having voted on a proposal.
type VoteReceipt struct {
	InFavor bool
	Weight  *big.Int
}

// Status is a read-only snapshot of the ledger.
type Status struct {
	Phase         Phase
	Now           uint64
	FundingEnd    uint64
	Tap           *big.Int
	LastWithdrawn uint64
	Balance       *big.Int
	Owed          *big.Int
	Proposals     uint64
	TotalSupply   *big.Int
}
