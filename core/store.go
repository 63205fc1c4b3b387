package core

import (
	"encoding/binary"
	"math/big"

	"github.com/axiomesh/axiom-kit/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

var (
	paramsKey      = []byte("params")
	ledgerKey      = []byte("ledger")
	supplyKey      = []byte("supply")
	treasuryKey    = []byte("treasury")
	watchCursorKey = []byte("watchCursor")

	proposalPrefix = []byte("proposal-")
	votePrefix     = []byte("vote-")
	balancePrefix  = []byte("balance-")
	payoutPrefix   = []byte("payout-")
)

// params are fixed at the first start of a deployment.
type params struct {
	Owner           common.Address
	FundingEnd      uint64
	Quorum          uint64
	VotePolicy      uint8
	TokenRate       uint64
	MaxVotingPeriod uint64
}

type ledgerState struct {
	Tap           *big.Int
	LastWithdrawn uint64
	FundingClosed bool
	ProposalCount uint64
}

func (l *ledgerState) copy() *ledgerState {
	cp := *l
	cp.Tap = new(big.Int).Set(l.Tap)
	return &cp
}

type watchCursor struct {
	Block uint64
	Index uint64
}

// Store reads and stages the rlp encoded records of a deployment.
// Writes always go through a batch so a failed call leaves nothing behind.
type Store struct {
	db storage.Storage
}

func NewStore(db storage.Storage) *Store {
	return &Store{db: db}
}

func (s *Store) NewBatch() storage.Batch {
	return s.db.NewBatch()
}

func (s *Store) get(key []byte, val any) (bool, error) {
	data := s.db.Get(key)
	if data == nil {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, val); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func (s *Store) put(batch storage.Batch, key []byte, val any) error {
	data, err := rlp.EncodeToBytes(val)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	batch.Put(key, data)
	return nil
}

func (s *Store) params() (*params, bool, error) {
	p := &params{}
	ok, err := s.get(paramsKey, p)
	return p, ok, err
}

func (s *Store) putParams(batch storage.Batch, p *params) error {
	return s.put(batch, paramsKey, p)
}

func (s *Store) ledger() (*ledgerState, bool, error) {
	l := &ledgerState{}
	ok, err := s.get(ledgerKey, l)
	if l.Tap == nil {
		l.Tap = new(big.Int)
	}
	return l, ok, err
}

func (s *Store) putLedger(batch storage.Batch, l *ledgerState) error {
	return s.put(batch, ledgerKey, l)
}

func proposalKey(id uint64) []byte {
	key := make([]byte, len(proposalPrefix)+8)
	copy(key, proposalPrefix)
	binary.BigEndian.PutUint64(key[len(proposalPrefix):], id)
	return key
}

func (s *Store) proposal(id uint64) (*Proposal, error) {
	p := &Proposal{}
	ok, err := s.get(proposalKey(id), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrInvalidProposal, "proposal %d not found", id)
	}
	return p, nil
}

func (s *Store) putProposal(batch storage.Batch, p *Proposal) error {
	return s.put(batch, proposalKey(p.ID), p)
}

func voteKey(id uint64, voter common.Address) []byte {
	key := make([]byte, 0, len(votePrefix)+8+common.AddressLength)
	key = append(key, votePrefix...)
	key = binary.BigEndian.AppendUint64(key, id)
	return append(key, voter.Bytes()...)
}

// vote returns nil when the voter has not voted on the proposal.
func (s *Store) vote(id uint64, voter common.Address) (*VoteReceipt, error) {
	r := &VoteReceipt{}
	ok, err := s.get(voteKey(id, voter), r)
	if err != nil || !ok {
		return nil, err
	}
	return r, nil
}

func (s *Store) putVote(batch storage.Batch, id uint64, voter common.Address, r *VoteReceipt) error {
	return s.put(batch, voteKey(id, voter), r)
}

func (s *Store) watchCursor() (*watchCursor, bool, error) {
	c := &watchCursor{}
	ok, err := s.get(watchCursorKey, c)
	return c, ok, err
}

func (s *Store) putWatchCursor(batch storage.Batch, c *watchCursor) error {
	return s.put(batch, watchCursorKey, c)
}

func addressKey(prefix []byte, addr common.Address) []byte {
	key := make([]byte, 0, len(prefix)+common.AddressLength)
	key = append(key, prefix...)
	return append(key, addr.Bytes()...)
}

// getBig returns zero for a missing key.
func (s *Store) getBig(key []byte) *big.Int {
	data := s.db.Get(key)
	return new(big.Int).SetBytes(data)
}

func (s *Store) putBig(batch storage.Batch, key []byte, v *big.Int) {
	batch.Put(key, v.Bytes())
}
