package core

import (
	"math/big"
	"sync"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/daico/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DAICO is the fund release ledger. Every mutating call holds mu for its whole
// duration, stages its writes in one batch and commits only when all checks pass.
type DAICO struct {
	mu sync.Mutex

	params *params
	// ledger mirrors the committed ledger record
	ledger *ledgerState

	store    *Store
	tokens   *TokenLedger
	registry HolderRegistry
	vault    Vault
	clock    Clock
	logger   logrus.FieldLogger
}

type Option func(*DAICO)

func WithClock(clock Clock) Option {
	return func(d *DAICO) {
		d.clock = clock
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *DAICO) {
		d.logger = logger
	}
}

// WithHolderRegistry replaces the token ledger as the source of voting rights.
func WithHolderRegistry(registry HolderRegistry) Option {
	return func(d *DAICO) {
		d.registry = registry
	}
}

func WithVault(vault Vault) Option {
	return func(d *DAICO) {
		d.vault = vault
	}
}

func parseParams(config *repo.Config) (*params, error) {
	if err := config.Check(); err != nil {
		return nil, err
	}
	p := &params{
		Owner:           common.HexToAddress(config.Owner),
		FundingEnd:      config.FundingEnd,
		Quorum:          config.Quorum,
		VotePolicy:      uint8(OneAddressOneVote),
		TokenRate:       config.TokenRate,
		MaxVotingPeriod: uint64(config.MaxVotingPeriod.Seconds()),
	}
	if config.VotePolicy == repo.VotePolicyBalance {
		p.VotePolicy = uint8(OneTokenOneVote)
	}
	return p, nil
}

// NewDAICO opens the deployment stored in db, creating it from config on first use.
// The deployment parameters of an existing deployment can not be changed.
func NewDAICO(config *repo.Config, db storage.Storage, opts ...Option) (*DAICO, error) {
	p, err := parseParams(config)
	if err != nil {
		return nil, err
	}

	store := NewStore(db)
	d := &DAICO{
		store:  store,
		tokens: NewTokenLedger(store),
		clock:  SystemClock{},
	}
	d.registry = d.tokens
	d.vault = NewTreasury(store)
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		logger := log.New()
		logger.SetLevel(log.ParseLevel(config.Log.Level))
		d.logger = logger
	}

	stored, exist, err := store.params()
	if err != nil {
		return nil, err
	}
	if exist {
		if *stored != *p {
			return nil, errors.New("deployment parameters differ from the stored deployment")
		}
		ledger, _, err := store.ledger()
		if err != nil {
			return nil, err
		}
		d.params = stored
		d.ledger = ledger
		return d, nil
	}

	ledger := &ledgerState{
		Tap:           new(big.Int),
		LastWithdrawn: p.FundingEnd,
	}
	batch := store.NewBatch()
	if err := store.putParams(batch, p); err != nil {
		return nil, err
	}
	if err := store.putLedger(batch, ledger); err != nil {
		return nil, err
	}
	batch.Commit()

	d.params = p
	d.ledger = ledger
	d.logger.WithFields(logrus.Fields{
		"owner":       p.Owner.Hex(),
		"funding_end": p.FundingEnd,
		"quorum":      p.Quorum,
	}).Info("deployment created")
	return d, nil
}

func (d *DAICO) phase(now uint64, l *ledgerState) Phase {
	if l.FundingClosed || now >= d.params.FundingEnd {
		return Operational
	}
	return Funding
}

// owed is what a withdrawal at now would pay under l.
func (d *DAICO) owed(now uint64, l *ledgerState) *big.Int {
	if now <= l.LastWithdrawn || l.Tap.Sign() == 0 {
		return new(big.Int)
	}
	owed := new(big.Int).SetUint64(now - l.LastWithdrawn)
	owed.Mul(owed, l.Tap)
	if balance := d.vault.Balance(); owed.Cmp(balance) > 0 {
		return balance
	}
	return owed
}

// commit stages ledger and makes it the current state.
func (d *DAICO) commit(batch storage.Batch, ledger *ledgerState) error {
	if err := d.store.putLedger(batch, ledger); err != nil {
		return err
	}
	batch.Commit()
	d.ledger = ledger
	return nil
}

func (d *DAICO) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.phase(d.clock.Now(), d.ledger)
}

func (d *DAICO) Tap() *big.Int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return new(big.Int).Set(d.ledger.Tap)
}

func (d *DAICO) LastWithdrawn() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.ledger.LastWithdrawn
}

// Owed previews what Withdraw would transfer right now.
func (d *DAICO) Owed() *big.Int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.owed(d.clock.Now(), d.ledger)
}

func (d *DAICO) Owner() common.Address {
	return d.params.Owner
}

func (d *DAICO) Quorum() uint64 {
	return d.params.Quorum
}

func (d *DAICO) FundingEnd() uint64 {
	return d.params.FundingEnd
}

func (d *DAICO) VotePolicy() VotePolicy {
	return VotePolicy(d.params.VotePolicy)
}

func (d *DAICO) Balance() *big.Int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.vault.Balance()
}

func (d *DAICO) BalanceOf(addr common.Address) *big.Int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.registry.BalanceOf(addr)
}

func (d *DAICO) Status() *Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	return &Status{
		Phase:         d.phase(now, d.ledger),
		Now:           now,
		FundingEnd:    d.params.FundingEnd,
		Tap:           new(big.Int).Set(d.ledger.Tap),
		LastWithdrawn: d.ledger.LastWithdrawn,
		Balance:       d.vault.Balance(),
		Owed:          d.owed(now, d.ledger),
		Proposals:     d.ledger.ProposalCount,
		TotalSupply:   d.tokens.TotalSupply(),
	}
}

// CloseFunding ends the funding phase before the configured end. Owner only.
func (d *DAICO) CloseFunding(caller common.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if caller != d.params.Owner {
		return errors.Wrapf(ErrUnauthorized, "%s is not the owner", caller)
	}
	if d.phase(d.clock.Now(), d.ledger) != Funding {
		return errors.Wrap(ErrWrongPhase, "funding already closed")
	}

	ledger := d.ledger.copy()
	ledger.FundingClosed = true
	if err := d.commit(d.store.NewBatch(), ledger); err != nil {
		return err
	}
	d.logger.Info("funding closed")
	return nil
}
