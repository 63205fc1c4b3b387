package core

import (
	"math/big"

	"github.com/axiomesh/axiom-kit/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Vault holds the contributed funds. Deposit and Transfer only stage their
// writes in batch; nothing moves until the caller commits it.
type Vault interface {
	Balance() *big.Int
	Deposit(batch storage.Batch, amount *big.Int) error
	Transfer(batch storage.Batch, to common.Address, amount *big.Int) error
}

var _ Vault = (*Treasury)(nil)

// Treasury is the storage backed vault. Payouts are accumulated per recipient.
type Treasury struct {
	store *Store
}

func NewTreasury(store *Store) *Treasury {
	return &Treasury{store: store}
}

func (t *Treasury) Balance() *big.Int {
	return t.store.getBig(treasuryKey)
}

// PaidTo is the total amount ever transferred to addr.
func (t *Treasury) PaidTo(addr common.Address) *big.Int {
	return t.store.getBig(addressKey(payoutPrefix, addr))
}

func (t *Treasury) Deposit(batch storage.Batch, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "deposit %s", amount)
	}
	t.store.putBig(batch, treasuryKey, new(big.Int).Add(t.Balance(), amount))
	return nil
}

func (t *Treasury) Transfer(batch storage.Batch, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "transfer %s", amount)
	}
	balance := t.Balance()
	if balance.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "treasury holds %s, transfer %s", balance, amount)
	}
	t.store.putBig(batch, treasuryKey, balance.Sub(balance, amount))
	t.store.putBig(batch, addressKey(payoutPrefix, to), new(big.Int).Add(t.PaidTo(to), amount))
	return nil
}
