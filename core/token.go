package core

import (
	"math/big"

	"github.com/axiomesh/axiom-kit/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// HolderRegistry answers who holds tokens. It must not mutate anything.
type HolderRegistry interface {
	IsHolder(addr common.Address) bool
	BalanceOf(addr common.Address) *big.Int
}

var _ HolderRegistry = (*TokenLedger)(nil)

// TokenLedger keeps the token balances issued by the crowdsale or mirrored from chain.
type TokenLedger struct {
	store *Store
}

func NewTokenLedger(store *Store) *TokenLedger {
	return &TokenLedger{store: store}
}

func (t *TokenLedger) BalanceOf(addr common.Address) *big.Int {
	return t.store.getBig(addressKey(balancePrefix, addr))
}

func (t *TokenLedger) IsHolder(addr common.Address) bool {
	return t.BalanceOf(addr).Sign() > 0
}

func (t *TokenLedger) TotalSupply() *big.Int {
	return t.store.getBig(supplyKey)
}

func (t *TokenLedger) Mint(batch storage.Batch, to common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "mint %s", amount)
	}
	t.store.putBig(batch, addressKey(balancePrefix, to), new(big.Int).Add(t.BalanceOf(to), amount))
	t.store.putBig(batch, supplyKey, new(big.Int).Add(t.TotalSupply(), amount))
	return nil
}

func (t *TokenLedger) Burn(batch storage.Batch, from common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "burn %s", amount)
	}
	balance := t.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "%s holds %s, burn %s", from, balance, amount)
	}
	t.store.putBig(batch, addressKey(balancePrefix, from), balance.Sub(balance, amount))
	t.store.putBig(batch, supplyKey, new(big.Int).Sub(t.TotalSupply(), amount))
	return nil
}

func (t *TokenLedger) Transfer(batch storage.Batch, from, to common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "transfer %s", amount)
	}
	balance := t.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "%s holds %s, transfer %s", from, balance, amount)
	}
	if from == to {
		return nil
	}
	t.store.putBig(batch, addressKey(balancePrefix, from), balance.Sub(balance, amount))
	t.store.putBig(batch, addressKey(balancePrefix, to), new(big.Int).Add(t.BalanceOf(to), amount))
	return nil
}
