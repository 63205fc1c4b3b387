package core

import (
	"math/big"

	"github.com/axiomesh/axiom-kit/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Contribute buys tokens during funding. The purchaser receives amount*rate
// tokens and amount is credited to the vault.
func (d *DAICO) Contribute(purchaser common.Address, amount *big.Int) (*big.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.phase(d.clock.Now(), d.ledger) != Funding {
		return nil, errors.Wrap(ErrWrongPhase, "funding is over")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.Wrapf(ErrInvalidAmount, "contribution %v", amount)
	}

	tokens := new(big.Int).Mul(amount, new(big.Int).SetUint64(d.params.TokenRate))
	batch := d.store.NewBatch()
	if err := d.tokens.Mint(batch, purchaser, tokens); err != nil {
		return nil, err
	}
	if err := d.vault.Deposit(batch, amount); err != nil {
		return nil, err
	}
	batch.Commit()

	d.logger.WithFields(logrus.Fields{
		"purchaser": purchaser.Hex(),
		"amount":    amount,
		"tokens":    tokens,
	}).Info("contribution")
	return tokens, nil
}

// ReceiveFunds credits funds that arrived without buying tokens.
func (d *DAICO) ReceiveFunds(from common.Address, amount *big.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	batch := d.store.NewBatch()
	if err := d.receiveFunds(batch, amount); err != nil {
		return err
	}
	batch.Commit()

	d.logger.WithFields(logrus.Fields{
		"from":   from.Hex(),
		"amount": amount,
	}).Info("funds received")
	return nil
}

func (d *DAICO) receiveFunds(batch storage.Batch, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "funds %v", amount)
	}
	return d.vault.Deposit(batch, amount)
}

// TransferTokens moves tokens between holders, which moves voting rights with them.
func (d *DAICO) TransferTokens(from, to common.Address, amount *big.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if amount == nil {
		return errors.Wrap(ErrInvalidAmount, "nil amount")
	}
	batch := d.store.NewBatch()
	if err := d.tokens.Transfer(batch, from, to, amount); err != nil {
		return err
	}
	batch.Commit()

	d.logger.WithFields(logrus.Fields{
		"from":   from.Hex(),
		"to":     to.Hex(),
		"amount": amount,
	}).Debug("tokens transferred")
	return nil
}

// ApplyTokenTransfer mirrors a token transfer observed elsewhere.
// A zero from address mints, a zero to address burns.
func (d *DAICO) ApplyTokenTransfer(from, to common.Address, amount *big.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	batch := d.store.NewBatch()
	if err := d.applyTokenTransfer(batch, from, to, amount); err != nil {
		return err
	}
	batch.Commit()
	return nil
}

func (d *DAICO) applyTokenTransfer(batch storage.Batch, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "transfer %v", amount)
	}

	switch {
	case from == (common.Address{}) && to == (common.Address{}):
		return nil
	case from == (common.Address{}):
		return d.tokens.Mint(batch, to, amount)
	case to == (common.Address{}):
		return d.tokens.Burn(batch, from, amount)
	default:
		return d.tokens.Transfer(batch, from, to, amount)
	}
}
