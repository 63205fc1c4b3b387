package core

import (
	"math/big"

	"github.com/axiomesh/axiom-kit/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// settle stages the payout owed at the current tap and moves LastWithdrawn to now.
func (d *DAICO) settle(batch storage.Batch, now uint64, ledger *ledgerState) (*big.Int, error) {
	owed := d.owed(now, ledger)
	if owed.Sign() > 0 {
		if err := d.vault.Transfer(batch, d.params.Owner, owed); err != nil {
			return nil, errors.Wrapf(ErrTransferFailure, "transfer %s to %s: %s", owed, d.params.Owner, err)
		}
	}
	if now > ledger.LastWithdrawn {
		ledger.LastWithdrawn = now
	}
	return owed, nil
}

// Withdraw pays the owner min(tap * elapsed, balance). LastWithdrawn moves to
// now even when nothing is owed.
func (d *DAICO) Withdraw(caller common.Address) (*big.Int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if caller != d.params.Owner {
		return nil, errors.Wrapf(ErrUnauthorized, "%s is not the owner", caller)
	}
	now := d.clock.Now()
	if d.phase(now, d.ledger) != Operational {
		return nil, errors.Wrap(ErrWrongPhase, "withdrawals open after funding")
	}

	ledger := d.ledger.copy()
	batch := d.store.NewBatch()
	amount, err := d.settle(batch, now, ledger)
	if err != nil {
		return nil, err
	}
	if err := d.commit(batch, ledger); err != nil {
		return nil, err
	}

	d.logger.WithFields(logrus.Fields{
		"owner":          d.params.Owner.Hex(),
		"amount":         amount,
		"last_withdrawn": ledger.LastWithdrawn,
	}).Info("withdrawn")
	return amount, nil
}
