package core

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/daico/repo"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

const (
	LogChanMaxSize = 1000
)

var (
	TransferEventTopic      = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	FundsReceivedEventTopic = crypto.Keccak256Hash([]byte("FundsReceived(address,uint256)"))
)

// Dialer opens a new chain connection after the subscription broke.
type Dialer func(ctx context.Context) (Client, error)

// Watcher mirrors token transfers and incoming funds from chain into the ledger.
type Watcher struct {
	Ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	Client Client
	Dial   Dialer
	Logger logrus.FieldLogger
	DAICO  *DAICO

	// Subscribe log
	FromBlock    *big.Int
	ToBlock      *big.Int
	TokenAddress common.Address
	FundsAddress common.Address

	// RetryBackoff is the base of the fibonacci back-off used when re-dialing
	RetryBackoff time.Duration

	LogChan chan types.Log
	LogSub  ethereum.Subscription
}

func NewWatcher(ctx context.Context, config *repo.Config, daico *DAICO, client Client, dial Dialer) *Watcher {
	var fromBlock, toBlock *big.Int
	if config.Watch.FromBlock != 0 {
		fromBlock = new(big.Int).SetUint64(config.Watch.FromBlock)
	}
	if config.Watch.ToBlock != 0 {
		toBlock = new(big.Int).SetUint64(config.Watch.ToBlock)
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Watcher{
		Ctx:          ctx,
		cancel:       cancel,
		Client:       client,
		Dial:         dial,
		Logger:       daico.logger.WithField("module", "watcher"),
		DAICO:        daico,
		FromBlock:    fromBlock,
		ToBlock:      toBlock,
		TokenAddress: common.HexToAddress(config.Watch.TokenAddress),
		FundsAddress: common.HexToAddress(config.Watch.FundsAddress),
		RetryBackoff: 5 * time.Second,
		LogChan:      make(chan types.Log, LogChanMaxSize),
	}
}

func (w *Watcher) Start() error {
	if err := w.fetchHistoryLog(); err != nil {
		return err
	}

	if err := w.subscribeLog(); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.listenEvents()

	return nil
}

func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	if w.LogSub != nil {
		w.LogSub.Unsubscribe()
	}
	return nil
}

func (w *Watcher) query() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: w.getNewestFromBlock(),
		ToBlock:   w.ToBlock,
		Addresses: []common.Address{w.TokenAddress, w.FundsAddress},
		Topics:    [][]common.Hash{{TransferEventTopic, FundsReceivedEventTopic}},
	}
}

// getNewestFromBlock resumes at the block of the last applied log; logs of that
// block that were already applied are skipped by their index.
func (w *Watcher) getNewestFromBlock() *big.Int {
	cursor, exist, err := w.DAICO.store.watchCursor()
	if err != nil {
		w.Logger.Errorf("read watch cursor error: %s", err)
		return w.FromBlock
	}
	if exist && (w.FromBlock == nil || cursor.Block > w.FromBlock.Uint64()) {
		return new(big.Int).SetUint64(cursor.Block)
	}
	return w.FromBlock
}

func (w *Watcher) fetchHistoryLog() error {
	logs, err := w.Client.FilterLogs(w.Ctx, w.query())
	if err != nil {
		return err
	}

	w.Logger.Debugf("history logs: %d", len(logs))

	for i := range logs {
		w.handleLog(&logs[i])
	}
	return nil
}

func (w *Watcher) subscribeLog() error {
	var err error
	w.LogSub, err = w.Client.SubscribeFilterLogs(w.Ctx, w.query(), w.LogChan)
	return err
}

func (w *Watcher) listenEvents() {
	defer w.wg.Done()
	w.Logger.Info("listen events")

	for {
		select {
		case <-w.Ctx.Done():
			w.Logger.Info("context done")
			return
		case log := <-w.LogChan:
			w.handleLog(&log)
		case err := <-w.LogSub.Err():
			w.Logger.Errorf("subscription error: %s", err)
			if err := w.reconnect(); err != nil {
				if w.Ctx.Err() != nil {
					w.Logger.Info("context done while reconnecting")
					return
				}
				w.Logger.Errorf("reconnect error: %s", err)
				return
			}
		}
	}
}

func (w *Watcher) reconnect() error {
	if w.Dial == nil {
		return fmt.Errorf("no dialer to reconnect with")
	}
	if w.LogSub != nil {
		w.LogSub.Unsubscribe()
	}

	var client Client
	action := func(attempt uint) error {
		if err := w.Ctx.Err(); err != nil {
			return err
		}
		var err error
		client, err = w.Dial(w.Ctx)
		return err
	}
	if err := retry.Retry(action, strategy.Limit(5), w.waitBackoff(backoff.Fibonacci(w.RetryBackoff))); err != nil {
		return err
	}
	w.Client = client

	// catch up on what was missed while disconnected
	if err := w.fetchHistoryLog(); err != nil {
		return err
	}
	return w.subscribeLog()
}

// waitBackoff sleeps like strategy.Backoff but gives up once the watcher is stopped.
func (w *Watcher) waitBackoff(algorithm backoff.Algorithm) strategy.Strategy {
	return func(attempt uint) bool {
		if attempt == 0 {
			return true
		}
		timer := time.NewTimer(algorithm(attempt))
		defer timer.Stop()
		select {
		case <-w.Ctx.Done():
			return false
		case <-timer.C:
			return true
		}
	}
}

func (w *Watcher) handleLog(log *types.Log) {
	if log.Removed {
		w.Logger.Warnf("ignore removed log %s:%d", log.TxHash, log.Index)
		return
	}

	cursor := &watchCursor{Block: log.BlockNumber, Index: uint64(log.Index)}
	apply, err := w.decode(log)
	if err != nil {
		w.Logger.Errorf("decode log %s:%d error: %s", log.TxHash, log.Index, err)
		apply = nil
	}

	applied, err := w.DAICO.applyLog(cursor, apply)
	if err != nil {
		w.Logger.Errorf("apply log %s:%d error: %s", log.TxHash, log.Index, err)
		// skip it, a log that can not be applied now never will be
		_, err = w.DAICO.applyLog(cursor, nil)
		if err != nil {
			w.Logger.Errorf("advance watch cursor error: %s", err)
		}
		return
	}
	if applied {
		w.Logger.WithFields(logrus.Fields{
			"block": log.BlockNumber,
			"index": log.Index,
			"tx":    log.TxHash.Hex(),
		}).Debug("log applied")
	}
}

func (w *Watcher) decode(log *types.Log) (func(batch storage.Batch) error, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log without topics")
	}
	amount := new(big.Int).SetBytes(log.Data)

	switch {
	case log.Address == w.TokenAddress && log.Topics[0] == TransferEventTopic:
		if len(log.Topics) != 3 {
			return nil, fmt.Errorf("transfer log with %d topics", len(log.Topics))
		}
		from := common.BytesToAddress(log.Topics[1].Bytes())
		to := common.BytesToAddress(log.Topics[2].Bytes())
		return func(batch storage.Batch) error {
			return w.DAICO.applyTokenTransfer(batch, from, to, amount)
		}, nil
	case log.Address == w.FundsAddress && log.Topics[0] == FundsReceivedEventTopic:
		if len(log.Topics) != 2 {
			return nil, fmt.Errorf("funds log with %d topics", len(log.Topics))
		}
		return func(batch storage.Batch) error {
			return w.DAICO.receiveFunds(batch, amount)
		}, nil
	default:
		return nil, fmt.Errorf("unexpected log from %s", log.Address)
	}
}

// applyLog runs apply and advances the watch cursor in one batch. Logs at or
// before the cursor are skipped and reported as not applied.
func (d *DAICO) applyLog(cursor *watchCursor, apply func(batch storage.Batch) error) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	last, exist, err := d.store.watchCursor()
	if err != nil {
		return false, err
	}
	if exist && (cursor.Block < last.Block || (cursor.Block == last.Block && cursor.Index <= last.Index)) {
		return false, nil
	}

	batch := d.store.NewBatch()
	if apply != nil {
		if err := apply(batch); err != nil {
			return false, err
		}
	}
	if err := d.store.putWatchCursor(batch, cursor); err != nil {
		return false, err
	}
	batch.Commit()
	return apply != nil, nil
}
