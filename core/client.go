package core

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type Client interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error)
}

var _ Client = (*MockClient)(nil)

// MockClient serves History from FilterLogs and forwards Emit to the last subscriber.
type MockClient struct {
	mu      sync.Mutex
	History []types.Log
	Queries []ethereum.FilterQuery
	ch      chan<- types.Log
	sub     *MockSubscription
}

func (mc *MockClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.Queries = append(mc.Queries, q)
	var logs []types.Log
	for _, l := range mc.History {
		if q.FromBlock != nil && l.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && l.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (mc *MockClient) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.ch = ch
	mc.sub = &MockSubscription{errChan: make(chan error, 1)}
	return mc.sub, nil
}

// Emit delivers log to the current subscription.
func (mc *MockClient) Emit(log types.Log) {
	mc.mu.Lock()
	ch := mc.ch
	mc.mu.Unlock()
	ch <- log
}

// Fail breaks the current subscription with err.
func (mc *MockClient) Fail(err error) {
	mc.mu.Lock()
	sub := mc.sub
	mc.mu.Unlock()
	sub.errChan <- err
}

func (mc *MockClient) Subscribed() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.sub != nil
}

// Unsubscribed reports whether the current subscription was released.
func (mc *MockClient) Unsubscribed() bool {
	mc.mu.Lock()
	sub := mc.sub
	mc.mu.Unlock()
	return sub != nil && sub.unsubscribed.Load()
}

func NewTransferLog(token common.Address, from, to common.Address, amount *big.Int, block uint64, index uint) types.Log {
	return types.Log{
		Address:     token,
		Topics:      []common.Hash{TransferEventTopic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		BlockNumber: block,
		Index:       index,
	}
}

func NewFundsReceivedLog(funds common.Address, from common.Address, amount *big.Int, block uint64, index uint) types.Log {
	return types.Log{
		Address:     funds,
		Topics:      []common.Hash{FundsReceivedEventTopic, common.BytesToHash(from.Bytes())},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		BlockNumber: block,
		Index:       index,
	}
}

type MockSubscription struct {
	errChan      chan error
	unsubscribed atomic.Bool
}

func (ms *MockSubscription) Unsubscribe() {
	ms.unsubscribed.Store(true)
}

func (ms *MockSubscription) Err() <-chan error {
	return ms.errChan
}
