package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Keeper executes proposals whose voting deadline has passed. It is an
// ordinary caller of the ledger: it goes through ExecuteProposal like anyone else.
type Keeper struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	daico    *DAICO
	interval time.Duration
	logger   logrus.FieldLogger
}

func NewKeeper(ctx context.Context, daico *DAICO, interval time.Duration, logger logrus.FieldLogger) *Keeper {
	ctx, cancel := context.WithCancel(ctx)
	return &Keeper{
		ctx:      ctx,
		cancel:   cancel,
		daico:    daico,
		interval: interval,
		logger:   logger,
	}
}

func (k *Keeper) Start() {
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()

		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()
		for {
			select {
			case <-k.ctx.Done():
				k.logger.Info("keeper stopped")
				return
			case <-ticker.C:
				if _, err := k.RunOnce(); err != nil {
					k.logger.Errorf("keeper run error: %s", err)
				}
			}
		}
	}()
}

func (k *Keeper) Stop() {
	k.cancel()
	k.wg.Wait()
}

// RunOnce executes every matured proposal, earliest deadline first and lower
// id first on equal deadlines, and returns the ids it resolved.
func (k *Keeper) RunOnce() ([]uint64, error) {
	proposals, err := k.daico.Proposals()
	if err != nil {
		return nil, err
	}
	now := k.daico.clock.Now()
	matured := lo.Filter(proposals, func(p *Proposal, _ int) bool {
		return !p.Executed && now > p.VotingDeadline
	})
	sort.Slice(matured, func(i, j int) bool {
		if matured[i].VotingDeadline != matured[j].VotingDeadline {
			return matured[i].VotingDeadline < matured[j].VotingDeadline
		}
		return matured[i].ID < matured[j].ID
	})

	var resolved []uint64
	for _, p := range matured {
		_, err := k.daico.ExecuteProposal(common.Address{}, p.ID)
		switch {
		case err == nil:
			resolved = append(resolved, p.ID)
		case errors.Is(err, ErrAlreadyExecuted):
			// executed by another caller in between
		default:
			k.logger.WithField("id", p.ID).Errorf("execute proposal error: %s", err)
		}
	}
	return resolved, nil
}
