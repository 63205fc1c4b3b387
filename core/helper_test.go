package core

import (
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/daico/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const testFundingEnd = 1_000_000

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice    = common.HexToAddress("0x1100000000000000000000000000000000000001")
	bob      = common.HexToAddress("0x2200000000000000000000000000000000000002")
	carol    = common.HexToAddress("0x3300000000000000000000000000000000000003")
	dave     = common.HexToAddress("0x4400000000000000000000000000000000000004")
	outsider = common.HexToAddress("0xff000000000000000000000000000000000000ff")
	zeroAddr = common.Address{}
)

type manualClock struct {
	mu  sync.Mutex
	now uint64
}

func (c *manualClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(now uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *manualClock) Advance(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}

// failingVault is a treasury whose payouts can be switched off.
type failingVault struct {
	*Treasury
	fail bool
}

func (v *failingVault) Transfer(batch storage.Batch, to common.Address, amount *big.Int) error {
	if v.fail {
		return errors.New("payment rail down")
	}
	return v.Treasury.Transfer(batch, to, amount)
}

func newTestConfig(t *testing.T) *repo.Config {
	c := repo.DefaultConfig(t.TempDir())
	c.Owner = owner.Hex()
	c.FundingEnd = testFundingEnd
	c.Quorum = 3
	c.Log.Level = "error"
	return c
}

func openTestDB(t *testing.T, config *repo.Config) storage.Storage {
	db, err := leveldb.New(filepath.Join(config.RepoRoot, repo.StorageDirName))
	require.Nil(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

type testEnv struct {
	*DAICO
	clock  *manualClock
	config *repo.Config
	db     storage.Storage
}

func newTestEnv(t *testing.T, config *repo.Config, opts ...Option) *testEnv {
	db := openTestDB(t, config)
	clock := &manualClock{now: testFundingEnd - 1000}
	logger := log.New()
	logger.SetLevel(log.ParseLevel(config.Log.Level))

	opts = append([]Option{WithClock(clock), WithLogger(logger)}, opts...)
	d, err := NewDAICO(config, db, opts...)
	require.Nil(t, err)
	return &testEnv{DAICO: d, clock: clock, config: config, db: db}
}

// newFundedEnv contributes 1000 from alice, bob, carol and dave, then ends funding.
func newFundedEnv(t *testing.T, opts ...Option) *testEnv {
	env := newTestEnv(t, newTestConfig(t), opts...)
	for _, addr := range []common.Address{alice, bob, carol, dave} {
		_, err := env.Contribute(addr, big.NewInt(1000))
		require.Nil(t, err)
	}
	env.clock.Set(testFundingEnd)
	return env
}

// raiseTap passes a proposal for tap with alice, bob and carol in favor.
func (env *testEnv) raiseTap(t *testing.T, tap int64) {
	id, err := env.CreateProposal(alice, big.NewInt(tap), 100)
	require.Nil(t, err)
	for _, voter := range []common.Address{alice, bob, carol} {
		require.Nil(t, env.Vote(voter, id, true))
	}
	env.clock.Advance(101)
	passed, err := env.ExecuteProposal(outsider, id)
	require.Nil(t, err)
	require.True(t, passed)
}
