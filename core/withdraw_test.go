package core

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithdraw(t *testing.T) {
	env := newFundedEnv(t)
	env.raiseTap(t, 3)
	start := env.LastWithdrawn()

	env.clock.Advance(100)
	assert.EqualValues(t, 300, env.Owed().Int64())
	amount, err := env.Withdraw(owner)
	require.Nil(t, err)
	assert.EqualValues(t, 300, amount.Int64())
	assert.EqualValues(t, start+100, env.LastWithdrawn())
	assert.EqualValues(t, 3700, env.Balance().Int64())

	treasury := env.vault.(*Treasury)
	assert.EqualValues(t, 300, treasury.PaidTo(owner).Int64())

	// an immediate second call pays nothing and still resets the window
	amount, err = env.Withdraw(owner)
	require.Nil(t, err)
	assert.Equal(t, 0, amount.Sign())
	assert.EqualValues(t, start+100, env.LastWithdrawn())

	env.clock.Advance(1)
	amount, err = env.Withdraw(owner)
	require.Nil(t, err)
	assert.EqualValues(t, 3, amount.Int64())
	assert.EqualValues(t, start+101, env.LastWithdrawn())
}

func TestWithdrawZeroTap(t *testing.T) {
	env := newFundedEnv(t)
	env.clock.Advance(5000)

	amount, err := env.Withdraw(owner)
	require.Nil(t, err)
	assert.Equal(t, 0, amount.Sign())
	assert.EqualValues(t, testFundingEnd+5000, env.LastWithdrawn())
	assert.EqualValues(t, 4000, env.Balance().Int64())
}

func TestWithdrawCappedByBalance(t *testing.T) {
	env := newFundedEnv(t)
	env.raiseTap(t, 1000)

	env.clock.Advance(10)
	amount, err := env.Withdraw(owner)
	require.Nil(t, err)
	assert.EqualValues(t, 4000, amount.Int64())
	assert.Equal(t, 0, env.Balance().Sign())

	require.Nil(t, env.ReceiveFunds(outsider, big.NewInt(100)))
	env.clock.Advance(10)
	amount, err = env.Withdraw(owner)
	require.Nil(t, err)
	assert.EqualValues(t, 100, amount.Int64())
}

func TestWithdrawUnauthorized(t *testing.T) {
	env := newFundedEnv(t)
	env.raiseTap(t, 3)
	lastWithdrawn := env.LastWithdrawn()
	env.clock.Advance(100)

	_, err := env.Withdraw(alice)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, lastWithdrawn, env.LastWithdrawn())
	assert.EqualValues(t, 4000, env.Balance().Int64())
}

func TestWithdrawTransferFailure(t *testing.T) {
	var vault *failingVault
	env := newTestEnv(t, newTestConfig(t), func(d *DAICO) {
		vault = &failingVault{Treasury: NewTreasury(d.store)}
		d.vault = vault
	})
	for _, addr := range []common.Address{alice, bob, carol} {
		_, err := env.Contribute(addr, big.NewInt(1000))
		require.Nil(t, err)
	}
	env.clock.Set(testFundingEnd)
	env.raiseTap(t, 2)
	lastWithdrawn := env.LastWithdrawn()
	env.clock.Advance(50)

	vault.fail = true
	_, err := env.Withdraw(owner)
	assert.ErrorIs(t, err, ErrTransferFailure)
	assert.Equal(t, lastWithdrawn, env.LastWithdrawn())
	assert.EqualValues(t, 3000, env.Balance().Int64())

	vault.fail = false
	amount, err := env.Withdraw(owner)
	require.Nil(t, err)
	assert.EqualValues(t, 100, amount.Int64())
	assert.EqualValues(t, lastWithdrawn+50, env.LastWithdrawn())
}
