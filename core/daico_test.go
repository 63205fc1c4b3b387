package core

import (
	"math/big"
	"testing"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDAICO(t *testing.T) {
	env := newTestEnv(t, newTestConfig(t))

	assert.Equal(t, 0, env.Tap().Sign())
	assert.EqualValues(t, testFundingEnd, env.LastWithdrawn())
	assert.Equal(t, Funding, env.Phase())
	assert.Equal(t, owner, env.Owner())
	assert.EqualValues(t, 3, env.Quorum())
	assert.Equal(t, OneAddressOneVote, env.VotePolicy())
	assert.EqualValues(t, 0, env.ProposalCount())
}

func TestNewDAICOInvalidConfig(t *testing.T) {
	config := newTestConfig(t)
	config.Owner = "owner"
	_, err := NewDAICO(config, openTestDB(t, config))
	assert.NotNil(t, err)
}

func TestReopenDeployment(t *testing.T) {
	config := newTestConfig(t)
	env := newTestEnv(t, config)
	_, err := env.Contribute(alice, big.NewInt(500))
	require.Nil(t, err)
	env.clock.Set(testFundingEnd)
	id, err := env.CreateProposal(alice, big.NewInt(5), 60)
	require.Nil(t, err)
	require.Nil(t, env.Vote(alice, id, true))

	reopened, err := NewDAICO(config, env.db, WithClock(env.clock), WithLogger(log.New()))
	require.Nil(t, err)
	assert.EqualValues(t, 1, reopened.ProposalCount())
	assert.EqualValues(t, 500, reopened.Balance().Int64())
	assert.EqualValues(t, 500, reopened.BalanceOf(alice).Int64())
	p, err := reopened.Proposal(id)
	require.Nil(t, err)
	assert.EqualValues(t, 1, p.NumberOfVotes.Int64())
	assert.EqualValues(t, 1, p.PositiveVotes.Int64())

	changed := *config
	changed.Quorum = 10
	_, err = NewDAICO(&changed, env.db, WithClock(env.clock), WithLogger(log.New()))
	assert.NotNil(t, err)
}

func TestPhaseBoundary(t *testing.T) {
	env := newTestEnv(t, newTestConfig(t))
	_, err := env.Contribute(alice, big.NewInt(1000))
	require.Nil(t, err)

	env.clock.Set(testFundingEnd - 1)
	assert.Equal(t, Funding, env.Phase())
	_, err = env.Withdraw(owner)
	assert.ErrorIs(t, err, ErrWrongPhase)
	_, err = env.CreateProposal(alice, big.NewInt(10), 60)
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.EqualValues(t, testFundingEnd, env.LastWithdrawn())
	assert.EqualValues(t, 0, env.ProposalCount())

	env.clock.Set(testFundingEnd)
	assert.Equal(t, Operational, env.Phase())
	amount, err := env.Withdraw(owner)
	require.Nil(t, err)
	assert.Equal(t, 0, amount.Sign())
	_, err = env.CreateProposal(alice, big.NewInt(10), 60)
	assert.Nil(t, err)

	_, err = env.Contribute(bob, big.NewInt(1000))
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestCloseFunding(t *testing.T) {
	env := newTestEnv(t, newTestConfig(t))
	for _, addr := range []common.Address{alice, bob, carol} {
		_, err := env.Contribute(addr, big.NewInt(1000))
		require.Nil(t, err)
	}

	assert.ErrorIs(t, env.CloseFunding(alice), ErrUnauthorized)
	assert.Equal(t, Funding, env.Phase())

	require.Nil(t, env.CloseFunding(owner))
	assert.Equal(t, Operational, env.Phase())
	assert.ErrorIs(t, env.CloseFunding(owner), ErrWrongPhase)

	_, err := env.Contribute(dave, big.NewInt(1000))
	assert.ErrorIs(t, err, ErrWrongPhase)

	// nothing accrues before the configured funding end
	env.raiseTap(t, 1)
	assert.EqualValues(t, 1, env.Tap().Int64())
	assert.EqualValues(t, testFundingEnd, env.LastWithdrawn())
	assert.Equal(t, 0, env.Owed().Sign())
	amount, err := env.Withdraw(owner)
	require.Nil(t, err)
	assert.Equal(t, 0, amount.Sign())
	assert.EqualValues(t, testFundingEnd, env.LastWithdrawn())
	assert.EqualValues(t, 3000, env.Balance().Int64())

	// accrual starts at the configured funding end
	env.clock.Set(testFundingEnd + 10)
	amount, err = env.Withdraw(owner)
	require.Nil(t, err)
	assert.EqualValues(t, 10, amount.Int64())
	assert.EqualValues(t, testFundingEnd+10, env.LastWithdrawn())
}

func TestContribute(t *testing.T) {
	config := newTestConfig(t)
	config.TokenRate = 50
	env := newTestEnv(t, config)

	tokens, err := env.Contribute(alice, big.NewInt(20))
	require.Nil(t, err)
	assert.EqualValues(t, 1000, tokens.Int64())
	assert.EqualValues(t, 1000, env.BalanceOf(alice).Int64())
	assert.EqualValues(t, 20, env.Balance().Int64())

	_, err = env.Contribute(alice, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = env.Contribute(alice, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	status := env.Status()
	assert.Equal(t, Funding, status.Phase)
	assert.EqualValues(t, 1000, status.TotalSupply.Int64())
	assert.EqualValues(t, 20, status.Balance.Int64())
}

func TestTokenPlumbing(t *testing.T) {
	env := newFundedEnv(t)

	require.Nil(t, env.TransferTokens(alice, outsider, big.NewInt(1000)))
	assert.Equal(t, 0, env.BalanceOf(alice).Sign())
	assert.EqualValues(t, 1000, env.BalanceOf(outsider).Int64())
	assert.ErrorIs(t, env.TransferTokens(alice, bob, big.NewInt(1)), ErrInsufficientBalance)

	// eligibility follows the tokens
	_, err := env.CreateProposal(alice, big.NewInt(10), 60)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.CreateProposal(outsider, big.NewInt(10), 60)
	assert.Nil(t, err)

	require.Nil(t, env.ApplyTokenTransfer(zeroAddr, alice, big.NewInt(7)))
	require.Nil(t, env.ApplyTokenTransfer(bob, zeroAddr, big.NewInt(1000)))
	assert.EqualValues(t, 7, env.BalanceOf(alice).Int64())
	assert.Equal(t, 0, env.BalanceOf(bob).Sign())
	assert.EqualValues(t, 3007, env.Status().TotalSupply.Int64())

	require.Nil(t, env.ReceiveFunds(outsider, big.NewInt(500)))
	assert.EqualValues(t, 4500, env.Balance().Int64())
	assert.ErrorIs(t, env.ReceiveFunds(outsider, big.NewInt(0)), ErrInvalidAmount)
}
