package core

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestWithdrawAccrual verifies a withdrawal pays min(tap * elapsed, balance).
func TestWithdrawAccrual(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("withdraw pays min(tap*elapsed, balance)", prop.ForAll(
		func(tap int64, elapsed uint64, contribution int64) bool {
			env := newTestEnv(t, newTestConfig(t))
			for _, addr := range []common.Address{alice, bob, carol} {
				if _, err := env.Contribute(addr, big.NewInt(contribution)); err != nil {
					return false
				}
			}
			env.clock.Set(testFundingEnd)
			env.raiseTap(t, tap)

			balance := env.Balance()
			start := env.LastWithdrawn()
			env.clock.Advance(elapsed)
			amount, err := env.Withdraw(owner)
			if err != nil {
				return false
			}

			expected := new(big.Int).Mul(big.NewInt(tap), new(big.Int).SetUint64(elapsed))
			if expected.Cmp(balance) > 0 {
				expected = balance
			}
			return amount.Cmp(expected) == 0 &&
				env.LastWithdrawn() == start+elapsed &&
				env.Balance().Cmp(new(big.Int).Sub(balance, expected)) == 0
		},
		gen.Int64Range(1, 1000),
		gen.UInt64Range(0, 100000),
		gen.Int64Range(1, 1000000),
	))

	properties.TestingRun(t)
}

// TestTapMonotonic verifies the tap never decreases whatever order passed
// proposals are executed in, and ends at the highest proposed tap.
func TestTapMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("tap is non-decreasing", prop.ForAll(
		func(taps []int64) bool {
			env := newFundedEnv(t)

			ids := make([]uint64, 0, len(taps))
			highest := int64(0)
			for _, tap := range taps {
				id, err := env.CreateProposal(alice, big.NewInt(tap), 10)
				if err != nil {
					return false
				}
				for _, voter := range []common.Address{alice, bob, carol} {
					if err := env.Vote(voter, id, true); err != nil {
						return false
					}
				}
				ids = append(ids, id)
				if tap > highest {
					highest = tap
				}
			}

			env.clock.Advance(11)
			prev := env.Tap()
			for _, id := range ids {
				if _, err := env.ExecuteProposal(outsider, id); err != nil {
					return false
				}
				current := env.Tap()
				if current.Cmp(prev) < 0 {
					return false
				}
				prev = current
			}
			return prev.Int64() == highest
		},
		gen.SliceOfN(8, gen.Int64Range(1, 500)),
	))

	properties.TestingRun(t)
}
