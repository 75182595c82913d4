package staking

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReward(t *testing.T) {
	tests := []struct {
		name      string
		principal uint64
		rate      uint64
		elapsed   int64
		want      uint64
	}{
		{"simple", 100, 2, 100, 20_000},
		{"no time", 100, 2, 0, 0},
		{"clock behind", 100, 2, -50, 0},
		{"no principal", 0, 2, 100, 0},
		{"no rate", 100, 0, 100, 0},
		{"fits exactly", math.MaxUint64, 1, 1, math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reward(tt.principal, tt.rate, tt.elapsed)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestReward_Overflow(t *testing.T) {
	_, err := Reward(math.MaxUint64, 2, 1)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	// Each factor fits but the product does not.
	_, err = Reward(1<<30, 1<<20, 1<<20)
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestAccrue_SegmentsSumToWhole(t *testing.T) {
	whole := &UserStake{Amount: 75, LastAccrualTime: 1000}
	require.NoError(t, whole.accrue(3, 1900))

	split := &UserStake{Amount: 75, LastAccrualTime: 1000}
	for _, now := range []int64{1001, 1250, 1250, 1600, 1899, 1900} {
		require.NoError(t, split.accrue(3, now))
	}

	require.Equal(t, whole, split)
	require.Equal(t, uint64(75*3*900), whole.PendingRewards)
}

func TestAccrue_Monotonic(t *testing.T) {
	position := &UserStake{Amount: 10, PendingRewards: 5, LastAccrualTime: 500}
	require.NoError(t, position.accrue(1, 400))
	require.Equal(t, &UserStake{Amount: 10, PendingRewards: 5, LastAccrualTime: 500}, position)
}

func TestAccrue_PendingOverflow(t *testing.T) {
	position := &UserStake{Amount: 1, PendingRewards: math.MaxUint64, LastAccrualTime: 0}
	require.ErrorIs(t, position.accrue(1, 1), ErrArithmeticOverflow)
}

func TestAmount(t *testing.T) {
	sum, err := Amount(40).Add(2)
	require.NoError(t, err)
	require.Equal(t, Amount(42), sum)

	_, err = Amount(math.MaxUint64).Add(1)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	diff, err := Amount(42).Sub(42)
	require.NoError(t, err)
	require.Zero(t, diff)

	_, err = Amount(1).Sub(2)
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}
