package staking

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Amount is a token quantity whose arithmetic fails instead of wrapping.
type Amount uint64

func (a Amount) Add(b Amount) (Amount, error) {
	sum := new(uint256.Int).Add(uint256.NewInt(uint64(a)), uint256.NewInt(uint64(b)))
	if !sum.IsUint64() {
		return 0, errors.Wrapf(ErrArithmeticOverflow, "%d + %d", a, b)
	}
	return Amount(sum.Uint64()), nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, errors.Wrapf(ErrArithmeticOverflow, "%d - %d", a, b)
	}
	return a - b, nil
}

// Reward is principal * rate * elapsed seconds. The product is formed in 256
// bits and only narrowed once, so no intermediate can wrap.
func Reward(principal, rate uint64, elapsed int64) (uint64, error) {
	if elapsed <= 0 || principal == 0 || rate == 0 {
		return 0, nil
	}
	product := new(uint256.Int).Mul(uint256.NewInt(principal), uint256.NewInt(rate))
	product.Mul(product, uint256.NewInt(uint64(elapsed)))
	if !product.IsUint64() {
		return 0, errors.Wrapf(ErrArithmeticOverflow, "reward %d*%d*%d", principal, rate, elapsed)
	}
	return product.Uint64(), nil
}

// accrue credits the rewards earned since the last accrual and moves the
// accrual time forward to now. A clock that reads earlier than the stored
// time earns nothing and leaves the stored time in place.
func (u *UserStake) accrue(rate uint64, now int64) error {
	reward, err := Reward(u.Amount, rate, now-u.LastAccrualTime)
	if err != nil {
		return err
	}
	pending, err := Amount(u.PendingRewards).Add(Amount(reward))
	if err != nil {
		return err
	}
	u.PendingRewards = uint64(pending)
	if now > u.LastAccrualTime {
		u.LastAccrualTime = now
	}
	return nil
}
