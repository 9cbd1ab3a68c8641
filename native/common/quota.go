package common

import (
	"errors"
	"math/big"
)

var ErrQuotaAmountExceeded = errors.New("quota amount exceeded")

// AmountQuota caps the cumulative amount an address may move through a
// module. A nil or zero MaxAmount disables the quota.
type AmountQuota struct {
	MaxAmount *big.Int
}

// Enabled reports whether the quota enforces a limit.
func (q AmountQuota) Enabled() bool {
	return q.MaxAmount != nil && q.MaxAmount.Sign() > 0
}

// CheckAmountQuota verifies that the additional amount fits within the quota
// given the tally already used. The returned value is the updated tally when
// the quota is not exceeded; on rejection the previous tally is returned
// untouched.
func CheckAmountQuota(q AmountQuota, used, add *big.Int) (*big.Int, error) {
	if used == nil {
		used = big.NewInt(0)
	}
	if add == nil || add.Sign() <= 0 {
		return used, nil
	}
	next := new(big.Int).Add(used, add)
	if q.Enabled() && next.Cmp(q.MaxAmount) > 0 {
		return used, ErrQuotaAmountExceeded
	}
	return next, nil
}

// RemainingAmount returns the headroom left under the quota, or nil when the
// quota is disabled (unlimited).
func RemainingAmount(q AmountQuota, used *big.Int) *big.Int {
	if !q.Enabled() {
		return nil
	}
	if used == nil {
		return new(big.Int).Set(q.MaxAmount)
	}
	remaining := new(big.Int).Sub(q.MaxAmount, used)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	return remaining
}
