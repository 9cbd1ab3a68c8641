package vault

import (
	"math/big"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
	nativecommon "github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/common"
)

// Admission gating for the four operations. Deposits and mints are blocked by
// emergency mode, the whitelist, and the deposit caps; withdrawals and
// redemptions are only subject to the per-call withdrawal cap, so the circuit
// breaker can never trap funds.

// depositRemaining returns the gross asset headroom under the total deposit
// cap, or nil when the cap is disabled.
func depositRemaining(state *VaultState, totalAssets *big.Int) *big.Int {
	if state.DepositCap.Sign() == 0 {
		return nil
	}
	remaining := new(big.Int).Sub(state.DepositCap, totalAssets)
	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	return remaining
}

// checkDepositGate admits or rejects a gross (pre-fee) deposit amount for the
// receiver. On success it returns the receiver's updated cumulative deposit
// tally, which the caller persists together with the rest of the operation.
func (e *Engine) checkDepositGate(state *VaultState, receiver crypto.Address, grossAssets, totalAssets *big.Int) (*big.Int, error) {
	if state.EmergencyMode {
		return nil, ErrEmergencyMode
	}
	if state.WhitelistEnabled && !state.Whitelisted(receiver) {
		return nil, ErrNotWhitelisted
	}
	if remaining := depositRemaining(state, totalAssets); remaining != nil && grossAssets.Cmp(remaining) > 0 {
		return nil, ErrDepositCapExceeded
	}
	if state.PerAddressDepositCap.Sign() == 0 {
		return nil, nil
	}
	used, err := e.state.GetDepositedAssets(receiver)
	if err != nil {
		return nil, err
	}
	quota := nativecommon.AmountQuota{MaxAmount: state.PerAddressDepositCap}
	tally, err := nativecommon.CheckAmountQuota(quota, used, grossAssets)
	if err != nil {
		return nil, ErrDepositCapExceeded
	}
	return tally, nil
}

// checkWithdrawalCap enforces the per-call asset cap shared by withdraw and
// redeem. Emergency mode and the whitelist are deliberately not consulted.
func checkWithdrawalCap(state *VaultState, assets *big.Int) error {
	if state.WithdrawalCap.Sign() == 0 {
		return nil
	}
	if assets.Cmp(state.WithdrawalCap) > 0 {
		return ErrWithdrawalCapExceeded
	}
	return nil
}

// maxDepositLocked computes the largest gross deposit currently admissible
// for the receiver. A nil result means unlimited. The caller holds the engine
// mutex.
func (e *Engine) maxDepositLocked(state *VaultState, receiver crypto.Address, totalAssets *big.Int) (*big.Int, error) {
	if state.EmergencyMode {
		return big.NewInt(0), nil
	}
	if state.WhitelistEnabled && !state.Whitelisted(receiver) {
		return big.NewInt(0), nil
	}
	limit := depositRemaining(state, totalAssets)
	if state.PerAddressDepositCap.Sign() > 0 {
		used, err := e.state.GetDepositedAssets(receiver)
		if err != nil {
			return nil, err
		}
		quota := nativecommon.AmountQuota{MaxAmount: state.PerAddressDepositCap}
		headroom := nativecommon.RemainingAmount(quota, used)
		if limit == nil || headroom.Cmp(limit) < 0 {
			limit = headroom
		}
	}
	return limit, nil
}
