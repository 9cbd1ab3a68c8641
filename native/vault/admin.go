package vault

import (
	"math/big"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/events"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
)

// Administrative setters. Every setter is gated by the Authorizer and rejects
// before any state change. The management and performance setters collect
// fees first so the rate change never applies retroactively to time already
// elapsed.

func (e *Engine) requireAuthorized(caller crypto.Address) error {
	if e.auth == nil || !e.auth.IsAuthorized(caller) {
		return ErrNotAuthorized
	}
	return nil
}

func (e *Engine) SetDepositFee(caller crypto.Address, bps uint16) error {
	return e.setFeeRate(caller, "deposit", bps, false, func(s *VaultState) { s.Fees.DepositBps = bps })
}

func (e *Engine) SetWithdrawalFee(caller crypto.Address, bps uint16) error {
	return e.setFeeRate(caller, "withdrawal", bps, false, func(s *VaultState) { s.Fees.WithdrawalBps = bps })
}

func (e *Engine) SetManagementFee(caller crypto.Address, bps uint16) error {
	return e.setFeeRate(caller, "management", bps, true, func(s *VaultState) { s.Fees.ManagementBps = bps })
}

func (e *Engine) SetPerformanceFee(caller crypto.Address, bps uint16) error {
	return e.setFeeRate(caller, "performance", bps, true, func(s *VaultState) { s.Fees.PerformanceBps = bps })
}

func (e *Engine) setFeeRate(caller crypto.Address, kind string, bps uint16, collectFirst bool, apply func(*VaultState)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if bps > MaxFeeBps {
		return errFeeExceedsMax
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	snap := e.state.Snapshot()
	if collectFirst {
		totalAssets, err := e.totalAssets()
		if err != nil {
			return err
		}
		if _, err := e.collectFeesLocked(state, totalAssets, e.now()); err != nil {
			e.state.RevertToSnapshot(snap)
			return err
		}
	}
	apply(state)
	if err := e.state.PutVault(state); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	if e.emitter != nil {
		e.emitter.Emit(events.VaultFeeRateUpdated{Kind: kind, Bps: bps})
	}
	return nil
}

// SetFeeRecipient rotates the fee recipient. The zero address is rejected.
func (e *Engine) SetFeeRecipient(caller, recipient crypto.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if recipient.IsZero() {
		return errNilFeeRecipient
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	state.FeeRecipient = recipient
	if err := e.state.PutVault(state); err != nil {
		return err
	}
	if e.emitter != nil {
		e.emitter.Emit(events.VaultFeeRecipientUpdated{Recipient: recipient})
	}
	return nil
}

// SetDepositCap bounds total vault assets. Zero disables the cap.
func (e *Engine) SetDepositCap(caller crypto.Address, cap *big.Int) error {
	return e.setCap(caller, "deposit", cap, func(s *VaultState, c *big.Int) { s.DepositCap = c })
}

// SetPerAddressDepositCap bounds each receiver's cumulative gross deposits.
// Zero disables the cap.
func (e *Engine) SetPerAddressDepositCap(caller crypto.Address, cap *big.Int) error {
	return e.setCap(caller, "per_address_deposit", cap, func(s *VaultState, c *big.Int) { s.PerAddressDepositCap = c })
}

// SetWithdrawalCap bounds single withdraw/redeem calls. Zero disables the cap.
func (e *Engine) SetWithdrawalCap(caller crypto.Address, cap *big.Int) error {
	return e.setCap(caller, "withdrawal", cap, func(s *VaultState, c *big.Int) { s.WithdrawalCap = c })
}

func (e *Engine) setCap(caller crypto.Address, kind string, cap *big.Int, apply func(*VaultState, *big.Int)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if cap == nil {
		cap = big.NewInt(0)
	}
	if cap.Sign() < 0 {
		return errInvalidAmount
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	apply(state, new(big.Int).Set(cap))
	if err := e.state.PutVault(state); err != nil {
		return err
	}
	if e.emitter != nil {
		e.emitter.Emit(events.VaultCapUpdated{Kind: kind, Cap: cap})
	}
	return nil
}

// SetWhitelistEnabled toggles whitelist gating for deposits and mints.
func (e *Engine) SetWhitelistEnabled(caller crypto.Address, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	state.WhitelistEnabled = enabled
	if err := e.state.PutVault(state); err != nil {
		return err
	}
	if e.emitter != nil {
		e.emitter.Emit(events.VaultWhitelistUpdated{Enabled: enabled, Toggle: true})
	}
	return nil
}

// UpdateWhitelist adds or removes a whitelist member.
func (e *Engine) UpdateWhitelist(caller, member crypto.Address, allowed bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	if member.IsZero() {
		return errZeroAddress
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	key := string(member.Bytes())
	if allowed {
		state.Whitelist[key] = true
	} else {
		delete(state.Whitelist, key)
	}
	if err := e.state.PutVault(state); err != nil {
		return err
	}
	if e.emitter != nil {
		e.emitter.Emit(events.VaultWhitelistUpdated{Account: member, Added: allowed})
	}
	return nil
}

// SetEmergencyMode flips the circuit breaker. Active emergency mode blocks
// deposits and mints; withdrawals and redemptions continue.
func (e *Engine) SetEmergencyMode(caller crypto.Address, active bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireAuthorized(caller); err != nil {
		return err
	}
	state, err := e.loadState()
	if err != nil {
		return err
	}
	state.EmergencyMode = active
	if err := e.state.PutVault(state); err != nil {
		return err
	}
	if e.emitter != nil {
		e.emitter.Emit(events.VaultEmergencyMode{Active: active})
	}
	return nil
}
