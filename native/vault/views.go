package vault

import (
	"math/big"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
)

// Side-effect-free views. Previews mirror the mutating operations' math
// exactly on the current state; max queries report 0 or the capped remainder
// instead of erroring.

// State returns a defensive copy of the vault accounting singleton.
func (e *Engine) State() (*VaultState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// TotalAssets reads the vault's live balance on the asset ledger.
func (e *Engine) TotalAssets() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.assets == nil {
		return nil, errNilLedger
	}
	return e.totalAssets()
}

// FeeRates returns the currently configured fee rates.
func (e *Engine) FeeRates() (FeeRates, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, err := e.loadState()
	if err != nil {
		return FeeRates{}, err
	}
	return state.Fees, nil
}

// ShareValue returns assets per share scaled by 1e18; exactly 1e18 when no
// shares are outstanding.
func (e *Engine) ShareValue() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	totalAssets, err := e.totalAssets()
	if err != nil {
		return nil, err
	}
	return sharePrice(state.TotalShares, totalAssets), nil
}

// ConvertToShares converts assets into shares at the current exchange rate,
// rounding down.
func (e *Engine) ConvertToShares(assets *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, totalAssets, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	return convertToShares(assets, state.TotalShares, totalAssets, false), nil
}

// ConvertToAssets converts shares into assets at the current exchange rate,
// rounding down.
func (e *Engine) ConvertToAssets(shares *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, totalAssets, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	return convertToAssets(shares, state.TotalShares, totalAssets, false), nil
}

// MaxDeposit reports the largest gross asset deposit the receiver may make.
// A nil result means unlimited.
func (e *Engine) MaxDeposit(receiver crypto.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, totalAssets, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	return e.maxDepositLocked(state, receiver, totalAssets)
}

// MaxMint reports the largest share amount mintable for the receiver given
// the asset headroom. A nil result means unlimited.
func (e *Engine) MaxMint(receiver crypto.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, totalAssets, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	limit, err := e.maxDepositLocked(state, receiver, totalAssets)
	if err != nil {
		return nil, err
	}
	if limit == nil {
		return nil, nil
	}
	fee := feePortion(limit, state.Fees.DepositBps)
	net := new(big.Int).Sub(limit, fee)
	return convertToShares(net, state.TotalShares, totalAssets, false), nil
}

// MaxWithdraw reports the largest net asset amount the owner can withdraw,
// bounded by their share balance and the per-call withdrawal cap.
func (e *Engine) MaxWithdraw(owner crypto.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, totalAssets, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	balance, err := e.shares.SharesOf(owner)
	if err != nil {
		return nil, err
	}
	gross := convertToAssets(balance, state.TotalShares, totalAssets, false)
	fee := feePortion(gross, state.Fees.WithdrawalBps)
	net := new(big.Int).Sub(gross, fee)
	if state.WithdrawalCap.Sign() > 0 && net.Cmp(state.WithdrawalCap) > 0 {
		net = new(big.Int).Set(state.WithdrawalCap)
	}
	return net, nil
}

// MaxRedeem reports the largest share amount the owner can redeem, bounded by
// their balance and the share equivalent of the withdrawal cap.
func (e *Engine) MaxRedeem(owner crypto.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, totalAssets, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	balance, err := e.shares.SharesOf(owner)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	max := new(big.Int).Set(balance)
	if state.WithdrawalCap.Sign() > 0 {
		capShares := convertToShares(state.WithdrawalCap, state.TotalShares, totalAssets, false)
		if max.Cmp(capShares) > 0 {
			max = capShares
		}
	}
	return max, nil
}

// PreviewDeposit returns the shares a deposit of the given gross assets would
// mint, after the deposit fee, rounding down.
func (e *Engine) PreviewDeposit(assets *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if assets == nil || assets.Sign() < 0 {
		return nil, errInvalidAmount
	}
	state, totalAssets, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	fee := feePortion(assets, state.Fees.DepositBps)
	net := new(big.Int).Sub(assets, fee)
	return convertToShares(net, state.TotalShares, totalAssets, false), nil
}

// PreviewMint returns the gross assets required to mint the given shares,
// rounding the net cost up.
func (e *Engine) PreviewMint(shares *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if shares == nil || shares.Sign() < 0 {
		return nil, errInvalidAmount
	}
	state, totalAssets, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	net := convertToAssets(shares, state.TotalShares, totalAssets, true)
	return grossUpFee(net, state.Fees.DepositBps), nil
}

// PreviewWithdraw returns the shares burned to withdraw the given net assets,
// rounding up.
func (e *Engine) PreviewWithdraw(assets *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if assets == nil || assets.Sign() < 0 {
		return nil, errInvalidAmount
	}
	state, totalAssets, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	gross := grossUpFee(assets, state.Fees.WithdrawalBps)
	return convertToShares(gross, state.TotalShares, totalAssets, true), nil
}

// PreviewRedeem returns the net assets paid for redeeming the given shares,
// rounding down.
func (e *Engine) PreviewRedeem(shares *big.Int) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if shares == nil || shares.Sign() < 0 {
		return nil, errInvalidAmount
	}
	state, totalAssets, err := e.loadTotals()
	if err != nil {
		return nil, err
	}
	gross := convertToAssets(shares, state.TotalShares, totalAssets, false)
	fee := feePortion(gross, state.Fees.WithdrawalBps)
	return new(big.Int).Sub(gross, fee), nil
}

func (e *Engine) loadTotals() (*VaultState, *big.Int, error) {
	state, err := e.loadState()
	if err != nil {
		return nil, nil, err
	}
	totalAssets, err := e.totalAssets()
	if err != nil {
		return nil, nil, err
	}
	return state, totalAssets, nil
}
