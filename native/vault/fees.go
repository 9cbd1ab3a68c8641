package vault

import (
	"math/big"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/events"
)

// feeAccrual is the outcome of evaluating management and performance fees for
// the time elapsed since the last collection.
type feeAccrual struct {
	managementFee  *big.Int
	performanceFee *big.Int
	// newHighWaterMark is non-nil when the share price cleared the mark
	// while the performance rate is nonzero. The mark ratchets to the
	// current price even when the fee itself floors to zero, so a tiny
	// gain is never charged twice.
	newHighWaterMark *big.Int
}

func (a feeAccrual) total() *big.Int {
	return new(big.Int).Add(a.managementFee, a.performanceFee)
}

// managementFeeFor prorates the management rate over elapsed seconds against
// the current asset base: assets * bps * elapsed / (secondsPerYear * 10000).
func managementFeeFor(totalAssets *big.Int, bps uint16, elapsed uint64) *big.Int {
	if totalAssets == nil || totalAssets.Sign() == 0 || bps == 0 || elapsed == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(totalAssets, new(big.Int).SetUint64(uint64(bps)))
	fee.Mul(fee, new(big.Int).SetUint64(elapsed))
	denom := new(big.Int).Mul(big.NewInt(SecondsPerYear), basisPoints)
	return fee.Quo(fee, denom)
}

// performanceFeeFor charges the configured rate on profit above the
// high-water mark. The returned price is the current share price; profit
// accrued while the rate is zero is never banked.
func performanceFeeFor(state *VaultState, totalAssets *big.Int) (fee, price *big.Int) {
	price = sharePrice(state.TotalShares, totalAssets)
	if state.Fees.PerformanceBps == 0 || price.Cmp(state.HighWaterMark) <= 0 {
		return big.NewInt(0), price
	}
	gain := new(big.Int).Sub(price, state.HighWaterMark)
	profit := new(big.Int).Mul(gain, state.TotalShares)
	profit.Quo(profit, pricePrecision)
	fee = new(big.Int).Mul(profit, new(big.Int).SetUint64(uint64(state.Fees.PerformanceBps)))
	fee.Quo(fee, basisPoints)
	return fee, price
}

// computeFeeAccrual evaluates both fee legs without mutating state. Callers
// must already have checked the collection window and non-empty totals.
func computeFeeAccrual(state *VaultState, totalAssets *big.Int, now uint64) feeAccrual {
	elapsed := now - state.LastFeeCollection
	accrual := feeAccrual{
		managementFee:  managementFeeFor(totalAssets, state.Fees.ManagementBps, elapsed),
		performanceFee: big.NewInt(0),
	}
	perfFee, price := performanceFeeFor(state, totalAssets)
	accrual.performanceFee = perfFee
	if state.Fees.PerformanceBps != 0 && price.Cmp(state.HighWaterMark) > 0 {
		accrual.newHighWaterMark = price
	}
	return accrual
}

// collectFeesLocked applies accrued fees to the vault. Fees are converted to
// shares at the pre-mint exchange rate and minted to the fee recipient,
// diluting existing holders while leaving the asset balance untouched. The
// caller holds the engine mutex and supplies the live asset balance.
//
// No-op paths: a collection inside MinCollectionInterval leaves the state
// untouched; an empty vault (no shares or no assets) merely advances
// lastFeeCollection.
func (e *Engine) collectFeesLocked(state *VaultState, totalAssets *big.Int, now uint64) (*big.Int, error) {
	minted := big.NewInt(0)
	if now <= state.LastFeeCollection || now-state.LastFeeCollection < MinCollectionInterval {
		return minted, nil
	}
	if state.TotalShares.Sign() == 0 || totalAssets == nil || totalAssets.Sign() == 0 {
		state.LastFeeCollection = now
		return minted, nil
	}

	accrual := computeFeeAccrual(state, totalAssets, now)
	totalFee := accrual.total()
	if totalFee.Sign() > 0 {
		minted = convertToShares(totalFee, state.TotalShares, totalAssets, false)
		if minted.Sign() > 0 {
			if err := e.shares.Mint(state.FeeRecipient, minted); err != nil {
				return nil, err
			}
			state.TotalShares = new(big.Int).Add(state.TotalShares, minted)
		}
	}
	if accrual.newHighWaterMark != nil {
		state.HighWaterMark = accrual.newHighWaterMark
	}
	state.LastFeeCollection = now

	if e.emitter != nil && (minted.Sign() > 0 || totalFee.Sign() > 0) {
		e.emitter.Emit(events.VaultFeesCollected{
			ManagementFee:  accrual.managementFee,
			PerformanceFee: accrual.performanceFee,
			SharesMinted:   minted,
			HighWaterMark:  new(big.Int).Set(state.HighWaterMark),
			CollectedAt:    now,
		})
	}
	return minted, nil
}

// PendingManagementFee reports the management fee an immediate CollectFees
// would charge. Inside the minimum collection window that collection is a
// no-op, so the view reports zero. It is a side-effect-free view.
func (e *Engine) PendingManagementFee() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	now := e.now()
	if now <= state.LastFeeCollection || now-state.LastFeeCollection < MinCollectionInterval {
		return big.NewInt(0), nil
	}
	totalAssets, err := e.totalAssets()
	if err != nil {
		return nil, err
	}
	if state.TotalShares.Sign() == 0 || totalAssets.Sign() == 0 {
		return big.NewInt(0), nil
	}
	return managementFeeFor(totalAssets, state.Fees.ManagementBps, now-state.LastFeeCollection), nil
}
