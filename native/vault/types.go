package vault

import (
	"math/big"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
)

const (
	// BpsDenominator is the basis-point denominator: 10000 bps = 100%.
	BpsDenominator = 10_000
	// MaxFeeBps caps every configurable fee rate at 20%.
	MaxFeeBps = 2_000
	// MinCollectionInterval is the minimum number of seconds between two
	// effective fee collections. Calls inside the window are no-ops.
	MinCollectionInterval = 3_600
	// SecondsPerYear is the annualisation basis for the management fee.
	SecondsPerYear = 365 * 24 * 3_600
)

var (
	basisPoints = big.NewInt(BpsDenominator)
	// pricePrecision scales share prices: assets per share times 1e18.
	pricePrecision = big.NewInt(1_000_000_000_000_000_000)
)

// FeeRates groups the four configurable fee rates, each expressed in basis
// points and bounded by MaxFeeBps.
type FeeRates struct {
	DepositBps     uint16
	WithdrawalBps  uint16
	ManagementBps  uint16
	PerformanceBps uint16
}

// Valid reports whether every rate is within the permitted bound.
func (r FeeRates) Valid() bool {
	return r.DepositBps <= MaxFeeBps &&
		r.WithdrawalBps <= MaxFeeBps &&
		r.ManagementBps <= MaxFeeBps &&
		r.PerformanceBps <= MaxFeeBps
}

// VaultState is the accounting singleton for one vault instance. Total assets
// are deliberately absent: they are always read live from the asset ledger's
// balance of the vault account.
type VaultState struct {
	// TotalShares is the sum of all share balances. It is mutated only by
	// mint and burn and must always equal the sum over the share ledger.
	TotalShares *big.Int
	// FeeRecipient receives deposit/withdrawal fees in assets and
	// management/performance fees as newly minted shares. Never the zero
	// address.
	FeeRecipient crypto.Address
	// Fees holds the four configured rates.
	Fees FeeRates
	// LastFeeCollection is the unix timestamp of the last effective fee
	// collection. Non-decreasing.
	LastFeeCollection uint64
	// HighWaterMark is the highest share price (scaled by 1e18) at which
	// performance fees were last charged. Non-decreasing.
	HighWaterMark *big.Int
	// DepositCap bounds total assets held by the vault. Zero disables it.
	DepositCap *big.Int
	// PerAddressDepositCap bounds the cumulative gross assets a single
	// receiver may deposit. Zero disables it.
	PerAddressDepositCap *big.Int
	// WithdrawalCap bounds the asset amount of a single withdraw or the
	// asset value of a single redeem. Zero disables it.
	WithdrawalCap *big.Int
	// WhitelistEnabled gates deposits and mints on whitelist membership.
	WhitelistEnabled bool
	// Whitelist is keyed by the raw 20-byte address.
	Whitelist map[string]bool
	// EmergencyMode is the circuit breaker: it zeroes deposit/mint
	// admission while leaving withdrawals untouched.
	EmergencyMode bool
}

// Normalize replaces nil big integer fields and the whitelist map with zero
// values so callers never need nil checks.
func (s *VaultState) Normalize() {
	if s.TotalShares == nil {
		s.TotalShares = big.NewInt(0)
	}
	if s.HighWaterMark == nil {
		s.HighWaterMark = big.NewInt(0)
	}
	if s.DepositCap == nil {
		s.DepositCap = big.NewInt(0)
	}
	if s.PerAddressDepositCap == nil {
		s.PerAddressDepositCap = big.NewInt(0)
	}
	if s.WithdrawalCap == nil {
		s.WithdrawalCap = big.NewInt(0)
	}
	if s.Whitelist == nil {
		s.Whitelist = make(map[string]bool)
	}
}

// Clone returns a deep copy of the vault state.
func (s *VaultState) Clone() *VaultState {
	if s == nil {
		return nil
	}
	clone := &VaultState{
		FeeRecipient:      s.FeeRecipient,
		Fees:              s.Fees,
		LastFeeCollection: s.LastFeeCollection,
		WhitelistEnabled:  s.WhitelistEnabled,
		EmergencyMode:     s.EmergencyMode,
	}
	if s.TotalShares != nil {
		clone.TotalShares = new(big.Int).Set(s.TotalShares)
	}
	if s.HighWaterMark != nil {
		clone.HighWaterMark = new(big.Int).Set(s.HighWaterMark)
	}
	if s.DepositCap != nil {
		clone.DepositCap = new(big.Int).Set(s.DepositCap)
	}
	if s.PerAddressDepositCap != nil {
		clone.PerAddressDepositCap = new(big.Int).Set(s.PerAddressDepositCap)
	}
	if s.WithdrawalCap != nil {
		clone.WithdrawalCap = new(big.Int).Set(s.WithdrawalCap)
	}
	if s.Whitelist != nil {
		clone.Whitelist = make(map[string]bool, len(s.Whitelist))
		for k, v := range s.Whitelist {
			clone.Whitelist[k] = v
		}
	}
	return clone
}

// Whitelisted reports whether the address is a whitelist member. Membership
// is only consulted when WhitelistEnabled is set.
func (s *VaultState) Whitelisted(addr crypto.Address) bool {
	if s == nil || len(s.Whitelist) == 0 {
		return false
	}
	return s.Whitelist[string(addr.Bytes())]
}

// NewVaultState initialises the accounting singleton at vault creation time.
// Fee rates are validated against MaxFeeBps and the recipient must be a
// non-zero address. The high-water mark starts at zero so the first
// profitable collection establishes it.
func NewVaultState(recipient crypto.Address, rates FeeRates, now uint64) (*VaultState, error) {
	if recipient.IsZero() {
		return nil, errNilFeeRecipient
	}
	if !rates.Valid() {
		return nil, errFeeExceedsMax
	}
	state := &VaultState{
		FeeRecipient:      recipient,
		Fees:              rates,
		LastFeeCollection: now,
	}
	state.Normalize()
	return state, nil
}
