package types

import "math/big"

// Account tracks the two balances every vault participant carries: the
// underlying asset balance on the external token ledger and the vault share
// balance. DepositedAssets records the cumulative gross assets the account has
// deposited, used when a per-address deposit cap is configured.
type Account struct {
	Nonce           uint64   `json:"nonce"`
	AssetBalance    *big.Int `json:"assetBalance"`
	ShareBalance    *big.Int `json:"shareBalance"`
	DepositedAssets *big.Int `json:"depositedAssets"`
}

// Normalize replaces nil balance pointers with zero values so callers can
// operate on the account without nil checks.
func (a *Account) Normalize() {
	if a.AssetBalance == nil {
		a.AssetBalance = big.NewInt(0)
	}
	if a.ShareBalance == nil {
		a.ShareBalance = big.NewInt(0)
	}
	if a.DepositedAssets == nil {
		a.DepositedAssets = big.NewInt(0)
	}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce}
	if a.AssetBalance != nil {
		clone.AssetBalance = new(big.Int).Set(a.AssetBalance)
	}
	if a.ShareBalance != nil {
		clone.ShareBalance = new(big.Int).Set(a.ShareBalance)
	}
	if a.DepositedAssets != nil {
		clone.DepositedAssets = new(big.Int).Set(a.DepositedAssets)
	}
	return clone
}
