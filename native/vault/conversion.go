package vault

import "math/big"

// Conversion math between assets and shares. All rounding is in the vault's
// favor: callers spending a quantity to obtain a target output are rounded
// up, callers whose output is computed from an input they give up are rounded
// down.

// mulDiv computes a*b/denom with the requested rounding direction. denom must
// be positive; callers guarantee this by never converting against an empty
// vault.
func mulDiv(a, b, denom *big.Int, roundUp bool) *big.Int {
	product := new(big.Int).Mul(a, b)
	if roundUp {
		product.Add(product, new(big.Int).Sub(denom, big.NewInt(1)))
	}
	return product.Quo(product, denom)
}

// convertToShares converts an asset amount into shares given the current
// totals. An empty vault converts 1:1 to bootstrap the share supply.
func convertToShares(assets, totalShares, totalAssets *big.Int, roundUp bool) *big.Int {
	if assets == nil || assets.Sign() == 0 {
		return big.NewInt(0)
	}
	if totalShares == nil || totalShares.Sign() == 0 || totalAssets == nil || totalAssets.Sign() == 0 {
		return new(big.Int).Set(assets)
	}
	return mulDiv(assets, totalShares, totalAssets, roundUp)
}

// convertToAssets converts a share amount into assets given the current
// totals. With no shares outstanding the amount passes through unchanged.
func convertToAssets(shares, totalShares, totalAssets *big.Int, roundUp bool) *big.Int {
	if shares == nil || shares.Sign() == 0 {
		return big.NewInt(0)
	}
	if totalShares == nil || totalShares.Sign() == 0 {
		return new(big.Int).Set(shares)
	}
	if totalAssets == nil {
		totalAssets = big.NewInt(0)
	}
	return mulDiv(shares, totalAssets, totalShares, roundUp)
}

// sharePrice returns assets per share scaled by 1e18, defaulting to exactly
// 1e18 when no shares are outstanding.
func sharePrice(totalShares, totalAssets *big.Int) *big.Int {
	if totalShares == nil || totalShares.Sign() == 0 {
		return new(big.Int).Set(pricePrecision)
	}
	if totalAssets == nil {
		totalAssets = big.NewInt(0)
	}
	price := new(big.Int).Mul(totalAssets, pricePrecision)
	return price.Quo(price, totalShares)
}
