package vault

import (
	"math/big"
	"testing"
)

func TestConvertToSharesEmptyVaultIsOneToOne(t *testing.T) {
	got := convertToShares(big.NewInt(12345), big.NewInt(0), big.NewInt(0), false)
	if got.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("unexpected bootstrap conversion: %s", got)
	}
	got = convertToShares(big.NewInt(500), nil, nil, true)
	if got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected nil-totals conversion: %s", got)
	}
}

func TestConvertRoundingDirections(t *testing.T) {
	totalShares := big.NewInt(1000)
	totalAssets := big.NewInt(1001)

	down := convertToShares(big.NewInt(3), totalShares, totalAssets, false)
	up := convertToShares(big.NewInt(3), totalShares, totalAssets, true)
	if down.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("round down: got %s want 2", down)
	}
	if up.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("round up: got %s want 3", up)
	}

	down = convertToAssets(big.NewInt(3), totalShares, totalAssets, false)
	up = convertToAssets(big.NewInt(3), totalShares, totalAssets, true)
	if down.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("assets round down: got %s want 3", down)
	}
	if up.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("assets round up: got %s want 4", up)
	}
}

// Round-tripping an amount through both conversions must never pay out more
// than went in, regardless of the exchange rate.
func TestConversionRoundTripNeverFavorsCaller(t *testing.T) {
	cases := []struct {
		totalShares int64
		totalAssets int64
		amount      int64
	}{
		{1000, 1001, 7},
		{999, 1000, 13},
		{3, 10, 1},
		{1_000_000, 999_999, 12345},
		{7, 3, 5},
	}
	for _, tc := range cases {
		totalShares := big.NewInt(tc.totalShares)
		totalAssets := big.NewInt(tc.totalAssets)
		amount := big.NewInt(tc.amount)

		shares := convertToShares(amount, totalShares, totalAssets, false)
		back := convertToAssets(shares, totalShares, totalAssets, false)
		if back.Cmp(amount) > 0 {
			t.Fatalf("round trip gained value: %d/%d amount %d -> %s", tc.totalShares, tc.totalAssets, tc.amount, back)
		}
	}
}

func TestSharePrice(t *testing.T) {
	if got := sharePrice(big.NewInt(0), big.NewInt(5000)); got.Cmp(pricePrecision) != 0 {
		t.Fatalf("empty vault price: got %s want %s", got, pricePrecision)
	}
	want := new(big.Int).Mul(big.NewInt(2), pricePrecision)
	if got := sharePrice(big.NewInt(500), big.NewInt(1000)); got.Cmp(want) != 0 {
		t.Fatalf("unexpected price: got %s want %s", got, want)
	}
}

func TestFeePortionAndGrossUp(t *testing.T) {
	if got := feePortion(big.NewInt(10000), 100); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("fee portion: got %s want 100", got)
	}
	if got := feePortion(big.NewInt(10000), 0); got.Sign() != 0 {
		t.Fatalf("zero rate fee: got %s", got)
	}
	if got := grossUpFee(big.NewInt(9900), 100); got.Cmp(big.NewInt(10000)) != 0 {
		t.Fatalf("gross up: got %s want 10000", got)
	}
	if got := grossUpFee(big.NewInt(9900), 0); got.Cmp(big.NewInt(9900)) != 0 {
		t.Fatalf("zero rate gross up: got %s want 9900", got)
	}
	// Deducting the fee from the grossed-up amount recovers at least the net.
	for _, bps := range []uint16{1, 50, 100, 999, MaxFeeBps} {
		net := big.NewInt(123457)
		gross := grossUpFee(net, bps)
		recovered := new(big.Int).Sub(gross, feePortion(gross, bps))
		if recovered.Cmp(net) < 0 {
			t.Fatalf("gross up at %d bps loses value: net %s gross %s recovered %s", bps, net, gross, recovered)
		}
	}
}
