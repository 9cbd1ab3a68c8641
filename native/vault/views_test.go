package vault

import (
	"math/big"
	"testing"
)

func TestPreviewDepositMatchesExecution(t *testing.T) {
	env := newTestEnv(t, FeeRates{DepositBps: 100})
	mustDeposit(t, env, env.bob, 3333)

	previewed, err := env.engine.PreviewDeposit(big.NewInt(7777))
	if err != nil {
		t.Fatalf("preview deposit: %v", err)
	}
	env.ledger.credit(env.alice, 7777)
	shares, err := env.engine.Deposit(env.alice, big.NewInt(7777), env.alice)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if previewed.Cmp(shares) != 0 {
		t.Fatalf("preview %s != execution %s", previewed, shares)
	}
}

func TestPreviewMintMatchesExecution(t *testing.T) {
	env := newTestEnv(t, FeeRates{DepositBps: 100})
	mustDeposit(t, env, env.bob, 3333)

	previewed, err := env.engine.PreviewMint(big.NewInt(2500))
	if err != nil {
		t.Fatalf("preview mint: %v", err)
	}
	env.ledger.credit(env.alice, previewed.Int64())
	assets, err := env.engine.Mint(env.alice, big.NewInt(2500), env.alice)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if previewed.Cmp(assets) != 0 {
		t.Fatalf("preview %s != execution %s", previewed, assets)
	}
}

func TestPreviewWithdrawAndRedeemMatchExecution(t *testing.T) {
	env := newTestEnv(t, FeeRates{WithdrawalBps: 75})
	mustDeposit(t, env, env.alice, 10000)
	env.ledger.credit(env.engine.VaultAddress(), 501)

	previewedShares, err := env.engine.PreviewWithdraw(big.NewInt(1234))
	if err != nil {
		t.Fatalf("preview withdraw: %v", err)
	}
	shares, err := env.engine.Withdraw(env.alice, big.NewInt(1234), env.alice, env.alice)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if previewedShares.Cmp(shares) != 0 {
		t.Fatalf("withdraw preview %s != execution %s", previewedShares, shares)
	}

	previewedAssets, err := env.engine.PreviewRedeem(big.NewInt(2000))
	if err != nil {
		t.Fatalf("preview redeem: %v", err)
	}
	assets, err := env.engine.Redeem(env.alice, big.NewInt(2000), env.alice, env.alice)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if previewedAssets.Cmp(assets) != 0 {
		t.Fatalf("redeem preview %s != execution %s", previewedAssets, assets)
	}
}

func TestPreviewRejectsNilAmount(t *testing.T) {
	env := newTestEnv(t, FeeRates{})
	if _, err := env.engine.PreviewDeposit(nil); err == nil {
		t.Fatalf("expected nil rejection")
	}
	if _, err := env.engine.PreviewRedeem(big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative rejection")
	}
}

func TestMaxDepositReflectsGates(t *testing.T) {
	env := newTestEnv(t, FeeRates{})

	limit, err := env.engine.MaxDeposit(env.alice)
	if err != nil {
		t.Fatalf("max deposit: %v", err)
	}
	if limit != nil {
		t.Fatalf("expected unlimited, got %s", limit)
	}

	if err := env.engine.SetDepositCap(env.admin, big.NewInt(10000)); err != nil {
		t.Fatalf("set cap: %v", err)
	}
	if err := env.engine.SetPerAddressDepositCap(env.admin, big.NewInt(5000)); err != nil {
		t.Fatalf("set per-address cap: %v", err)
	}
	mustDeposit(t, env, env.alice, 4000)
	// Total headroom is 6000 but the per-address tally leaves only 1000.
	limit, err = env.engine.MaxDeposit(env.alice)
	if err != nil {
		t.Fatalf("max deposit: %v", err)
	}
	if limit == nil || limit.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("per-address headroom: got %s want 1000", limit)
	}
	limit, err = env.engine.MaxDeposit(env.bob)
	if err != nil {
		t.Fatalf("max deposit: %v", err)
	}
	if limit == nil || limit.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("fresh receiver headroom: got %s want 5000", limit)
	}

	if err := env.engine.SetEmergencyMode(env.admin, true); err != nil {
		t.Fatalf("set emergency: %v", err)
	}
	limit, err = env.engine.MaxDeposit(env.alice)
	if err != nil {
		t.Fatalf("max deposit: %v", err)
	}
	if limit == nil || limit.Sign() != 0 {
		t.Fatalf("emergency headroom: got %s want 0", limit)
	}
}

func TestMaxWithdrawAndRedeemHonorCap(t *testing.T) {
	env := newTestEnv(t, FeeRates{WithdrawalBps: 100})
	mustDeposit(t, env, env.alice, 10000)

	// Without a cap: gross 10000, 1% fee leaves 9900 withdrawable.
	limit, err := env.engine.MaxWithdraw(env.alice)
	if err != nil {
		t.Fatalf("max withdraw: %v", err)
	}
	if limit.Cmp(big.NewInt(9900)) != 0 {
		t.Fatalf("unexpected max withdraw: got %s want 9900", limit)
	}

	if err := env.engine.SetWithdrawalCap(env.admin, big.NewInt(3000)); err != nil {
		t.Fatalf("set cap: %v", err)
	}
	limit, err = env.engine.MaxWithdraw(env.alice)
	if err != nil {
		t.Fatalf("max withdraw: %v", err)
	}
	if limit.Cmp(big.NewInt(3000)) != 0 {
		t.Fatalf("capped max withdraw: got %s want 3000", limit)
	}

	maxShares, err := env.engine.MaxRedeem(env.alice)
	if err != nil {
		t.Fatalf("max redeem: %v", err)
	}
	if maxShares.Cmp(big.NewInt(3000)) != 0 {
		t.Fatalf("capped max redeem: got %s want 3000", maxShares)
	}
}

func TestShareValueAndConversions(t *testing.T) {
	env := newTestEnv(t, FeeRates{})

	price, err := env.engine.ShareValue()
	if err != nil {
		t.Fatalf("share value: %v", err)
	}
	if price.Cmp(pricePrecision) != 0 {
		t.Fatalf("empty vault price: got %s want 1e18", price)
	}

	mustDeposit(t, env, env.alice, 1000)
	env.ledger.credit(env.engine.VaultAddress(), 1000)
	price, err = env.engine.ShareValue()
	if err != nil {
		t.Fatalf("share value: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(2), pricePrecision)
	if price.Cmp(want) != 0 {
		t.Fatalf("unexpected price: got %s want %s", price, want)
	}

	shares, err := env.engine.ConvertToShares(big.NewInt(500))
	if err != nil {
		t.Fatalf("convert to shares: %v", err)
	}
	if shares.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("unexpected shares: got %s want 250", shares)
	}
	assets, err := env.engine.ConvertToAssets(big.NewInt(250))
	if err != nil {
		t.Fatalf("convert to assets: %v", err)
	}
	if assets.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected assets: got %s want 500", assets)
	}
}
