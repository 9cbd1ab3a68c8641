package vaultstore

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/types"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/vault"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/storage"
)

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.VaultPrefix, raw)
}

func TestLoadEmptyStore(t *testing.T) {
	store := New(storage.NewMemDB())
	if _, err := store.Load(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := New(storage.NewMemDB())

	recipient := makeAddress(0x01)
	member := makeAddress(0x02)
	alice := makeAddress(0x03)
	bob := makeAddress(0x04)

	vs, err := vault.NewVaultState(recipient, vault.FeeRates{
		DepositBps:     100,
		WithdrawalBps:  50,
		ManagementBps:  200,
		PerformanceBps: 1000,
	}, 1_700_000_000)
	if err != nil {
		t.Fatalf("new vault state: %v", err)
	}
	vs.TotalShares = big.NewInt(12345)
	vs.HighWaterMark = new(big.Int).SetUint64(1_100_000_000_000_000_000)
	vs.DepositCap = big.NewInt(1_000_000)
	vs.WhitelistEnabled = true
	vs.Whitelist[string(member.Bytes())] = true
	vs.EmergencyMode = true

	snap := &Snapshot{
		Vault: vs,
		Accounts: map[string]*types.Account{
			string(alice.Bytes()): {
				Nonce:           7,
				AssetBalance:    big.NewInt(500),
				ShareBalance:    big.NewInt(12345),
				DepositedAssets: big.NewInt(600),
			},
		},
		Allowances: map[string]*big.Int{
			string(alice.Bytes()) + string(bob.Bytes()): big.NewInt(42),
			string(bob.Bytes()) + string(alice.Bytes()): big.NewInt(0), // dropped
		},
	}
	if err := store.Save(snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := restored.Vault
	if got.TotalShares.Cmp(vs.TotalShares) != 0 {
		t.Fatalf("total shares: got %s want %s", got.TotalShares, vs.TotalShares)
	}
	if !got.FeeRecipient.Equal(recipient) {
		t.Fatalf("fee recipient: got %s want %s", got.FeeRecipient, recipient)
	}
	if got.Fees != vs.Fees {
		t.Fatalf("fee rates: got %+v want %+v", got.Fees, vs.Fees)
	}
	if got.LastFeeCollection != vs.LastFeeCollection {
		t.Fatalf("last collection: got %d want %d", got.LastFeeCollection, vs.LastFeeCollection)
	}
	if got.HighWaterMark.Cmp(vs.HighWaterMark) != 0 {
		t.Fatalf("high-water mark: got %s want %s", got.HighWaterMark, vs.HighWaterMark)
	}
	if got.DepositCap.Cmp(vs.DepositCap) != 0 {
		t.Fatalf("deposit cap: got %s want %s", got.DepositCap, vs.DepositCap)
	}
	if !got.WhitelistEnabled || !got.Whitelisted(member) {
		t.Fatalf("whitelist lost")
	}
	if !got.EmergencyMode {
		t.Fatalf("emergency flag lost")
	}

	acc := restored.Accounts[string(alice.Bytes())]
	if acc == nil {
		t.Fatalf("account lost")
	}
	if acc.Nonce != 7 || acc.AssetBalance.Cmp(big.NewInt(500)) != 0 ||
		acc.ShareBalance.Cmp(big.NewInt(12345)) != 0 || acc.DepositedAssets.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("account fields lost: %+v", acc)
	}

	if len(restored.Allowances) != 1 {
		t.Fatalf("unexpected allowance count: %d", len(restored.Allowances))
	}
	allowance := restored.Allowances[string(alice.Bytes())+string(bob.Bytes())]
	if allowance == nil || allowance.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("allowance lost: %s", allowance)
	}
}

func TestSaveOverwritesPreviousRecord(t *testing.T) {
	store := New(storage.NewMemDB())
	recipient := makeAddress(0x01)

	vs, err := vault.NewVaultState(recipient, vault.FeeRates{}, 100)
	if err != nil {
		t.Fatalf("new vault state: %v", err)
	}
	if err := store.Save(&Snapshot{Vault: vs}); err != nil {
		t.Fatalf("save: %v", err)
	}

	vs.TotalShares = big.NewInt(777)
	if err := store.Save(&Snapshot{Vault: vs}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	restored, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.Vault.TotalShares.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("stale record: %s", restored.Vault.TotalShares)
	}
}

func TestSaveRejectsNilSnapshot(t *testing.T) {
	store := New(storage.NewMemDB())
	if err := store.Save(nil); err == nil {
		t.Fatalf("expected nil snapshot rejection")
	}
	if err := store.Save(&Snapshot{}); err == nil {
		t.Fatalf("expected nil vault rejection")
	}
}
