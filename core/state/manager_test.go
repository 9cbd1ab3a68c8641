package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/vault"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/storage"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/storage/vaultstore"
)

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.VaultPrefix, raw)
}

func newInitialisedManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(makeAddress(0xff))
	state, err := vault.NewVaultState(makeAddress(0x01), vault.FeeRates{}, 1_700_000_000)
	if err != nil {
		t.Fatalf("new vault state: %v", err)
	}
	if err := m.InitVault(state); err != nil {
		t.Fatalf("init vault: %v", err)
	}
	return m
}

func TestInitVaultOnlyOnce(t *testing.T) {
	m := newInitialisedManager(t)
	state, _ := vault.NewVaultState(makeAddress(0x01), vault.FeeRates{}, 1)
	if err := m.InitVault(state); !errors.Is(err, ErrAlreadyInitialised) {
		t.Fatalf("expected double-init rejection, got %v", err)
	}
}

func TestGetVaultReturnsDefensiveCopy(t *testing.T) {
	m := newInitialisedManager(t)
	first, err := m.GetVault()
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	first.TotalShares.SetInt64(999)

	second, err := m.GetVault()
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	if second.TotalShares.Sign() != 0 {
		t.Fatalf("mutation leaked into stored state: %s", second.TotalShares)
	}
}

func TestAssetTransfers(t *testing.T) {
	m := newInitialisedManager(t)
	alice := makeAddress(0x02)
	bob := makeAddress(0x03)

	if err := m.Credit(alice, big.NewInt(1000)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := m.TransferFrom(alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := m.TransferFrom(alice, bob, big.NewInt(601)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	aliceBalance, _ := m.BalanceOf(alice)
	bobBalance, _ := m.BalanceOf(bob)
	if aliceBalance.Cmp(big.NewInt(600)) != 0 || bobBalance.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("unexpected balances: %s %s", aliceBalance, bobBalance)
	}
}

func TestShareMintBurnAndAllowance(t *testing.T) {
	m := newInitialisedManager(t)
	alice := makeAddress(0x02)
	bob := makeAddress(0x03)

	if err := m.Mint(alice, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := m.Burn(alice, big.NewInt(501)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected insufficient shares, got %v", err)
	}

	if err := m.ApproveShares(alice, bob, big.NewInt(200)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := m.SpendAllowance(alice, bob, big.NewInt(150)); err != nil {
		t.Fatalf("spend allowance: %v", err)
	}
	if err := m.SpendAllowance(alice, bob, big.NewInt(51)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected insufficient allowance, got %v", err)
	}
	remaining, _ := m.ShareAllowance(alice, bob)
	if remaining.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("unexpected allowance: %s", remaining)
	}
}

func TestSnapshotRevertsEverything(t *testing.T) {
	m := newInitialisedManager(t)
	alice := makeAddress(0x02)
	m.Credit(alice, big.NewInt(1000))

	id := m.Snapshot()
	m.Credit(alice, big.NewInt(500))
	if err := m.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	vaultState, _ := m.GetVault()
	vaultState.TotalShares = big.NewInt(100)
	if err := m.PutVault(vaultState); err != nil {
		t.Fatalf("put vault: %v", err)
	}
	if err := m.SetDepositedAssets(alice, big.NewInt(1500)); err != nil {
		t.Fatalf("set deposited: %v", err)
	}

	m.RevertToSnapshot(id)

	balance, _ := m.BalanceOf(alice)
	if balance.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("asset balance not reverted: %s", balance)
	}
	shares, _ := m.SharesOf(alice)
	if shares.Sign() != 0 {
		t.Fatalf("share balance not reverted: %s", shares)
	}
	reverted, _ := m.GetVault()
	if reverted.TotalShares.Sign() != 0 {
		t.Fatalf("vault state not reverted: %s", reverted.TotalShares)
	}
	deposited, _ := m.GetDepositedAssets(alice)
	if deposited.Sign() != 0 {
		t.Fatalf("deposit tally not reverted: %s", deposited)
	}
}

func TestCommitAndLoadRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	store := vaultstore.New(db)

	m := newInitialisedManager(t)
	m.SetStore(store)
	alice := makeAddress(0x02)
	m.Credit(alice, big.NewInt(1234))
	if err := m.Mint(alice, big.NewInt(77)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := m.ApproveShares(alice, makeAddress(0x03), big.NewInt(5)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := m.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	restored := NewManager(makeAddress(0xff))
	restored.SetStore(store)
	if err := restored.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	balance, _ := restored.BalanceOf(alice)
	if balance.Cmp(big.NewInt(1234)) != 0 {
		t.Fatalf("asset balance lost: %s", balance)
	}
	shares, _ := restored.SharesOf(alice)
	if shares.Cmp(big.NewInt(77)) != 0 {
		t.Fatalf("share balance lost: %s", shares)
	}
	allowance, _ := restored.ShareAllowance(alice, makeAddress(0x03))
	if allowance.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("allowance lost: %s", allowance)
	}
	if _, err := restored.GetVault(); err != nil {
		t.Fatalf("vault state lost: %v", err)
	}
}

func TestLoadFromEmptyStoreLeavesManagerUninitialised(t *testing.T) {
	m := NewManager(makeAddress(0xff))
	m.SetStore(vaultstore.New(storage.NewMemDB()))
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := m.GetVault(); !errors.Is(err, ErrVaultNotInitialised) {
		t.Fatalf("expected uninitialised vault, got %v", err)
	}
}
