// Package state provides the in-memory ledger backing the vault engine: the
// vault accounting singleton, participant accounts on the asset and share
// ledgers, and share allowances. It implements the engine's collaborator
// interfaces over a single store so a snapshot covers every staged mutation
// of an operation.
package state

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/types"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/vault"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/storage/vaultstore"
)

var (
	// ErrInsufficientFunds rejects asset transfers beyond the sender's
	// balance.
	ErrInsufficientFunds = errors.New("state: insufficient asset balance")
	// ErrInsufficientShares rejects share burns beyond the holder's balance.
	ErrInsufficientShares = errors.New("state: insufficient share balance")
	// ErrInsufficientAllowance rejects allowance spends beyond the approved
	// amount.
	ErrInsufficientAllowance = errors.New("state: insufficient share allowance")
	// ErrVaultNotInitialised is returned before the vault singleton exists.
	ErrVaultNotInitialised = errors.New("state: vault not initialised")
	// ErrAlreadyInitialised rejects double initialisation.
	ErrAlreadyInitialised = errors.New("state: vault already initialised")
)

// Manager owns all mutable vault state. The engine serializes mutating
// calls; the manager's own lock additionally protects concurrent read-only
// access from the RPC layer.
type Manager struct {
	mu         sync.RWMutex
	vaultAddr  crypto.Address
	vault      *vault.VaultState
	accounts   map[string]*types.Account
	allowances map[string]*big.Int
	store      *vaultstore.Store
	snapshots  []*memSnapshot
}

type memSnapshot struct {
	vault      *vault.VaultState
	accounts   map[string]*types.Account
	allowances map[string]*big.Int
}

// NewManager creates an empty state manager for the given vault module
// account.
func NewManager(vaultAddr crypto.Address) *Manager {
	return &Manager{
		vaultAddr:  vaultAddr,
		accounts:   make(map[string]*types.Account),
		allowances: make(map[string]*big.Int),
	}
}

// SetStore wires optional persistence. Without a store the manager is purely
// in-memory.
func (m *Manager) SetStore(store *vaultstore.Store) {
	if m == nil {
		return
	}
	m.store = store
}

// VaultAddress returns the module account holding the vault's assets.
func (m *Manager) VaultAddress() crypto.Address { return m.vaultAddr }

func key(addr crypto.Address) string { return string(addr.Bytes()) }

func allowanceKey(owner, spender crypto.Address) string {
	return string(owner.Bytes()) + string(spender.Bytes())
}

// InitVault installs the accounting singleton. It may only be called once.
func (m *Manager) InitVault(state *vault.VaultState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vault != nil {
		return ErrAlreadyInitialised
	}
	if state == nil {
		return ErrVaultNotInitialised
	}
	m.vault = state.Clone()
	m.vault.Normalize()
	return nil
}

// Load restores persisted state. A store that has never been written leaves
// the manager untouched so the caller can initialise a fresh vault.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	snap, err := m.store.Load()
	if errors.Is(err, vaultstore.ErrEmpty) {
		return nil
	}
	if err != nil {
		return err
	}
	m.vault = snap.Vault
	m.accounts = snap.Accounts
	m.allowances = snap.Allowances
	if m.accounts == nil {
		m.accounts = make(map[string]*types.Account)
	}
	if m.allowances == nil {
		m.allowances = make(map[string]*big.Int)
	}
	return nil
}

// Commit persists the current state and drops accumulated snapshots.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = m.snapshots[:0]
	if m.store == nil {
		return nil
	}
	if m.vault == nil {
		return ErrVaultNotInitialised
	}
	return m.store.Save(&vaultstore.Snapshot{
		Vault:      m.vault,
		Accounts:   m.accounts,
		Allowances: m.allowances,
	})
}

// --- engine state ---

// GetVault returns a defensive copy of the vault singleton.
func (m *Manager) GetVault() (*vault.VaultState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.vault == nil {
		return nil, ErrVaultNotInitialised
	}
	return m.vault.Clone(), nil
}

// PutVault replaces the vault singleton.
func (m *Manager) PutVault(state *vault.VaultState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == nil {
		return ErrVaultNotInitialised
	}
	m.vault = state.Clone()
	return nil
}

// GetDepositedAssets reads the cumulative gross deposit tally for an address.
func (m *Manager) GetDepositedAssets(addr crypto.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[key(addr)]
	if !ok || acc.DepositedAssets == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(acc.DepositedAssets), nil
}

// SetDepositedAssets updates the cumulative gross deposit tally.
func (m *Manager) SetDepositedAssets(addr crypto.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.account(addr)
	acc.DepositedAssets = new(big.Int).Set(amount)
	return nil
}

// Snapshot captures the full state and returns a revision id.
func (m *Manager) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, m.copyAll())
	return len(m.snapshots) - 1
}

// RevertToSnapshot restores the given revision and discards it along with
// any later ones.
func (m *Manager) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	snap := m.snapshots[id]
	m.vault = snap.vault
	m.accounts = snap.accounts
	m.allowances = snap.allowances
	m.snapshots = m.snapshots[:id]
}

func (m *Manager) copyAll() *memSnapshot {
	snap := &memSnapshot{
		vault:      m.vault.Clone(),
		accounts:   make(map[string]*types.Account, len(m.accounts)),
		allowances: make(map[string]*big.Int, len(m.allowances)),
	}
	for k, acc := range m.accounts {
		snap.accounts[k] = acc.Clone()
	}
	for k, amount := range m.allowances {
		snap.allowances[k] = new(big.Int).Set(amount)
	}
	return snap
}

func (m *Manager) account(addr crypto.Address) *types.Account {
	k := key(addr)
	acc, ok := m.accounts[k]
	if !ok {
		acc = &types.Account{}
		m.accounts[k] = acc
	}
	acc.Normalize()
	return acc
}

// --- asset ledger ---

// BalanceOf reads an address's underlying asset balance.
func (m *Manager) BalanceOf(addr crypto.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[key(addr)]
	if !ok || acc.AssetBalance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(acc.AssetBalance), nil
}

// Transfer moves assets out of the vault module account.
func (m *Manager) Transfer(to crypto.Address, amount *big.Int) error {
	return m.TransferFrom(m.vaultAddr, to, amount)
}

// TransferFrom moves assets between two accounts. The whole transfer either
// applies or fails.
func (m *Manager) TransferFrom(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInsufficientFunds
	}
	if amount.Sign() == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sender := m.account(from)
	if sender.AssetBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	receiver := m.account(to)
	sender.AssetBalance = new(big.Int).Sub(sender.AssetBalance, amount)
	receiver.AssetBalance = new(big.Int).Add(receiver.AssetBalance, amount)
	return nil
}

// Credit mints underlying assets to an account. Used for genesis funding and
// simulating external yield in tests and tooling.
func (m *Manager) Credit(addr crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.account(addr)
	acc.AssetBalance = new(big.Int).Add(acc.AssetBalance, amount)
	return nil
}

// --- share ledger ---

// SharesOf reads an address's vault share balance.
func (m *Manager) SharesOf(addr crypto.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[key(addr)]
	if !ok || acc.ShareBalance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(acc.ShareBalance), nil
}

// Mint credits newly issued shares to an address.
func (m *Manager) Mint(addr crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInsufficientShares
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.account(addr)
	acc.ShareBalance = new(big.Int).Add(acc.ShareBalance, amount)
	return nil
}

// Burn destroys shares held by an address.
func (m *Manager) Burn(addr crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInsufficientShares
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.account(addr)
	if acc.ShareBalance.Cmp(amount) < 0 {
		return ErrInsufficientShares
	}
	acc.ShareBalance = new(big.Int).Sub(acc.ShareBalance, amount)
	return nil
}

// ApproveShares sets the share allowance a spender may burn on the owner's
// behalf.
func (m *Manager) ApproveShares(owner, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInsufficientAllowance
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey(owner, spender)] = new(big.Int).Set(amount)
	return nil
}

// ShareAllowance reads the remaining share allowance.
func (m *Manager) ShareAllowance(owner, spender crypto.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	amount, ok := m.allowances[allowanceKey(owner, spender)]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(amount), nil
}

// SpendAllowance consumes part of the owner's share allowance for a spender.
func (m *Manager) SpendAllowance(owner, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInsufficientAllowance
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := allowanceKey(owner, spender)
	current, ok := m.allowances[k]
	if !ok || current.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	m.allowances[k] = new(big.Int).Sub(current, amount)
	return nil
}
