// Package vaultstore persists the vault accounting state, participant
// accounts, and share allowances as a single RLP-encoded record in the
// key-value store. A single-vault daemon mutates little state per operation,
// so whole-record writes keep the codec trivial and crash-consistent.
package vaultstore

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/types"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/vault"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/storage"
)

var stateKey = []byte("vault:state:v1")

// ErrEmpty signals that no state has been persisted yet.
var ErrEmpty = errors.New("vaultstore: empty")

// Snapshot is the unit of persistence: the vault singleton plus every
// account and share allowance. Accounts are keyed by the raw 20-byte
// address; allowances by owner followed by spender (40 bytes).
type Snapshot struct {
	Vault      *vault.VaultState
	Accounts   map[string]*types.Account
	Allowances map[string]*big.Int
}

// Wire forms. RLP cannot encode maps, so map state is flattened into
// deterministically sorted slices.

type storedAccount struct {
	Address         []byte
	Nonce           uint64
	AssetBalance    *big.Int
	ShareBalance    *big.Int
	DepositedAssets *big.Int
}

type storedAllowance struct {
	Key    []byte
	Amount *big.Int
}

type storedVault struct {
	TotalShares          *big.Int
	FeeRecipient         []byte
	DepositBps           uint16
	WithdrawalBps        uint16
	ManagementBps        uint16
	PerformanceBps       uint16
	LastFeeCollection    uint64
	HighWaterMark        *big.Int
	DepositCap           *big.Int
	PerAddressDepositCap *big.Int
	WithdrawalCap        *big.Int
	WhitelistEnabled     bool
	Whitelist            [][]byte
	EmergencyMode        bool
}

type storedState struct {
	Vault      storedVault
	Accounts   []storedAccount
	Allowances []storedAllowance
}

// Store wraps a Database with the vault state codec.
type Store struct {
	db storage.Database
}

func New(db storage.Database) *Store {
	return &Store{db: db}
}

// Save writes the full state record.
func (s *Store) Save(snap *Snapshot) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("vaultstore: database not configured")
	}
	record, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return fmt.Errorf("vaultstore: encode state: %w", err)
	}
	return s.db.Put(stateKey, encoded)
}

// Load reads the full state record, returning ErrEmpty when nothing has been
// persisted yet.
func (s *Store) Load() (*Snapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("vaultstore: database not configured")
	}
	ok, err := s.db.Has(stateKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEmpty
	}
	encoded, err := s.db.Get(stateKey)
	if err != nil {
		return nil, err
	}
	record := new(storedState)
	if err := rlp.DecodeBytes(encoded, record); err != nil {
		return nil, fmt.Errorf("vaultstore: decode state: %w", err)
	}
	return decodeSnapshot(record), nil
}

func encodeSnapshot(snap *Snapshot) (*storedState, error) {
	if snap == nil || snap.Vault == nil {
		return nil, fmt.Errorf("vaultstore: nil snapshot")
	}
	vs := snap.Vault.Clone()
	vs.Normalize()
	record := &storedState{
		Vault: storedVault{
			TotalShares:          vs.TotalShares,
			FeeRecipient:         vs.FeeRecipient.Bytes(),
			DepositBps:           vs.Fees.DepositBps,
			WithdrawalBps:        vs.Fees.WithdrawalBps,
			ManagementBps:        vs.Fees.ManagementBps,
			PerformanceBps:       vs.Fees.PerformanceBps,
			LastFeeCollection:    vs.LastFeeCollection,
			HighWaterMark:        vs.HighWaterMark,
			DepositCap:           vs.DepositCap,
			PerAddressDepositCap: vs.PerAddressDepositCap,
			WithdrawalCap:        vs.WithdrawalCap,
			WhitelistEnabled:     vs.WhitelistEnabled,
			EmergencyMode:        vs.EmergencyMode,
		},
	}
	for _, member := range sortedKeys(vs.Whitelist) {
		if vs.Whitelist[member] {
			record.Vault.Whitelist = append(record.Vault.Whitelist, []byte(member))
		}
	}
	for _, key := range sortedKeys(snap.Accounts) {
		acc := snap.Accounts[key]
		if acc == nil {
			continue
		}
		acc.Normalize()
		record.Accounts = append(record.Accounts, storedAccount{
			Address:         []byte(key),
			Nonce:           acc.Nonce,
			AssetBalance:    acc.AssetBalance,
			ShareBalance:    acc.ShareBalance,
			DepositedAssets: acc.DepositedAssets,
		})
	}
	for _, key := range sortedKeys(snap.Allowances) {
		amount := snap.Allowances[key]
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		record.Allowances = append(record.Allowances, storedAllowance{
			Key:    []byte(key),
			Amount: amount,
		})
	}
	return record, nil
}

func decodeSnapshot(record *storedState) *Snapshot {
	snap := &Snapshot{
		Accounts:   make(map[string]*types.Account, len(record.Accounts)),
		Allowances: make(map[string]*big.Int, len(record.Allowances)),
	}
	vs := &vault.VaultState{
		TotalShares: record.Vault.TotalShares,
		Fees: vault.FeeRates{
			DepositBps:     record.Vault.DepositBps,
			WithdrawalBps:  record.Vault.WithdrawalBps,
			ManagementBps:  record.Vault.ManagementBps,
			PerformanceBps: record.Vault.PerformanceBps,
		},
		LastFeeCollection:    record.Vault.LastFeeCollection,
		HighWaterMark:        record.Vault.HighWaterMark,
		DepositCap:           record.Vault.DepositCap,
		PerAddressDepositCap: record.Vault.PerAddressDepositCap,
		WithdrawalCap:        record.Vault.WithdrawalCap,
		WhitelistEnabled:     record.Vault.WhitelistEnabled,
		EmergencyMode:        record.Vault.EmergencyMode,
	}
	vs.Normalize()
	if len(record.Vault.FeeRecipient) == 20 {
		vs.FeeRecipient = decodeAddr(record.Vault.FeeRecipient)
	}
	for _, member := range record.Vault.Whitelist {
		vs.Whitelist[string(member)] = true
	}
	snap.Vault = vs

	for _, stored := range record.Accounts {
		acc := &types.Account{
			Nonce:           stored.Nonce,
			AssetBalance:    stored.AssetBalance,
			ShareBalance:    stored.ShareBalance,
			DepositedAssets: stored.DepositedAssets,
		}
		acc.Normalize()
		snap.Accounts[string(stored.Address)] = acc
	}
	for _, stored := range record.Allowances {
		snap.Allowances[string(stored.Key)] = stored.Amount
	}
	return snap
}

func decodeAddr(b []byte) crypto.Address {
	return crypto.NewAddress(crypto.VaultPrefix, append([]byte(nil), b...))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
