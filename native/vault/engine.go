package vault

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/events"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
	nativecommon "github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/common"
)

var (
	errNilState        = errors.New("vault engine: state not configured")
	errNilLedger       = errors.New("vault engine: ledgers not configured")
	errInvalidAmount   = errors.New("vault engine: amount must be positive")
	errZeroAddress     = errors.New("vault engine: zero address")
	errNilFeeRecipient = errors.New("vault engine: fee recipient not configured")
	errFeeExceedsMax   = errors.New("vault engine: fee exceeds maximum basis points")

	// ErrNotAuthorized rejects admin calls from non-privileged callers.
	ErrNotAuthorized = errors.New("vault engine: caller not authorized")
	// ErrInsufficientShares rejects burns beyond the owner's share balance.
	ErrInsufficientShares = errors.New("vault engine: insufficient share balance")
	// ErrInsufficientAllowance rejects third-party withdrawals beyond the
	// approved share allowance.
	ErrInsufficientAllowance = errors.New("vault engine: insufficient share allowance")
	// ErrEmergencyMode rejects inflows while the circuit breaker is active.
	ErrEmergencyMode = errors.New("vault engine: emergency mode active")
	// ErrNotWhitelisted rejects inflows for non-members while the whitelist
	// is enabled.
	ErrNotWhitelisted = errors.New("vault engine: receiver not whitelisted")
	// ErrDepositCapExceeded rejects inflows beyond the configured caps.
	ErrDepositCapExceeded = errors.New("vault engine: deposit cap exceeded")
	// ErrWithdrawalCapExceeded rejects outflows beyond the per-call cap.
	ErrWithdrawalCapExceeded = errors.New("vault engine: withdrawal cap exceeded")
)

const moduleName = "vault"

// engineState is the persistence surface the engine mutates. GetVault must
// return a defensive copy; the engine commits its working copy with PutVault.
// Snapshot/RevertToSnapshot must cover the asset and share ledgers as well so
// a failed external transfer rolls back the whole operation.
type engineState interface {
	GetVault() (*VaultState, error)
	PutVault(*VaultState) error
	GetDepositedAssets(addr crypto.Address) (*big.Int, error)
	SetDepositedAssets(addr crypto.Address, amount *big.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// AssetLedger is the external token ledger holding the underlying asset. The
// vault account is the implicit sender of Transfer.
type AssetLedger interface {
	BalanceOf(addr crypto.Address) (*big.Int, error)
	Transfer(to crypto.Address, amount *big.Int) error
	TransferFrom(from, to crypto.Address, amount *big.Int) error
}

// ShareLedger is the external share-ownership ledger. Plain transfer and
// approval bookkeeping stay outside the engine; only mint, burn, and
// allowance spending are reachable from vault operations.
type ShareLedger interface {
	SharesOf(addr crypto.Address) (*big.Int, error)
	Mint(addr crypto.Address, amount *big.Int) error
	Burn(addr crypto.Address, amount *big.Int) error
	SpendAllowance(owner, spender crypto.Address, amount *big.Int) error
}

// Authorizer decides whether a caller may invoke admin operations.
type Authorizer interface {
	IsAuthorized(caller crypto.Address) bool
}

// Engine sequences the vault operations: gate check, fee accrual, conversion,
// fee deduction, ledger mutation, then asset movement. A single mutex
// serializes every mutating call; all ledger mutation is committed before any
// external asset transfer is issued.
type Engine struct {
	mu           sync.Mutex
	state        engineState
	assets       AssetLedger
	shares       ShareLedger
	auth         Authorizer
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	vaultAddress crypto.Address
	nowFn        func() uint64
}

// NewEngine constructs a vault engine bound to the vault's module account on
// the asset ledger.
func NewEngine(vaultAddr crypto.Address) *Engine {
	return &Engine{
		vaultAddress: vaultAddr,
		nowFn:        func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedgers wires the asset and share ledger collaborators.
func (e *Engine) SetLedgers(assets AssetLedger, shares ShareLedger) {
	if e == nil {
		return
	}
	e.assets = assets
	e.shares = shares
}

// SetAuthorizer wires the admin authorization predicate.
func (e *Engine) SetAuthorizer(auth Authorizer) {
	if e == nil {
		return
	}
	e.auth = auth
}

// SetEmitter wires the event sink. A nil emitter silently drops events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetTimeSource overrides the wall clock, primarily for tests.
func (e *Engine) SetTimeSource(now func() uint64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// VaultAddress returns the module account holding the vault's assets.
func (e *Engine) VaultAddress() crypto.Address { return e.vaultAddress }

func (e *Engine) now() uint64 { return e.nowFn() }

func (e *Engine) loadState() (*VaultState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.assets == nil || e.shares == nil {
		return nil, errNilLedger
	}
	state, err := e.state.GetVault()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, errNilState
	}
	state.Normalize()
	return state, nil
}

func (e *Engine) totalAssets() (*big.Int, error) {
	balance, err := e.assets.BalanceOf(e.vaultAddress)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	return balance, nil
}

// feePortion computes amount*bps/10000, rounded down.
func feePortion(amount *big.Int, bps uint16) *big.Int {
	if amount == nil || amount.Sign() == 0 || bps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return fee.Quo(fee, basisPoints)
}

// grossUpFee converts a net amount into the gross amount that leaves exactly
// the net behind after deducting bps: net * 10000 / (10000 - bps).
func grossUpFee(net *big.Int, bps uint16) *big.Int {
	if net == nil || net.Sign() == 0 {
		return big.NewInt(0)
	}
	if bps == 0 {
		return new(big.Int).Set(net)
	}
	gross := new(big.Int).Mul(net, basisPoints)
	return gross.Quo(gross, big.NewInt(int64(BpsDenominator-bps)))
}

// Deposit moves assets from the caller into the vault and mints shares for
// the receiver. The deposit fee is taken from the gross amount in assets and
// forwarded to the fee recipient; shares are minted against the net amount,
// rounded down. The minted share amount is returned.
func (e *Engine) Deposit(caller crypto.Address, assets *big.Int, receiver crypto.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if assets == nil || assets.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if receiver.IsZero() || caller.IsZero() {
		return nil, errZeroAddress
	}

	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	totalAssets, err := e.totalAssets()
	if err != nil {
		return nil, err
	}
	tally, err := e.checkDepositGate(state, receiver, assets, totalAssets)
	if err != nil {
		return nil, err
	}

	snap := e.state.Snapshot()
	if _, err := e.collectFeesLocked(state, totalAssets, e.now()); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	fee := feePortion(assets, state.Fees.DepositBps)
	netAssets := new(big.Int).Sub(assets, fee)
	shares := convertToShares(netAssets, state.TotalShares, totalAssets, false)

	if err := e.shares.Mint(receiver, shares); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	state.TotalShares = new(big.Int).Add(state.TotalShares, shares)
	if tally != nil {
		if err := e.state.SetDepositedAssets(receiver, tally); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
	}
	if err := e.state.PutVault(state); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	if err := e.assets.TransferFrom(caller, e.vaultAddress, assets); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, fmt.Errorf("vault engine: asset transfer: %w", err)
	}
	if fee.Sign() > 0 {
		if err := e.assets.Transfer(state.FeeRecipient, fee); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, fmt.Errorf("vault engine: fee transfer: %w", err)
		}
	}

	if e.emitter != nil {
		e.emitter.Emit(events.VaultDeposit{Caller: caller, Receiver: receiver, Assets: assets, Shares: shares, Fee: fee})
	}
	return shares, nil
}

// Mint issues an exact share amount to the receiver and pulls the gross asset
// amount required, rounding the net asset cost up so rounding never favors
// the caller. The gross asset amount charged is returned.
func (e *Engine) Mint(caller crypto.Address, shares *big.Int, receiver crypto.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if receiver.IsZero() || caller.IsZero() {
		return nil, errZeroAddress
	}

	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if state.EmergencyMode {
		return nil, ErrEmergencyMode
	}
	if state.WhitelistEnabled && !state.Whitelisted(receiver) {
		return nil, ErrNotWhitelisted
	}
	totalAssets, err := e.totalAssets()
	if err != nil {
		return nil, err
	}

	snap := e.state.Snapshot()
	if _, err := e.collectFeesLocked(state, totalAssets, e.now()); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	netAssets := convertToAssets(shares, state.TotalShares, totalAssets, true)
	grossAssets := grossUpFee(netAssets, state.Fees.DepositBps)
	fee := new(big.Int).Sub(grossAssets, netAssets)

	tally, err := e.checkDepositGate(state, receiver, grossAssets, totalAssets)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	if err := e.shares.Mint(receiver, shares); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	state.TotalShares = new(big.Int).Add(state.TotalShares, shares)
	if tally != nil {
		if err := e.state.SetDepositedAssets(receiver, tally); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
	}
	if err := e.state.PutVault(state); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	if err := e.assets.TransferFrom(caller, e.vaultAddress, grossAssets); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, fmt.Errorf("vault engine: asset transfer: %w", err)
	}
	if fee.Sign() > 0 {
		if err := e.assets.Transfer(state.FeeRecipient, fee); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, fmt.Errorf("vault engine: fee transfer: %w", err)
		}
	}

	if e.emitter != nil {
		e.emitter.Emit(events.VaultDeposit{Caller: caller, Receiver: receiver, Assets: grossAssets, Shares: shares, Fee: fee})
	}
	return grossAssets, nil
}

// Withdraw sends an exact asset amount to the receiver by burning the share
// equivalent of the grossed-up amount from the owner. Callers other than the
// owner spend share allowance. The burned share amount is returned.
func (e *Engine) Withdraw(caller crypto.Address, assets *big.Int, receiver, owner crypto.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if assets == nil || assets.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if receiver.IsZero() || owner.IsZero() || caller.IsZero() {
		return nil, errZeroAddress
	}

	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	if err := checkWithdrawalCap(state, assets); err != nil {
		return nil, err
	}
	totalAssets, err := e.totalAssets()
	if err != nil {
		return nil, err
	}

	snap := e.state.Snapshot()
	if _, err := e.collectFeesLocked(state, totalAssets, e.now()); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	grossAssets := grossUpFee(assets, state.Fees.WithdrawalBps)
	shares := convertToShares(grossAssets, state.TotalShares, totalAssets, true)
	fee := feePortion(grossAssets, state.Fees.WithdrawalBps)

	if !caller.Equal(owner) {
		if err := e.spendAllowance(owner, caller, shares); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
	}
	if err := e.burnFrom(state, owner, shares); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.state.PutVault(state); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	if fee.Sign() > 0 {
		if err := e.assets.Transfer(state.FeeRecipient, fee); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, fmt.Errorf("vault engine: fee transfer: %w", err)
		}
	}
	if err := e.assets.Transfer(receiver, assets); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, fmt.Errorf("vault engine: asset transfer: %w", err)
	}

	if e.emitter != nil {
		e.emitter.Emit(events.VaultWithdraw{Caller: caller, Receiver: receiver, Owner: owner, Assets: assets, Shares: shares, Fee: fee})
	}
	return shares, nil
}

// Redeem burns an exact share amount from the owner and sends the
// proportional asset value, net of the withdrawal fee, to the receiver. The
// net asset amount is returned.
func (e *Engine) Redeem(caller crypto.Address, shares *big.Int, receiver, owner crypto.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	if receiver.IsZero() || owner.IsZero() || caller.IsZero() {
		return nil, errZeroAddress
	}

	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	totalAssets, err := e.totalAssets()
	if err != nil {
		return nil, err
	}

	snap := e.state.Snapshot()
	if !caller.Equal(owner) {
		if err := e.spendAllowance(owner, caller, shares); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, err
		}
	}
	if _, err := e.collectFeesLocked(state, totalAssets, e.now()); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	grossAssets := convertToAssets(shares, state.TotalShares, totalAssets, false)
	if err := checkWithdrawalCap(state, grossAssets); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	fee := feePortion(grossAssets, state.Fees.WithdrawalBps)
	netAssets := new(big.Int).Sub(grossAssets, fee)

	if err := e.burnFrom(state, owner, shares); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.state.PutVault(state); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}

	if fee.Sign() > 0 {
		if err := e.assets.Transfer(state.FeeRecipient, fee); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, fmt.Errorf("vault engine: fee transfer: %w", err)
		}
	}
	if netAssets.Sign() > 0 {
		if err := e.assets.Transfer(receiver, netAssets); err != nil {
			e.state.RevertToSnapshot(snap)
			return nil, fmt.Errorf("vault engine: asset transfer: %w", err)
		}
	}

	if e.emitter != nil {
		e.emitter.Emit(events.VaultWithdraw{Caller: caller, Receiver: receiver, Owner: owner, Assets: netAssets, Shares: shares, Fee: fee})
	}
	return netAssets, nil
}

// spendAllowance consumes part of the owner's share allowance for a spender,
// translating ledger failures into the engine sentinel.
func (e *Engine) spendAllowance(owner, spender crypto.Address, shares *big.Int) error {
	if err := e.shares.SpendAllowance(owner, spender, shares); err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientAllowance, err)
	}
	return nil
}

// burnFrom burns shares from the owner, verifying the balance first, and
// keeps TotalShares in sync with the share ledger.
func (e *Engine) burnFrom(state *VaultState, owner crypto.Address, shares *big.Int) error {
	balance, err := e.shares.SharesOf(owner)
	if err != nil {
		return err
	}
	if balance == nil || balance.Cmp(shares) < 0 {
		return ErrInsufficientShares
	}
	if err := e.shares.Burn(owner, shares); err != nil {
		return err
	}
	state.TotalShares = new(big.Int).Sub(state.TotalShares, shares)
	return nil
}

// CollectFees accrues management and performance fees since the last
// collection and mints the combined fee to the fee recipient as shares. Calls
// within MinCollectionInterval are no-ops. Anyone may trigger a collection.
func (e *Engine) CollectFees() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	return e.collectFeesNowLocked()
}

func (e *Engine) collectFeesNowLocked() (*big.Int, error) {
	state, err := e.loadState()
	if err != nil {
		return nil, err
	}
	totalAssets, err := e.totalAssets()
	if err != nil {
		return nil, err
	}
	snap := e.state.Snapshot()
	minted, err := e.collectFeesLocked(state, totalAssets, e.now())
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	if err := e.state.PutVault(state); err != nil {
		e.state.RevertToSnapshot(snap)
		return nil, err
	}
	return minted, nil
}
