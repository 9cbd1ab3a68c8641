package events

import (
	"math/big"
	"strconv"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/types"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
)

const (
	// TypeVaultDeposit marks a completed deposit or mint operation.
	TypeVaultDeposit = "vault.deposit"
	// TypeVaultWithdraw marks a completed withdraw or redeem operation.
	TypeVaultWithdraw = "vault.withdraw"
	// TypeVaultFeesCollected marks a fee accrual that minted shares to the
	// fee recipient.
	TypeVaultFeesCollected = "vault.fees.collected"
	// TypeVaultFeeRateUpdated marks an administrative fee rate change.
	TypeVaultFeeRateUpdated = "vault.fees.rate_updated"
	// TypeVaultFeeRecipientUpdated marks a fee recipient rotation.
	TypeVaultFeeRecipientUpdated = "vault.fees.recipient_updated"
	// TypeVaultCapUpdated marks a deposit or withdrawal cap change.
	TypeVaultCapUpdated = "vault.cap_updated"
	// TypeVaultWhitelistUpdated marks a whitelist membership or toggle change.
	TypeVaultWhitelistUpdated = "vault.whitelist_updated"
	// TypeVaultEmergencyMode marks the circuit breaker being flipped.
	TypeVaultEmergencyMode = "vault.emergency_mode"
)

// VaultDeposit records assets flowing into the vault in exchange for shares.
type VaultDeposit struct {
	Caller   crypto.Address
	Receiver crypto.Address
	Assets   *big.Int
	Shares   *big.Int
	Fee      *big.Int
}

// EventType satisfies the events.Event interface.
func (VaultDeposit) EventType() string { return TypeVaultDeposit }

// Event converts the payload into a broadcastable event.
func (e VaultDeposit) Event() *types.Event {
	attrs := map[string]string{
		"caller":   e.Caller.String(),
		"receiver": e.Receiver.String(),
	}
	putAmount(attrs, "assets", e.Assets)
	putAmount(attrs, "shares", e.Shares)
	putAmount(attrs, "fee", e.Fee)
	return &types.Event{Type: TypeVaultDeposit, Attributes: attrs}
}

// VaultWithdraw records shares burned in exchange for assets leaving the vault.
type VaultWithdraw struct {
	Caller   crypto.Address
	Receiver crypto.Address
	Owner    crypto.Address
	Assets   *big.Int
	Shares   *big.Int
	Fee      *big.Int
}

// EventType satisfies the events.Event interface.
func (VaultWithdraw) EventType() string { return TypeVaultWithdraw }

// Event converts the payload into a broadcastable event.
func (e VaultWithdraw) Event() *types.Event {
	attrs := map[string]string{
		"caller":   e.Caller.String(),
		"receiver": e.Receiver.String(),
		"owner":    e.Owner.String(),
	}
	putAmount(attrs, "assets", e.Assets)
	putAmount(attrs, "shares", e.Shares)
	putAmount(attrs, "fee", e.Fee)
	return &types.Event{Type: TypeVaultWithdraw, Attributes: attrs}
}

// VaultFeesCollected records a management/performance accrual.
type VaultFeesCollected struct {
	ManagementFee  *big.Int
	PerformanceFee *big.Int
	SharesMinted   *big.Int
	HighWaterMark  *big.Int
	CollectedAt    uint64
}

// EventType satisfies the events.Event interface.
func (VaultFeesCollected) EventType() string { return TypeVaultFeesCollected }

// Event converts the payload into a broadcastable event.
func (e VaultFeesCollected) Event() *types.Event {
	attrs := map[string]string{
		"collectedAt": strconv.FormatUint(e.CollectedAt, 10),
	}
	putAmount(attrs, "managementFee", e.ManagementFee)
	putAmount(attrs, "performanceFee", e.PerformanceFee)
	putAmount(attrs, "sharesMinted", e.SharesMinted)
	putAmount(attrs, "highWaterMark", e.HighWaterMark)
	return &types.Event{Type: TypeVaultFeesCollected, Attributes: attrs}
}

// VaultFeeRateUpdated records an administrative change to one of the fee rates.
type VaultFeeRateUpdated struct {
	Kind string
	Bps  uint16
}

// EventType satisfies the events.Event interface.
func (VaultFeeRateUpdated) EventType() string { return TypeVaultFeeRateUpdated }

// Event converts the payload into a broadcastable event.
func (e VaultFeeRateUpdated) Event() *types.Event {
	return &types.Event{Type: TypeVaultFeeRateUpdated, Attributes: map[string]string{
		"kind": e.Kind,
		"bps":  strconv.FormatUint(uint64(e.Bps), 10),
	}}
}

// VaultFeeRecipientUpdated records a fee recipient rotation.
type VaultFeeRecipientUpdated struct {
	Recipient crypto.Address
}

// EventType satisfies the events.Event interface.
func (VaultFeeRecipientUpdated) EventType() string { return TypeVaultFeeRecipientUpdated }

// Event converts the payload into a broadcastable event.
func (e VaultFeeRecipientUpdated) Event() *types.Event {
	return &types.Event{Type: TypeVaultFeeRecipientUpdated, Attributes: map[string]string{
		"recipient": e.Recipient.String(),
	}}
}

// VaultCapUpdated records a deposit or withdrawal cap change. A zero cap
// means unlimited.
type VaultCapUpdated struct {
	Kind string
	Cap  *big.Int
}

// EventType satisfies the events.Event interface.
func (VaultCapUpdated) EventType() string { return TypeVaultCapUpdated }

// Event converts the payload into a broadcastable event.
func (e VaultCapUpdated) Event() *types.Event {
	attrs := map[string]string{"kind": e.Kind}
	putAmount(attrs, "cap", e.Cap)
	return &types.Event{Type: TypeVaultCapUpdated, Attributes: attrs}
}

// VaultWhitelistUpdated records whitelist membership or toggle changes.
type VaultWhitelistUpdated struct {
	Account crypto.Address
	Added   bool
	Enabled bool
	Toggle  bool
}

// EventType satisfies the events.Event interface.
func (VaultWhitelistUpdated) EventType() string { return TypeVaultWhitelistUpdated }

// Event converts the payload into a broadcastable event.
func (e VaultWhitelistUpdated) Event() *types.Event {
	attrs := map[string]string{}
	if e.Toggle {
		attrs["enabled"] = strconv.FormatBool(e.Enabled)
	} else {
		attrs["account"] = e.Account.String()
		attrs["added"] = strconv.FormatBool(e.Added)
	}
	return &types.Event{Type: TypeVaultWhitelistUpdated, Attributes: attrs}
}

// VaultEmergencyMode records the circuit breaker being engaged or released.
type VaultEmergencyMode struct {
	Active bool
}

// EventType satisfies the events.Event interface.
func (VaultEmergencyMode) EventType() string { return TypeVaultEmergencyMode }

// Event converts the payload into a broadcastable event.
func (e VaultEmergencyMode) Event() *types.Event {
	return &types.Event{Type: TypeVaultEmergencyMode, Attributes: map[string]string{
		"active": strconv.FormatBool(e.Active),
	}}
}

func putAmount(attrs map[string]string, key string, value *big.Int) {
	if value == nil {
		return
	}
	attrs[key] = value.String()
}
