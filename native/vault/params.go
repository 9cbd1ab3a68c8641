package vault

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
)

// Config captures operator-defined vault parameters parsed from
// configuration. Amounts are decimal strings in the asset's base unit; an
// empty string or "0" disables the corresponding cap.
type Config struct {
	FeeRecipient            string   `toml:"FeeRecipient"`
	DepositFeeBps           uint16   `toml:"DepositFeeBps"`
	WithdrawalFeeBps        uint16   `toml:"WithdrawalFeeBps"`
	ManagementFeeBps        uint16   `toml:"ManagementFeeBps"`
	PerformanceFeeBps       uint16   `toml:"PerformanceFeeBps"`
	DepositCap              string   `toml:"DepositCap"`
	PerAddressDepositCap    string   `toml:"PerAddressDepositCap"`
	WithdrawalCap           string   `toml:"WithdrawalCap"`
	WhitelistEnabled        bool     `toml:"WhitelistEnabled"`
	Whitelist               []string `toml:"Whitelist"`
	EmergencyMode           bool     `toml:"EmergencyMode"`
}

// Normalise trims whitespace, deduplicates the whitelist, and applies
// canonical ordering to defensive copies.
func (c Config) Normalise() Config {
	cfg := Config{
		FeeRecipient:         strings.TrimSpace(c.FeeRecipient),
		DepositFeeBps:        c.DepositFeeBps,
		WithdrawalFeeBps:     c.WithdrawalFeeBps,
		ManagementFeeBps:     c.ManagementFeeBps,
		PerformanceFeeBps:    c.PerformanceFeeBps,
		DepositCap:           strings.TrimSpace(c.DepositCap),
		PerAddressDepositCap: strings.TrimSpace(c.PerAddressDepositCap),
		WithdrawalCap:        strings.TrimSpace(c.WithdrawalCap),
		WhitelistEnabled:     c.WhitelistEnabled,
		EmergencyMode:        c.EmergencyMode,
	}
	if len(c.Whitelist) == 0 {
		return cfg
	}
	trimmed := make([]string, 0, len(c.Whitelist))
	seen := make(map[string]struct{}, len(c.Whitelist))
	for _, entry := range c.Whitelist {
		normalised := strings.ToLower(strings.TrimSpace(entry))
		if normalised == "" {
			continue
		}
		if _, exists := seen[normalised]; exists {
			continue
		}
		seen[normalised] = struct{}{}
		trimmed = append(trimmed, normalised)
	}
	sort.Strings(trimmed)
	cfg.Whitelist = trimmed
	return cfg
}

// Params represents the canonical, runtime-ready interpretation of the vault
// configuration.
type Params struct {
	FeeRecipient         crypto.Address
	Rates                FeeRates
	DepositCap           *big.Int
	PerAddressDepositCap *big.Int
	WithdrawalCap        *big.Int
	WhitelistEnabled     bool
	Whitelist            []crypto.Address
	EmergencyMode        bool
}

// Parameters converts the textual configuration into runtime values,
// validating fee bounds and address encodings.
func (c Config) Parameters() (Params, error) {
	normalized := c.Normalise()
	params := Params{
		Rates: FeeRates{
			DepositBps:     normalized.DepositFeeBps,
			WithdrawalBps:  normalized.WithdrawalFeeBps,
			ManagementBps:  normalized.ManagementFeeBps,
			PerformanceBps: normalized.PerformanceFeeBps,
		},
		WhitelistEnabled: normalized.WhitelistEnabled,
		EmergencyMode:    normalized.EmergencyMode,
	}
	if !params.Rates.Valid() {
		return params, fmt.Errorf("vault: fee rate exceeds %d bps", MaxFeeBps)
	}
	if normalized.FeeRecipient == "" {
		return params, fmt.Errorf("vault: FeeRecipient is required")
	}
	recipient, err := crypto.DecodeAddress(normalized.FeeRecipient)
	if err != nil {
		return params, fmt.Errorf("vault: invalid FeeRecipient: %w", err)
	}
	if recipient.IsZero() {
		return params, fmt.Errorf("vault: FeeRecipient must not be the zero address")
	}
	params.FeeRecipient = recipient

	if params.DepositCap, err = parseAmount(normalized.DepositCap); err != nil {
		return params, fmt.Errorf("vault: invalid DepositCap: %w", err)
	}
	if params.PerAddressDepositCap, err = parseAmount(normalized.PerAddressDepositCap); err != nil {
		return params, fmt.Errorf("vault: invalid PerAddressDepositCap: %w", err)
	}
	if params.WithdrawalCap, err = parseAmount(normalized.WithdrawalCap); err != nil {
		return params, fmt.Errorf("vault: invalid WithdrawalCap: %w", err)
	}

	for _, entry := range normalized.Whitelist {
		member, err := crypto.DecodeAddress(entry)
		if err != nil {
			return params, fmt.Errorf("vault: decode whitelist entry %q: %w", entry, err)
		}
		params.Whitelist = append(params.Whitelist, member)
	}
	return params, nil
}

// NewState builds the vault accounting singleton from validated parameters.
func (p Params) NewState(now uint64) (*VaultState, error) {
	state, err := NewVaultState(p.FeeRecipient, p.Rates, now)
	if err != nil {
		return nil, err
	}
	if p.DepositCap != nil {
		state.DepositCap = new(big.Int).Set(p.DepositCap)
	}
	if p.PerAddressDepositCap != nil {
		state.PerAddressDepositCap = new(big.Int).Set(p.PerAddressDepositCap)
	}
	if p.WithdrawalCap != nil {
		state.WithdrawalCap = new(big.Int).Set(p.WithdrawalCap)
	}
	state.WhitelistEnabled = p.WhitelistEnabled
	state.EmergencyMode = p.EmergencyMode
	for _, member := range p.Whitelist {
		state.Whitelist[string(member.Bytes())] = true
	}
	return state, nil
}

func parseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("not a base-10 integer: %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("must not be negative: %q", raw)
	}
	return amount, nil
}
