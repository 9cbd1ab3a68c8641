package vault

import (
	"math/big"
	"strings"
	"testing"
)

func TestConfigNormaliseDeduplicatesWhitelist(t *testing.T) {
	member := makeAddress(0x21).String()
	cfg := Config{
		FeeRecipient: "  " + makeAddress(0x20).String() + "  ",
		Whitelist:    []string{member, " " + member + " ", "", strings.ToUpper(member)},
	}

	normalised := cfg.Normalise()
	if normalised.FeeRecipient != makeAddress(0x20).String() {
		t.Fatalf("recipient not trimmed: %q", normalised.FeeRecipient)
	}
	if len(normalised.Whitelist) != 1 {
		t.Fatalf("whitelist not deduplicated: %v", normalised.Whitelist)
	}
	if normalised.Whitelist[0] != member {
		t.Fatalf("unexpected whitelist entry: %q", normalised.Whitelist[0])
	}
}

func TestConfigParameters(t *testing.T) {
	recipient := makeAddress(0x20)
	member := makeAddress(0x21)
	cfg := Config{
		FeeRecipient:         recipient.String(),
		DepositFeeBps:        100,
		WithdrawalFeeBps:     50,
		ManagementFeeBps:     200,
		PerformanceFeeBps:    1000,
		DepositCap:           "1000000",
		PerAddressDepositCap: "",
		WithdrawalCap:        "0",
		WhitelistEnabled:     true,
		Whitelist:            []string{member.String()},
	}

	params, err := cfg.Parameters()
	if err != nil {
		t.Fatalf("parameters: %v", err)
	}
	if !params.FeeRecipient.Equal(recipient) {
		t.Fatalf("unexpected recipient: %s", params.FeeRecipient)
	}
	if params.DepositCap.Cmp(big.NewInt(1000000)) != 0 {
		t.Fatalf("unexpected deposit cap: %s", params.DepositCap)
	}
	if params.PerAddressDepositCap.Sign() != 0 || params.WithdrawalCap.Sign() != 0 {
		t.Fatalf("disabled caps not zero: %s %s", params.PerAddressDepositCap, params.WithdrawalCap)
	}
	if len(params.Whitelist) != 1 || !params.Whitelist[0].Equal(member) {
		t.Fatalf("unexpected whitelist: %v", params.Whitelist)
	}

	state, err := params.NewState(genesisTime)
	if err != nil {
		t.Fatalf("new state: %v", err)
	}
	if !state.WhitelistEnabled || !state.Whitelisted(member) {
		t.Fatalf("whitelist not carried into state")
	}
	if state.LastFeeCollection != genesisTime {
		t.Fatalf("unexpected collection timestamp: %d", state.LastFeeCollection)
	}
	if state.HighWaterMark.Sign() != 0 {
		t.Fatalf("mark must start at zero: %s", state.HighWaterMark)
	}
}

func TestConfigParametersRejectsBadInput(t *testing.T) {
	recipient := makeAddress(0x20).String()

	if _, err := (Config{FeeRecipient: recipient, DepositFeeBps: MaxFeeBps + 1}).Parameters(); err == nil {
		t.Fatalf("expected fee bound rejection")
	}
	if _, err := (Config{}).Parameters(); err == nil {
		t.Fatalf("expected missing recipient rejection")
	}
	if _, err := (Config{FeeRecipient: "not-an-address"}).Parameters(); err == nil {
		t.Fatalf("expected address rejection")
	}
	if _, err := (Config{FeeRecipient: recipient, DepositCap: "-5"}).Parameters(); err == nil {
		t.Fatalf("expected negative cap rejection")
	}
	if _, err := (Config{FeeRecipient: recipient, WithdrawalCap: "12x"}).Parameters(); err == nil {
		t.Fatalf("expected malformed cap rejection")
	}
}
