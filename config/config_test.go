package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testAdmin = "vlt1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqp7kx0v8"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
Admin = "`+testAdmin+`"

[vault]
FeeRecipient = "`+testAdmin+`"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":8646" {
		t.Fatalf("listen address default: %q", cfg.ListenAddress)
	}
	if cfg.DataDir != "./vault-data" {
		t.Fatalf("data dir default: %q", cfg.DataDir)
	}
	if cfg.Environment != "dev" {
		t.Fatalf("environment default: %q", cfg.Environment)
	}
	if cfg.Auth.SecretEnv != "VAULTD_AUTH_SECRET" {
		t.Fatalf("secret env default: %q", cfg.Auth.SecretEnv)
	}
	if cfg.RateLimit.RequestsPerSecond != 25 || cfg.RateLimit.Burst != 50 {
		t.Fatalf("rate limit defaults: %+v", cfg.RateLimit)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, `
Admin = "`+testAdmin+`"
Bogus = true

[vault]
FeeRecipient = "`+testAdmin+`"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown field rejection")
	}
}

func TestLoadRequiresAdmin(t *testing.T) {
	path := writeConfig(t, `
[vault]
FeeRecipient = "`+testAdmin+`"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing admin rejection")
	}
}

func TestLoadValidatesVaultParameters(t *testing.T) {
	path := writeConfig(t, `
Admin = "`+testAdmin+`"

[vault]
FeeRecipient = "`+testAdmin+`"
DepositFeeBps = 2001
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected fee bound rejection")
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.Issuer != "vaultd" || cfg.Auth.Audience != "vault-admin" {
		t.Fatalf("default auth: %+v", cfg.Auth)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
}

func TestAuthSecretFromEnvironment(t *testing.T) {
	cfg := &Config{Auth: Auth{SecretEnv: "VAULTD_TEST_SECRET"}}
	if _, err := cfg.AuthSecret(); err == nil {
		t.Fatalf("expected error for unset secret")
	}
	t.Setenv("VAULTD_TEST_SECRET", "hunter2")
	secret, err := cfg.AuthSecret()
	if err != nil {
		t.Fatalf("auth secret: %v", err)
	}
	if secret != "hunter2" {
		t.Fatalf("unexpected secret: %q", secret)
	}
}
