// Package config loads the vault daemon's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/vault"
)

// Log controls structured log output.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Auth configures admin endpoint authentication. The signing secret is read
// from the environment variable named by SecretEnv so it never lives in the
// config file.
type Auth struct {
	SecretEnv string `toml:"SecretEnv"`
	Issuer    string `toml:"Issuer"`
	Audience  string `toml:"Audience"`
}

// RateLimit bounds per-client request throughput on the RPC surface.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Config is the top-level daemon configuration.
type Config struct {
	ListenAddress string       `toml:"ListenAddress"`
	DataDir       string       `toml:"DataDir"`
	Environment   string       `toml:"Environment"`
	Admin         string       `toml:"Admin"`
	Log           Log          `toml:"log"`
	Auth          Auth         `toml:"auth"`
	RateLimit     RateLimit    `toml:"ratelimit"`
	Vault         vault.Config `toml:"vault"`
}

// Load reads the configuration from the given path, writing a commented
// default file when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown field %s", path, undecoded[0].String())
	}

	cfg.normalise()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalise() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8646"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./vault-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "dev"
	}
	if strings.TrimSpace(c.Auth.SecretEnv) == "" {
		c.Auth.SecretEnv = "VAULTD_AUTH_SECRET"
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 25
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 50
	}
	c.Vault = c.Vault.Normalise()
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Admin) == "" {
		return fmt.Errorf("config: Admin address is required")
	}
	if _, err := c.Vault.Parameters(); err != nil {
		return err
	}
	return nil
}

// AuthSecret resolves the admin JWT signing secret from the environment.
func (c *Config) AuthSecret() (string, error) {
	secret := strings.TrimSpace(os.Getenv(c.Auth.SecretEnv))
	if secret == "" {
		return "", fmt.Errorf("config: environment variable %s is empty", c.Auth.SecretEnv)
	}
	return secret, nil
}

// createDefault creates and saves a default configuration file. The result
// still needs the operator addresses filled in before the daemon will start.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8646",
		DataDir:       "./vault-data",
		Environment:   "dev",
		Log:           Log{Level: "info"},
		Auth: Auth{
			SecretEnv: "VAULTD_AUTH_SECRET",
			Issuer:    "vaultd",
			Audience:  "vault-admin",
		},
		RateLimit: RateLimit{RequestsPerSecond: 25, Burst: 50},
		Vault:     vault.Config{},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
