package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/config"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/events"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/state"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
	nativecommon "github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/common"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/vault"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/observability/logging"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/observability/metrics"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/rpc"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/rpc/middleware"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/storage"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/storage/vaultstore"
)

func main() {
	configFile := "./config.toml"
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("vaultd", cfg.Environment, logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	admin, err := crypto.DecodeAddress(cfg.Admin)
	if err != nil {
		logger.Error("invalid Admin address", "err", err)
		os.Exit(1)
	}
	params, err := cfg.Vault.Parameters()
	if err != nil {
		logger.Error("invalid vault parameters", "err", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "err", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "vault"))
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	vaultAddr := moduleAddress()
	manager := state.NewManager(vaultAddr)
	manager.SetStore(vaultstore.New(db))
	if err := manager.Load(); err != nil {
		logger.Error("failed to load state", "err", err)
		os.Exit(1)
	}
	if _, err := manager.GetVault(); err != nil {
		freshState, stateErr := params.NewState(uint64(time.Now().Unix()))
		if stateErr != nil {
			logger.Error("failed to build vault state", "err", stateErr)
			os.Exit(1)
		}
		if initErr := manager.InitVault(freshState); initErr != nil {
			logger.Error("failed to initialise vault", "err", initErr)
			os.Exit(1)
		}
		if commitErr := manager.Commit(); commitErr != nil {
			logger.Error("failed to persist vault state", "err", commitErr)
			os.Exit(1)
		}
		logger.Info("initialised fresh vault state")
	}

	pauses := nativecommon.NewPauses()
	vaultMetrics := metrics.Vault()

	engine := vault.NewEngine(vaultAddr)
	engine.SetState(manager)
	engine.SetLedgers(manager, manager)
	engine.SetAuthorizer(singleAdmin{admin: admin})
	engine.SetEmitter(multiEmitter{
		events.LogEmitter{Logger: logger},
		feeMetricsEmitter{metrics: vaultMetrics},
	})
	engine.SetPauses(pauses)

	secret, err := cfg.AuthSecret()
	if err != nil {
		logger.Error("failed to resolve auth secret", "err", err)
		os.Exit(1)
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Secret:   secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}, logger)
	limiter := middleware.NewRateLimiter(middleware.RateLimit{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	})

	server := rpc.NewServer(cfg.ListenAddress, rpc.Options{
		Engine:  engine,
		Ledger:  manager,
		Pauses:  pauses,
		Auth:    auth,
		Limiter: limiter,
		Logger:  logger,
		Metrics: vaultMetrics,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}
}

// singleAdmin authorizes exactly one operator address for admin operations.
type singleAdmin struct {
	admin crypto.Address
}

func (a singleAdmin) IsAuthorized(caller crypto.Address) bool {
	return a.admin.Equal(caller)
}

// multiEmitter fans each engine event out to every configured sink.
type multiEmitter []events.Emitter

func (m multiEmitter) Emit(evt events.Event) {
	for _, emitter := range m {
		emitter.Emit(evt)
	}
}

// feeMetricsEmitter records charged fee amounts from engine events.
type feeMetricsEmitter struct {
	metrics *metrics.VaultMetrics
}

func (f feeMetricsEmitter) Emit(evt events.Event) {
	switch e := evt.(type) {
	case events.VaultDeposit:
		f.metrics.ObserveFeeAccrued("deposit", e.Fee)
	case events.VaultWithdraw:
		f.metrics.ObserveFeeAccrued("withdrawal", e.Fee)
	case events.VaultFeesCollected:
		f.metrics.ObserveFeeAccrued("management", e.ManagementFee)
		f.metrics.ObserveFeeAccrued("performance", e.PerformanceFee)
	}
}

// moduleAddress derives the deterministic module account that holds the
// vault's pooled assets.
func moduleAddress() crypto.Address {
	seed := make([]byte, 20)
	copy(seed, []byte("vault/module/account"))
	return crypto.NewAddress(crypto.VaultPrefix, seed)
}
