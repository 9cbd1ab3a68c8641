// Package rpc exposes the vault engine over HTTP.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/state"
	nativecommon "github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/common"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/vault"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/observability/metrics"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/rpc/middleware"
)

// Server hosts the vault HTTP API.
type Server struct {
	engine  *vault.Engine
	ledger  *state.Manager
	pauses  *nativecommon.Pauses
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	logger  *slog.Logger
	metrics *metrics.VaultMetrics

	http *http.Server
}

// Options carries the server's collaborators.
type Options struct {
	Engine  *vault.Engine
	Ledger  *state.Manager
	Pauses  *nativecommon.Pauses
	Auth    *middleware.Authenticator
	Limiter *middleware.RateLimiter
	Logger  *slog.Logger
	Metrics *metrics.VaultMetrics
}

// NewServer builds the HTTP server for the given listen address.
func NewServer(listen string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine:  opts.Engine,
		ledger:  opts.Ledger,
		pauses:  opts.Pauses,
		auth:    opts.Auth,
		limiter: opts.Limiter,
		logger:  logger,
		metrics: opts.Metrics,
	}
	s.http = &http.Server{
		Addr:              listen,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware())
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1/vault", func(r chi.Router) {
		r.Post("/deposit", s.handleDeposit)
		r.Post("/mint", s.handleMint)
		r.Post("/withdraw", s.handleWithdraw)
		r.Post("/redeem", s.handleRedeem)
		r.Post("/approve", s.handleApprove)
		r.Post("/collect-fees", s.handleCollectFees)

		r.Get("/state", s.handleState)
		r.Get("/fees", s.handleFees)
		r.Get("/pending-management-fee", s.handlePendingManagementFee)
		r.Get("/share-value", s.handleShareValue)
		r.Get("/max/{op}", s.handleMax)
		r.Get("/preview/{op}", s.handlePreview)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Middleware())
		}
		r.Post("/fees", s.handleAdminFees)
		r.Post("/fee-recipient", s.handleAdminFeeRecipient)
		r.Post("/caps", s.handleAdminCaps)
		r.Post("/whitelist", s.handleAdminWhitelist)
		r.Post("/emergency", s.handleAdminEmergency)
		r.Post("/pause", s.handleAdminPause)
	})

	return r
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("rpc: listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		s.logger.Info("rpc: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.RequestIDFromContext(r.Context()),
		)
		s.metrics.ObserveRequest(r.URL.Path, http.StatusText(rec.status), elapsed.Seconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
