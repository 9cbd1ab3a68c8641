package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
)

// AuthConfig configures bearer token validation for admin routes. Tokens are
// HMAC-signed JWTs whose subject claim carries the caller's bech32 address.
type AuthConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

type contextKey string

const contextKeyCaller contextKey = "rpc.caller"

// Authenticator gates admin routes behind signed bearer tokens.
type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	logger *slog.Logger
}

// NewAuthenticator builds an Authenticator. A nil logger falls back to the
// process default.
func NewAuthenticator(cfg AuthConfig, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &Authenticator{
		cfg:    cfg,
		secret: []byte(strings.TrimSpace(cfg.Secret)),
		logger: logger,
	}
}

// Middleware rejects requests without a valid bearer token and stores the
// authenticated caller address on the request context.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearer(r.Header.Get("Authorization"))
			if tokenString == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			caller, err := a.verify(tokenString)
			if err != nil {
				a.logger.Warn("auth: token rejected", "err", err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), contextKeyCaller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Authenticator) verify(tokenString string) (crypto.Address, error) {
	if len(a.secret) == 0 {
		return crypto.Address{}, errors.New("auth secret not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return crypto.Address{}, err
	}
	if !token.Valid {
		return crypto.Address{}, errors.New("token invalid")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return crypto.Address{}, errors.New("subject claim missing")
	}
	caller, err := crypto.DecodeAddress(subject)
	if err != nil {
		return crypto.Address{}, err
	}
	return caller, nil
}

// CallerFromContext returns the authenticated caller address set by the
// middleware.
func CallerFromContext(ctx context.Context) (crypto.Address, bool) {
	caller, ok := ctx.Value(contextKeyCaller).(crypto.Address)
	return caller, ok
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
