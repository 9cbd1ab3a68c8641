package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
)

const testSecret = "vault-admin-test-secret"

func testAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.VaultPrefix, raw)
}

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func adminClaims(subject string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "vaultd",
		Audience:  jwt.ClaimStrings{"vault-admin"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func authRequest(t *testing.T, auth *Authenticator, token string) (*httptest.ResponseRecorder, crypto.Address, bool) {
	t.Helper()
	var (
		caller crypto.Address
		seen   bool
	)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, seen = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/fees", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, caller, seen
}

func TestAuthAcceptsSignedToken(t *testing.T) {
	admin := testAddress(0x0a)
	auth := NewAuthenticator(AuthConfig{
		Secret:   testSecret,
		Issuer:   "vaultd",
		Audience: "vault-admin",
	}, nil)

	token := signToken(t, testSecret, adminClaims(admin.String()))
	rec, caller, seen := authRequest(t, auth, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, seen)
	require.True(t, caller.Equal(admin))
}

func TestAuthRejectsMissingToken(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Secret: testSecret}, nil)
	rec, _, seen := authRequest(t, auth, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, seen)
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	admin := testAddress(0x0a)
	auth := NewAuthenticator(AuthConfig{Secret: testSecret}, nil)

	token := signToken(t, "some-other-secret", adminClaims(admin.String()))
	rec, _, _ := authRequest(t, auth, token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	admin := testAddress(0x0a)
	auth := NewAuthenticator(AuthConfig{Secret: testSecret, ClockSkew: time.Second}, nil)

	claims := adminClaims(admin.String())
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	token := signToken(t, testSecret, claims)
	rec, _, _ := authRequest(t, auth, token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequiresExpiry(t *testing.T) {
	admin := testAddress(0x0a)
	auth := NewAuthenticator(AuthConfig{Secret: testSecret}, nil)

	claims := adminClaims(admin.String())
	claims.ExpiresAt = nil
	token := signToken(t, testSecret, claims)
	rec, _, _ := authRequest(t, auth, token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsIssuerMismatch(t *testing.T) {
	admin := testAddress(0x0a)
	auth := NewAuthenticator(AuthConfig{Secret: testSecret, Issuer: "vaultd"}, nil)

	claims := adminClaims(admin.String())
	claims.Issuer = "someone-else"
	token := signToken(t, testSecret, claims)
	rec, _, _ := authRequest(t, auth, token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsAudienceMismatch(t *testing.T) {
	admin := testAddress(0x0a)
	auth := NewAuthenticator(AuthConfig{Secret: testSecret, Audience: "vault-admin"}, nil)

	claims := adminClaims(admin.String())
	claims.Audience = jwt.ClaimStrings{"reporting"}
	token := signToken(t, testSecret, claims)
	rec, _, _ := authRequest(t, auth, token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsMalformedSubject(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Secret: testSecret}, nil)

	token := signToken(t, testSecret, adminClaims("not-a-bech32-address"))
	rec, _, _ := authRequest(t, auth, token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtractBearer(t *testing.T) {
	require.Equal(t, "abc", extractBearer("Bearer abc"))
	require.Equal(t, "abc", extractBearer("bearer abc"))
	require.Equal(t, "", extractBearer(""))
	require.Equal(t, "", extractBearer("Basic abc"))
	require.Equal(t, "", extractBearer("Bearer"))
}
