package rpc

import (
	"errors"
	"net/http"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/state"
	nativecommon "github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/common"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/native/vault"
)

type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

// writeError maps engine and ledger failures onto HTTP statuses. Gate
// rejections surface as 403, balance and cap violations as 409, unknown
// failures as 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		writeJSON(w, httpErr.status, errorBody(httpErr.message))
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vault.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, vault.ErrEmergencyMode),
		errors.Is(err, vault.ErrNotWhitelisted),
		errors.Is(err, nativecommon.ErrModulePaused):
		status = http.StatusForbidden
	case errors.Is(err, vault.ErrDepositCapExceeded),
		errors.Is(err, vault.ErrWithdrawalCapExceeded),
		errors.Is(err, nativecommon.ErrQuotaAmountExceeded):
		status = http.StatusConflict
	case errors.Is(err, vault.ErrInsufficientShares),
		errors.Is(err, vault.ErrInsufficientAllowance),
		errors.Is(err, state.ErrInsufficientFunds),
		errors.Is(err, state.ErrInsufficientShares):
		status = http.StatusConflict
	case errors.Is(err, state.ErrVaultNotInitialised):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}
