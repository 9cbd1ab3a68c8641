package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
)

type depositRequest struct {
	Caller   string `json:"caller"`
	Receiver string `json:"receiver"`
	Assets   string `json:"assets"`
}

type mintRequest struct {
	Caller   string `json:"caller"`
	Receiver string `json:"receiver"`
	Shares   string `json:"shares"`
}

type withdrawRequest struct {
	Caller   string `json:"caller"`
	Owner    string `json:"owner"`
	Receiver string `json:"receiver"`
	Assets   string `json:"assets"`
}

type redeemRequest struct {
	Caller   string `json:"caller"`
	Owner    string `json:"owner"`
	Receiver string `json:"receiver"`
	Shares   string `json:"shares"`
}

type approveRequest struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Shares  string `json:"shares"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		writeError(w, err)
		return
	}
	receiver, err := parseAddress(req.Receiver, "receiver")
	if err != nil {
		writeError(w, err)
		return
	}
	assets, err := parsePositiveAmount(req.Assets, "assets")
	if err != nil {
		writeError(w, err)
		return
	}
	shares, err := s.engine.Deposit(caller, assets, receiver)
	if err != nil {
		s.metrics.ObserveOperationError("deposit")
		writeError(w, err)
		return
	}
	s.finishOperation(w, "deposit", map[string]string{"shares": shares.String()})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		writeError(w, err)
		return
	}
	receiver, err := parseAddress(req.Receiver, "receiver")
	if err != nil {
		writeError(w, err)
		return
	}
	shares, err := parsePositiveAmount(req.Shares, "shares")
	if err != nil {
		writeError(w, err)
		return
	}
	assets, err := s.engine.Mint(caller, shares, receiver)
	if err != nil {
		s.metrics.ObserveOperationError("mint")
		writeError(w, err)
		return
	}
	s.finishOperation(w, "mint", map[string]string{"assets": assets.String()})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress(req.Owner, "owner")
	if err != nil {
		writeError(w, err)
		return
	}
	receiver, err := parseAddress(req.Receiver, "receiver")
	if err != nil {
		writeError(w, err)
		return
	}
	assets, err := parsePositiveAmount(req.Assets, "assets")
	if err != nil {
		writeError(w, err)
		return
	}
	shares, err := s.engine.Withdraw(caller, assets, receiver, owner)
	if err != nil {
		s.metrics.ObserveOperationError("withdraw")
		writeError(w, err)
		return
	}
	s.finishOperation(w, "withdraw", map[string]string{"shares": shares.String()})
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress(req.Owner, "owner")
	if err != nil {
		writeError(w, err)
		return
	}
	receiver, err := parseAddress(req.Receiver, "receiver")
	if err != nil {
		writeError(w, err)
		return
	}
	shares, err := parsePositiveAmount(req.Shares, "shares")
	if err != nil {
		writeError(w, err)
		return
	}
	assets, err := s.engine.Redeem(caller, shares, receiver, owner)
	if err != nil {
		s.metrics.ObserveOperationError("redeem")
		writeError(w, err)
		return
	}
	s.finishOperation(w, "redeem", map[string]string{"assets": assets.String()})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	owner, err := parseAddress(req.Owner, "owner")
	if err != nil {
		writeError(w, err)
		return
	}
	spender, err := parseAddress(req.Spender, "spender")
	if err != nil {
		writeError(w, err)
		return
	}
	shares, err := parseAmount(req.Shares, "shares")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ledger.ApproveShares(owner, spender, shares); err != nil {
		writeError(w, err)
		return
	}
	s.finishOperation(w, "approve", map[string]string{"shares": shares.String()})
}

func (s *Server) handleCollectFees(w http.ResponseWriter, r *http.Request) {
	minted, err := s.engine.CollectFees()
	if err != nil {
		s.metrics.ObserveOperationError("collect_fees")
		writeError(w, err)
		return
	}
	s.metrics.ObserveFeeCollection()
	s.finishOperation(w, "collect_fees", map[string]string{"sharesMinted": minted.String()})
}

// finishOperation persists the mutated state, refreshes gauges and writes the
// success payload.
func (s *Server) finishOperation(w http.ResponseWriter, op string, payload map[string]string) {
	if err := s.ledger.Commit(); err != nil {
		s.logger.Error("rpc: commit failed", "op", op, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("persistence failure"))
		return
	}
	s.metrics.ObserveOperation(op)
	s.refreshGauges()
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) refreshGauges() {
	totalAssets, err := s.engine.TotalAssets()
	if err != nil {
		return
	}
	vaultState, err := s.engine.State()
	if err != nil {
		return
	}
	s.metrics.SetTotals(totalAssets, vaultState.TotalShares)
	if price, err := s.engine.ShareValue(); err == nil {
		s.metrics.SetSharePrice(price)
	}
}

// --- views ---

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	vaultState, err := s.engine.State()
	if err != nil {
		writeError(w, err)
		return
	}
	totalAssets, err := s.engine.TotalAssets()
	if err != nil {
		writeError(w, err)
		return
	}
	whitelist := make([]string, 0, len(vaultState.Whitelist))
	for raw := range vaultState.Whitelist {
		whitelist = append(whitelist, crypto.NewAddress(crypto.VaultPrefix, []byte(raw)).String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"totalAssets":          totalAssets.String(),
		"totalShares":          vaultState.TotalShares.String(),
		"feeRecipient":         vaultState.FeeRecipient.String(),
		"lastFeeCollection":    vaultState.LastFeeCollection,
		"highWaterMark":        vaultState.HighWaterMark.String(),
		"depositCap":           capString(vaultState.DepositCap),
		"perAddressDepositCap": capString(vaultState.PerAddressDepositCap),
		"withdrawalCap":        capString(vaultState.WithdrawalCap),
		"whitelistEnabled":     vaultState.WhitelistEnabled,
		"whitelist":            whitelist,
		"emergencyMode":        vaultState.EmergencyMode,
	})
}

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	rates, err := s.engine.FeeRates()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint16{
		"depositBps":     rates.DepositBps,
		"withdrawalBps":  rates.WithdrawalBps,
		"managementBps":  rates.ManagementBps,
		"performanceBps": rates.PerformanceBps,
	})
}

func (s *Server) handlePendingManagementFee(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engine.PendingManagementFee()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pending": pending.String()})
}

func (s *Server) handleShareValue(w http.ResponseWriter, r *http.Request) {
	price, err := s.engine.ShareValue()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sharePrice": price.String()})
}

func (s *Server) handleMax(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.URL.Query().Get("addr"), "addr")
	if err != nil {
		writeError(w, err)
		return
	}
	var limit *big.Int
	switch op := chi.URLParam(r, "op"); op {
	case "deposit":
		limit, err = s.engine.MaxDeposit(addr)
	case "mint":
		limit, err = s.engine.MaxMint(addr)
	case "withdraw":
		limit, err = s.engine.MaxWithdraw(addr)
	case "redeem":
		limit, err = s.engine.MaxRedeem(addr)
	default:
		writeError(w, badRequestf("unknown operation %q", op))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if limit == nil {
		writeJSON(w, http.StatusOK, map[string]any{"limit": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"limit": limit.String()})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	amount, err := parsePositiveAmount(r.URL.Query().Get("amount"), "amount")
	if err != nil {
		writeError(w, err)
		return
	}
	var result *big.Int
	switch op := chi.URLParam(r, "op"); op {
	case "deposit":
		result, err = s.engine.PreviewDeposit(amount)
	case "mint":
		result, err = s.engine.PreviewMint(amount)
	case "withdraw":
		result, err = s.engine.PreviewWithdraw(amount)
	case "redeem":
		result, err = s.engine.PreviewRedeem(amount)
	default:
		writeError(w, badRequestf("unknown operation %q", op))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result.String()})
}

// --- parsing helpers ---

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequestf("invalid request body: %v", err)
	}
	return nil
}

func parseAddress(raw, field string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, badRequestf("invalid %s address", field)
	}
	return addr, nil
}

func parseAmount(raw, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, badRequestf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, badRequestf("invalid %s amount", field)
	}
	return amount, nil
}

func parsePositiveAmount(raw, field string) (*big.Int, error) {
	amount, err := parseAmount(raw, field)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, badRequestf("%s must be positive", field)
	}
	return amount, nil
}

func capString(limit *big.Int) any {
	if limit == nil {
		return nil
	}
	return limit.String()
}

func badRequestf(format string, args ...any) error {
	return &httpError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}
