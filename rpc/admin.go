package rpc

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/crypto"
	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/rpc/middleware"
)

type adminFeeRequest struct {
	Kind string `json:"kind"`
	Bps  uint16 `json:"bps"`
}

type adminFeeRecipientRequest struct {
	Recipient string `json:"recipient"`
}

type adminCapRequest struct {
	Kind string  `json:"kind"`
	Cap  *string `json:"cap"`
}

type adminWhitelistRequest struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Member  string `json:"member,omitempty"`
	Allowed *bool  `json:"allowed,omitempty"`
}

type adminEmergencyRequest struct {
	Active bool `json:"active"`
}

type adminPauseRequest struct {
	Paused bool `json:"paused"`
}

func (s *Server) adminCaller(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody("missing caller identity"))
		return crypto.Address{}, false
	}
	return caller, true
}

func (s *Server) handleAdminFees(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminCaller(w, r)
	if !ok {
		return
	}
	var req adminFeeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var err error
	switch strings.ToLower(strings.TrimSpace(req.Kind)) {
	case "deposit":
		err = s.engine.SetDepositFee(caller, req.Bps)
	case "withdrawal":
		err = s.engine.SetWithdrawalFee(caller, req.Bps)
	case "management":
		err = s.engine.SetManagementFee(caller, req.Bps)
	case "performance":
		err = s.engine.SetPerformanceFee(caller, req.Bps)
	default:
		writeError(w, badRequestf("unknown fee kind %q", req.Kind))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.finishOperation(w, "admin_set_fee", map[string]string{"status": "ok"})
}

func (s *Server) handleAdminFeeRecipient(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminCaller(w, r)
	if !ok {
		return
	}
	var req adminFeeRecipientRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	recipient, err := parseAddress(req.Recipient, "recipient")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.SetFeeRecipient(caller, recipient); err != nil {
		writeError(w, err)
		return
	}
	s.finishOperation(w, "admin_set_fee_recipient", map[string]string{"status": "ok"})
}

func (s *Server) handleAdminCaps(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminCaller(w, r)
	if !ok {
		return
	}
	var req adminCapRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	// A null cap disables the limit.
	var limit *big.Int
	if req.Cap != nil {
		parsed, err := parseAmount(*req.Cap, "cap")
		if err != nil {
			writeError(w, err)
			return
		}
		limit = parsed
	}
	var err error
	switch strings.ToLower(strings.TrimSpace(req.Kind)) {
	case "deposit":
		err = s.engine.SetDepositCap(caller, limit)
	case "per-address":
		err = s.engine.SetPerAddressDepositCap(caller, limit)
	case "withdrawal":
		err = s.engine.SetWithdrawalCap(caller, limit)
	default:
		writeError(w, badRequestf("unknown cap kind %q", req.Kind))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	s.finishOperation(w, "admin_set_cap", map[string]string{"status": "ok"})
}

func (s *Server) handleAdminWhitelist(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminCaller(w, r)
	if !ok {
		return
	}
	var req adminWhitelistRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	switch {
	case strings.TrimSpace(req.Member) != "":
		member, err := parseAddress(req.Member, "member")
		if err != nil {
			writeError(w, err)
			return
		}
		allowed := true
		if req.Allowed != nil {
			allowed = *req.Allowed
		}
		if err := s.engine.UpdateWhitelist(caller, member, allowed); err != nil {
			writeError(w, err)
			return
		}
	case req.Enabled != nil:
		if err := s.engine.SetWhitelistEnabled(caller, *req.Enabled); err != nil {
			writeError(w, err)
			return
		}
	default:
		writeError(w, badRequestf("either member or enabled is required"))
		return
	}
	s.finishOperation(w, "admin_whitelist", map[string]string{"status": "ok"})
}

func (s *Server) handleAdminEmergency(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.adminCaller(w, r)
	if !ok {
		return
	}
	var req adminEmergencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.SetEmergencyMode(caller, req.Active); err != nil {
		writeError(w, err)
		return
	}
	s.finishOperation(w, "admin_emergency", map[string]string{"status": "ok"})
}

func (s *Server) handleAdminPause(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.adminCaller(w, r); !ok {
		return
	}
	var req adminPauseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if s.pauses == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("pause control unavailable"))
		return
	}
	s.pauses.SetPaused("vault", req.Paused)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
