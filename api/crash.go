package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"coinhype/crypto"
	"coinhype/db"
	"coinhype/game"
	"coinhype/settle"
	"coinhype/ws"

	"github.com/go-chi/chi/v5"
)

/* =========================
   REQUEST/RESPONSE TYPES
========================= */

// CrashBetRequest places a bet in the live crash round
type CrashBetRequest struct {
	Amount      int64   `json:"amount"`
	AutoCashout float64 `json:"autoCashout,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

/* =========================
   CRASH GAME ENDPOINTS
========================= */

// handleGetCrashHistory handles GET /api/crash/history
func (h *handlers) handleGetCrashHistory(w http.ResponseWriter, r *http.Request) {
	if h.Crash == nil {
		sendError(w, http.StatusServiceUnavailable, "Crash rounds are disabled")
		return
	}
	history := h.Crash.State().GetHistory()
	sendJSON(w, http.StatusOK, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

// handleGetCrashRound handles GET /api/crash/history/{gameId}
func (h *handlers) handleGetCrashRound(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	record, bets, err := h.Store.CrashRound(r.Context(), gameID)
	if err != nil {
		log.Printf("❌ Failed to get crash round %s: %v", gameID, err)
		sendError(w, http.StatusInternalServerError, "Failed to retrieve crash round")
		return
	}
	if record == nil {
		sendError(w, http.StatusNotFound, "Crash round not found")
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"game": record,
		"bets": bets,
	})
}

// handleCrashBet handles POST /api/crash/bet
func (h *handlers) handleCrashBet(w http.ResponseWriter, r *http.Request) {
	if h.Crash == nil {
		sendError(w, http.StatusServiceUnavailable, "Crash rounds are disabled")
		return
	}

	var req CrashBetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	bet, balance, err := h.Crash.PlaceBet(r.Context(), userID(r), req.Amount, req.AutoCashout)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"gameId":  h.Crash.State().Snapshot().GameID,
		"bet":     bet,
		"balance": balance,
	})
}

// handleCrashCashout handles POST /api/crash/cashout
func (h *handlers) handleCrashCashout(w http.ResponseWriter, r *http.Request) {
	if h.Crash == nil {
		sendError(w, http.StatusServiceUnavailable, "Crash rounds are disabled")
		return
	}

	res, err := h.Crash.Cashout(r.Context(), userID(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"cashout": res})
}

/* =========================
   HELPER FUNCTIONS
========================= */

// sendError sends an error response
func sendError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Error:   message,
	})
}

// sendJSON sends payload with "success": true added
func sendJSON(w http.ResponseWriter, statusCode int, payload map[string]any) {
	payload["success"] = true
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrUnknownGame), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidParams),
		errors.Is(err, settle.ErrBetTooSmall),
		errors.Is(err, settle.ErrPayoutCapExceeded),
		errors.Is(err, crypto.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, settle.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, settle.ErrDemoCooldown),
		errors.Is(err, settle.ErrDuplicateRequest),
		errors.Is(err, ws.ErrBettingClosed),
		errors.Is(err, ws.ErrAlreadyBet),
		errors.Is(err, ws.ErrNoActiveBet):
		return http.StatusConflict
	case errors.Is(err, crypto.ErrInvalidSignature),
		errors.Is(err, crypto.ErrSignerMismatch),
		errors.Is(err, crypto.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// sendServiceError reports err with its mapped status. Internal errors are
// logged and hidden from the client.
func sendServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("❌ Request failed: %v", err)
		sendError(w, status, "Internal server error")
		return
	}
	sendError(w, status, err.Error())
}
