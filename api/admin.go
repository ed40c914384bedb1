package api

import (
	"log"
	"net/http"
	"strconv"

	"coinhype/config"
)

/* =========================
   ADMIN ENDPOINTS
========================= */

// handleNegativeBalances handles GET /api/admin/negative-balances. The
// ledger refuses negative balances, so anything listed here is corruption.
func (h *handlers) handleNegativeBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Store.NegativeBalances(r.Context())
	if err != nil {
		sendServiceError(w, err)
		return
	}
	if len(balances) > 0 {
		log.Printf("❌ %d negative balances found", len(balances))
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"balances": balances,
		"count":    len(balances),
	})
}

// handleAdminRounds handles GET /api/admin/rounds?limit=N
func (h *handlers) handleAdminRounds(w http.ResponseWriter, r *http.Request) {
	limit := config.MaxRoundHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > config.MaxAdminRounds {
			sendError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(config.MaxAdminRounds))
			return
		}
		limit = n
	}

	rounds, err := h.Store.AllRecentRounds(r.Context(), limit)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"rounds": rounds,
		"count":  len(rounds),
	})
}
