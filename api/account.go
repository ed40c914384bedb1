package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SetClientSeedRequest is the body of POST /api/seeds/client
type SetClientSeedRequest struct {
	ClientSeed string `json:"clientSeed"`
}

/* =========================
   SEED ENDPOINTS
========================= */

// handleGetSeeds handles GET /api/seeds. The active server seed is only
// shown as its hash.
func (h *handlers) handleGetSeeds(w http.ResponseWriter, r *http.Request) {
	pair, err := h.Service.SeedPair(r.Context(), userID(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"seedPair": pair})
}

// handleRotateSeed handles POST /api/seeds/rotate
func (h *handlers) handleRotateSeed(w http.ResponseWriter, r *http.Request) {
	revealed, next, err := h.Service.RotateSeed(r.Context(), userID(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"revealed": revealed,
		"seedPair": next,
	})
}

// handleSetClientSeed handles POST /api/seeds/client
func (h *handlers) handleSetClientSeed(w http.ResponseWriter, r *http.Request) {
	var req SetClientSeedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	revealed, next, err := h.Service.SetClientSeed(r.Context(), userID(r), req.ClientSeed)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"revealed": revealed,
		"seedPair": next,
	})
}

// handleRevealedSeeds handles GET /api/seeds/revealed
func (h *handlers) handleRevealedSeeds(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.Service.RevealedSeeds(r.Context(), userID(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"seedPairs": pairs,
		"count":     len(pairs),
	})
}

/* =========================
   BALANCE & HISTORY
========================= */

func (h *handlers) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Service.Balance(r.Context(), userID(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

// handleClaimDemo handles POST /api/balance/demo
func (h *handlers) handleClaimDemo(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Service.ClaimDemo(r.Context(), userID(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"balance":  balance,
		"credited": h.Config.DemoCredit,
	})
}

// handleGetHistory handles GET /api/history
func (h *handlers) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.History(r.Context(), userID(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"history": entries,
		"count":   len(entries),
	})
}

// handleGetRound handles GET /api/rounds/{id}. Other players' rounds are
// only visible to admins.
func (h *handlers) handleGetRound(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		sendError(w, http.StatusNotFound, "Round not found")
		return
	}
	round, err := h.Service.Round(r.Context(), id)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	if round == nil || (round.UserID != user && !h.Config.IsAdmin(user)) {
		sendError(w, http.StatusNotFound, "Round not found")
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"round": round})
}
