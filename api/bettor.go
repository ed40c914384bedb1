package api

import (
	"net/http"
)

// handleGetActiveBettors handles GET /api/crash/bettors
func (h *handlers) handleGetActiveBettors(w http.ResponseWriter, r *http.Request) {
	if h.Crash == nil {
		sendError(w, http.StatusServiceUnavailable, "Crash rounds are disabled")
		return
	}

	snapshot := h.Crash.State().Snapshot()
	sendJSON(w, http.StatusOK, map[string]any{
		"gameId":  snapshot.GameID,
		"phase":   snapshot.Phase,
		"bettors": snapshot.Bettors,
		"count":   len(snapshot.Bettors),
	})
}
