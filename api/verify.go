package api

import (
	"net/http"

	"coinhype/settle"
)

/* =========================
   HEALTH CHECK ENDPOINT
========================= */

// handleHealthCheck handles GET /api/health
func (h *handlers) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.Store.Health(r.Context())

	response := map[string]any{"message": "Health check completed"}
	healthy := true
	for name, s := range status {
		response[name] = s
		if s != "ok" {
			healthy = false
		}
	}
	if h.Crash != nil {
		response["crashPhase"] = h.Crash.State().Snapshot().Phase
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	sendJSON(w, code, response)
}

/* =========================
   VERIFICATION ENDPOINT
========================= */

// handleVerify handles POST /api/verify. It recomputes an outcome from
// revealed seeds and needs no session.
func (h *handlers) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req settle.VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.Service.Verify(req)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"valid":     v.Valid,
		"hashValid": v.HashValid,
		"outcome":   v.Outcome,
	})
}
