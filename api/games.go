package api

import (
	"net/http"
	"strings"

	"coinhype/game"
	"coinhype/settle"

	"github.com/go-chi/chi/v5"
)

// PlayRequest is the body of POST /api/games/{name}/play
type PlayRequest struct {
	Amount         int64       `json:"amount"`
	Params         game.Params `json:"params"`
	IdempotencyKey string      `json:"idempotencyKey,omitempty"`
}

/* =========================
   GAME ENDPOINTS
========================= */

// handleListGames handles GET /api/games
func (h *handlers) handleListGames(w http.ResponseWriter, r *http.Request) {
	games := h.Service.Games()
	sendJSON(w, http.StatusOK, map[string]any{
		"games":     games.Names(),
		"houseEdge": games.HouseEdge(),
		"minBet":    h.Config.MinBet,
		"maxPayout": h.Config.MaxPayout,
	})
}

// handleGameTables handles GET /api/games/{name}/tables. Games without a
// static table return only the house edge.
func (h *handlers) handleGameTables(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	games := h.Service.Games()
	if _, err := games.Lookup(name); err != nil {
		sendServiceError(w, err)
		return
	}

	response := map[string]any{
		"game":      name,
		"houseEdge": games.HouseEdge(),
	}
	tables := games.Tables()
	switch name {
	case "plinko":
		response["table"] = tables.Plinko
	case "keno":
		response["table"] = tables.Keno
	case "wheel":
		response["table"] = tables.Wheel
	case "slots":
		response["table"] = tables.Slots
	case "mines":
		// mine count -> multiplier after each safe reveal
		mines := make(map[int][]float64, game.MinesTiles-1)
		for m := 1; m < game.MinesTiles; m++ {
			mines[m] = game.MinesTable(m, games.HouseEdge())
		}
		response["table"] = mines
	}
	sendJSON(w, http.StatusOK, response)
}

// handlePlay handles POST /api/games/{name}/play. The Idempotency-Key
// header takes precedence over the body field.
func (h *handlers) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req PlayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(req.IdempotencyKey)
	}

	res, err := h.Service.Play(r.Context(), settle.PlayRequest{
		UserID:         userID(r),
		Game:           chi.URLParam(r, "name"),
		Amount:         req.Amount,
		Params:         req.Params,
		IdempotencyKey: key,
	})
	if err != nil {
		sendServiceError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, map[string]any{
		"round":    res.Round,
		"balance":  res.Round.Balance,
		"replayed": res.Replayed,
	})
}
