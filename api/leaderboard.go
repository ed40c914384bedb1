// api/leaderboard.go
package api

import (
	"log"
	"net/http"

	"coinhype/config"
	"coinhype/crypto"
)

/* =========================
   RESPONSE TYPES
========================= */

// LeaderboardEntryResponse represents a single leaderboard entry
type LeaderboardEntryResponse struct {
	Rank          int    `json:"rank"`
	WalletAddress string `json:"walletAddress"`
	Pnl           int64  `json:"pnl"`
}

/* =========================
   HTTP ENDPOINTS
========================= */

// handleGetLeaderboard handles GET /api/leaderboard
// Query params: wallet (optional) - get user's position
func (h *handlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.Store.Leaderboard(ctx, config.LeaderboardSize)
	if err != nil {
		log.Printf("❌ Failed to get leaderboard: %v", err)
		sendError(w, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	board := make([]LeaderboardEntryResponse, 0, len(records))
	for _, record := range records {
		board = append(board, LeaderboardEntryResponse{
			Rank:          record.Rank,
			WalletAddress: record.WalletAddress,
			Pnl:           record.Amount,
		})
	}
	response := map[string]any{"leaderboard": board}

	if walletParam := r.URL.Query().Get("wallet"); walletParam != "" {
		wallet, err := crypto.NormalizeAddress(walletParam)
		if err != nil {
			sendServiceError(w, err)
			return
		}

		userInTop := false
		for _, entry := range board {
			if entry.WalletAddress == wallet {
				userInTop = true
				break
			}
		}

		// Outside the top entries, look up their position
		if !userInTop {
			userRecord, err := h.Store.LeaderboardRank(ctx, wallet)
			if err != nil {
				log.Printf("⚠️  Failed to get user rank: %v", err)
			} else if userRecord != nil {
				response["userPosition"] = LeaderboardEntryResponse{
					Rank:          userRecord.Rank,
					WalletAddress: userRecord.WalletAddress,
					Pnl:           userRecord.Amount,
				}
			}
		}
	}

	sendJSON(w, http.StatusOK, response)
}
