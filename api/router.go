package api

import (
	"context"
	"net/http"
	"strings"

	"coinhype/config"
	"coinhype/crypto"
	"coinhype/db"
	"coinhype/settle"
	"coinhype/state"
	"coinhype/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Store is the storage the handlers read outside the settlement service
type Store interface {
	EnsureUser(ctx context.Context, userID string) error
	NegativeBalances(ctx context.Context) ([]*state.Balance, error)
	AllRecentRounds(ctx context.Context, limit int) ([]*state.Round, error)
	Leaderboard(ctx context.Context, limit int) ([]*db.WalletPnLRecord, error)
	LeaderboardRank(ctx context.Context, wallet string) (*db.WalletPnLRecord, error)
	CrashRound(ctx context.Context, gameID string) (*db.CrashHistoryRecord, []*db.CrashBetRecord, error)
	Health(ctx context.Context) map[string]string

	StoreChallenge(ctx context.Context, address, challenge string) error
	ConsumeChallenge(ctx context.Context, address string) (string, error)
}

// Deps are the handlers' collaborators. Crash and WS may be nil when crash
// rounds are disabled.
type Deps struct {
	Service *settle.Service
	Store   Store
	Tokens  *crypto.TokenIssuer
	Config  *config.Config
	Crash   *ws.CrashEngine
	WS      http.Handler
}

type handlers struct {
	Deps
}

type ctxKey int

const userKey ctxKey = iota

// NewRouter builds the HTTP API
func NewRouter(d Deps) http.Handler {
	h := &handlers{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	if d.WS != nil {
		r.Handle("/ws", d.WS)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(limitBody)

		r.Get("/health", h.handleHealthCheck)
		r.Get("/games", h.handleListGames)
		r.Get("/games/{name}/tables", h.handleGameTables)
		r.Post("/verify", h.handleVerify)
		r.Get("/leaderboard", h.handleGetLeaderboard)

		r.Post("/auth/challenge", h.handleChallenge)
		r.Post("/auth/login", h.handleLogin)

		r.Get("/crash/history", h.handleGetCrashHistory)
		r.Get("/crash/history/{gameId}", h.handleGetCrashRound)
		r.Get("/crash/bettors", h.handleGetActiveBettors)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Post("/games/{name}/play", h.handlePlay)

			r.Get("/seeds", h.handleGetSeeds)
			r.Post("/seeds/rotate", h.handleRotateSeed)
			r.Post("/seeds/client", h.handleSetClientSeed)
			r.Get("/seeds/revealed", h.handleRevealedSeeds)

			r.Get("/balance", h.handleGetBalance)
			r.Post("/balance/demo", h.handleClaimDemo)
			r.Get("/history", h.handleGetHistory)
			r.Get("/rounds/{id}", h.handleGetRound)

			r.Post("/crash/bet", h.handleCrashBet)
			r.Post("/crash/cashout", h.handleCrashCashout)

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Get("/negative-balances", h.handleNegativeBalances)
				r.Get("/rounds", h.handleAdminRounds)
			})
		})
	})

	return r
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key, X-Requested-With")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBody)
		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves the Bearer session token to a user id
func (h *handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			sendError(w, http.StatusUnauthorized, "Authorization required")
			return
		}
		userID, err := h.Tokens.Parse(token)
		if err != nil {
			sendError(w, http.StatusUnauthorized, "Invalid or expired session")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, userID)))
	})
}

func (h *handlers) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Config.IsAdmin(userID(r)) {
			sendError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey).(string)
	return id
}
