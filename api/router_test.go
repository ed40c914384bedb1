package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"coinhype/config"
	"coinhype/crypto"
	"coinhype/db"
	"coinhype/game"
	"coinhype/settle"
	"coinhype/settle/settletest"
	"coinhype/state"
	"coinhype/ws"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	player = "0x00000000000000000000000000000000000000aa"
	admin  = "0x00000000000000000000000000000000000000bb"
)

// fakeStore adds the API-only queries to the in-memory settlement store
type fakeStore struct {
	*settletest.Store

	mu       sync.Mutex
	users    map[string]bool
	negative []*state.Balance
	board    []*db.WalletPnLRecord
	redisErr string
}

func (f *fakeStore) EnsureUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = true
	return nil
}

func (f *fakeStore) hasUser(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[userID]
}

func (f *fakeStore) failRedis(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redisErr = msg
}

func (f *fakeStore) NegativeBalances(context.Context) ([]*state.Balance, error) {
	return f.negative, nil
}

func (f *fakeStore) Leaderboard(_ context.Context, limit int) ([]*db.WalletPnLRecord, error) {
	if len(f.board) > limit {
		return f.board[:limit], nil
	}
	return f.board, nil
}

func (f *fakeStore) LeaderboardRank(_ context.Context, wallet string) (*db.WalletPnLRecord, error) {
	for _, r := range f.board {
		if r.WalletAddress == wallet {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CrashRound(context.Context, string) (*db.CrashHistoryRecord, []*db.CrashBetRecord, error) {
	return nil, nil, nil
}

func (f *fakeStore) Health(context.Context) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := map[string]string{"redis": "ok", "postgres": "ok"}
	if f.redisErr != "" {
		status["redis"] = "error: " + f.redisErr
	}
	return status
}

type testServer struct {
	*httptest.Server
	store  *fakeStore
	tokens *crypto.TokenIssuer
}

func newTestServer(t *testing.T, crash *ws.CrashEngine) *testServer {
	t.Helper()
	games, err := game.NewRegistry(0.01, nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	mem := settletest.NewStore()
	store := &fakeStore{Store: mem, users: make(map[string]bool)}
	cfg := &config.Config{
		MinBet:       1,
		MaxPayout:    100_000,
		DemoCredit:   500,
		AdminWallets: map[string]bool{admin: true},
	}
	svc := settle.NewService(games, mem, mem, mem, settle.Options{
		MinBet:     cfg.MinBet,
		MaxPayout:  cfg.MaxPayout,
		DemoCredit: cfg.DemoCredit,
	})
	tokens := crypto.NewTokenIssuer("test-secret-0123456789")

	srv := httptest.NewServer(NewRouter(Deps{
		Service: svc,
		Store:   store,
		Tokens:  tokens,
		Config:  cfg,
		Crash:   crash,
	}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store, tokens: tokens}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, _, err := s.tokens.Issue(userID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return token
}

// do sends a JSON request and decodes the JSON response
func (s *testServer) do(t *testing.T, method, path, token string, body any, header ...string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s response: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do(t, http.MethodGet, "/api/health", "", nil)
	if code != http.StatusOK || body["redis"] != "ok" || body["success"] != true {
		t.Fatalf("Expected healthy response, got %d %v", code, body)
	}

	s.store.failRedis("connection refused")
	code, body = s.do(t, http.MethodGet, "/api/health", "", nil)
	if code != http.StatusServiceUnavailable || !strings.HasPrefix(body["redis"].(string), "error") {
		t.Errorf("Expected 503 with redis error, got %d %v", code, body)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)

	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	sign := func(message string) string {
		sig, err := ethcrypto.Sign(accounts.TextHash([]byte(message)), key)
		if err != nil {
			t.Fatalf("Sign failed: %v", err)
		}
		sig[ethcrypto.RecoveryIDOffset] += 27
		return hexutil.Encode(sig)
	}

	t.Run("NoChallenge", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Address: address, Signature: sign("x")})
		if code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", code)
		}
	})

	t.Run("InvalidAddress", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPost, "/api/auth/challenge", "", ChallengeRequest{Address: "not-an-address"})
		if code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", code)
		}
	})

	t.Run("WrongMessage", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPost, "/api/auth/challenge", "", ChallengeRequest{Address: address})
		if code != http.StatusOK {
			t.Fatalf("challenge failed with %d", code)
		}
		code, _ = s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Address: address, Signature: sign("something else")})
		if code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", code)
		}
	})

	t.Run("SignedChallenge", func(t *testing.T) {
		code, body := s.do(t, http.MethodPost, "/api/auth/challenge", "", ChallengeRequest{Address: address})
		if code != http.StatusOK {
			t.Fatalf("challenge failed with %d", code)
		}
		message := body["message"].(string)

		code, body = s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Address: address, Signature: sign(message)})
		if code != http.StatusOK {
			t.Fatalf("login failed with %d %v", code, body)
		}
		want := strings.ToLower(address)
		if body["address"] != want || !s.store.hasUser(want) {
			t.Errorf("Expected user %s to be created, got %v", want, body)
		}

		code, body = s.do(t, http.MethodGet, "/api/balance", body["token"].(string), nil)
		if code != http.StatusOK || body["balance"] != 0.0 {
			t.Errorf("Expected zero balance, got %d %v", code, body)
		}

		// The challenge is single use
		code, _ = s.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Address: address, Signature: sign(message)})
		if code != http.StatusUnauthorized {
			t.Errorf("Expected replayed login to fail, got %d", code)
		}
	})
}

func TestPlay(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, player)
	s.store.SetBalance(player, 1000)
	dice := map[string]any{"target": 50.0, "condition": "over"}

	t.Run("RequiresSession", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPost, "/api/games/dice/play", "", PlayRequest{Amount: 10, Params: dice})
		if code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", code)
		}
		code, _ = s.do(t, http.MethodPost, "/api/games/dice/play", "garbage", PlayRequest{Amount: 10, Params: dice})
		if code != http.StatusUnauthorized {
			t.Errorf("Expected 401 for bad token, got %d", code)
		}
	})

	t.Run("IdempotentReplay", func(t *testing.T) {
		code, first := s.do(t, http.MethodPost, "/api/games/dice/play", token,
			PlayRequest{Amount: 100, Params: dice}, "Idempotency-Key", "bet-1")
		if code != http.StatusOK || first["replayed"] != false {
			t.Fatalf("Expected settled round, got %d %v", code, first)
		}
		code, second := s.do(t, http.MethodPost, "/api/games/dice/play", token,
			PlayRequest{Amount: 100, Params: dice, IdempotencyKey: "bet-1"})
		if code != http.StatusOK || second["replayed"] != true {
			t.Fatalf("Expected replay, got %d %v", code, second)
		}

		r1 := first["round"].(map[string]any)
		r2 := second["round"].(map[string]any)
		if r1["id"] != r2["id"] {
			t.Errorf("Replay returned a different round: %v vs %v", r1["id"], r2["id"])
		}
		if r1["serverSeedHash"] == "" || r1["nonce"] != 0.0 {
			t.Errorf("Expected seed commitment on the round, got %v", r1)
		}
		balance, _ := s.store.Balance(context.Background(), player)
		if float64(balance) != first["balance"] {
			t.Errorf("Replay moved the balance: %d vs %v", balance, first["balance"])
		}
	})

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"UnknownGame", "/api/games/blackjack/play", PlayRequest{Amount: 10}, http.StatusNotFound},
		{"InvalidParams", "/api/games/dice/play", PlayRequest{Amount: 10, Params: game.Params{"target": 99.9}}, http.StatusBadRequest},
		{"BetTooSmall", "/api/games/dice/play", PlayRequest{Amount: 0, Params: dice}, http.StatusBadRequest},
		{"PayoutCap", "/api/games/limbo/play", PlayRequest{Amount: 100, Params: game.Params{"target": 5000.0}}, http.StatusBadRequest},
		{"Insufficient", "/api/games/dice/play", PlayRequest{Amount: 50_000, Params: dice}, http.StatusPaymentRequired},
		{"BadBody", "/api/games/dice/play", "{not json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := s.do(t, http.MethodPost, tt.path, token, tt.body)
			if code != tt.want {
				t.Errorf("Expected %d, got %d %v", tt.want, code, body)
			}
			if body["success"] != false || body["error"] == "" {
				t.Errorf("Expected error envelope, got %v", body)
			}
		})
	}
}

func TestRounds(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, player)
	s.store.SetBalance(player, 1000)

	_, body := s.do(t, http.MethodPost, "/api/games/coinflip/play", token,
		PlayRequest{Amount: 10, Params: game.Params{"side": "heads"}})
	id := body["round"].(map[string]any)["id"].(string)

	t.Run("Owner", func(t *testing.T) {
		code, body := s.do(t, http.MethodGet, "/api/rounds/"+id, token, nil)
		if code != http.StatusOK || body["round"].(map[string]any)["id"] != id {
			t.Errorf("Expected own round, got %d %v", code, body)
		}
	})

	t.Run("OtherPlayer", func(t *testing.T) {
		code, _ := s.do(t, http.MethodGet, "/api/rounds/"+id, s.token(t, "0xsomeoneelse"), nil)
		if code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", code)
		}
	})

	t.Run("Admin", func(t *testing.T) {
		code, _ := s.do(t, http.MethodGet, "/api/rounds/"+id, s.token(t, admin), nil)
		if code != http.StatusOK {
			t.Errorf("Expected admin to see round, got %d", code)
		}
	})

	t.Run("MalformedID", func(t *testing.T) {
		code, _ := s.do(t, http.MethodGet, "/api/rounds/not-a-uuid", token, nil)
		if code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", code)
		}
	})

	t.Run("History", func(t *testing.T) {
		code, body := s.do(t, http.MethodGet, "/api/history", token, nil)
		if code != http.StatusOK || body["count"] != 1.0 {
			t.Errorf("Expected one history entry, got %d %v", code, body)
		}
	})
}

func TestSeedsAndVerify(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, player)

	code, body := s.do(t, http.MethodGet, "/api/seeds", token, nil)
	if code != http.StatusOK {
		t.Fatalf("Expected seeds, got %d", code)
	}
	active := body["seedPair"].(map[string]any)
	if _, ok := active["serverSeed"]; ok {
		t.Errorf("Active server seed must not be exposed: %v", active)
	}

	code, body = s.do(t, http.MethodPost, "/api/seeds/client", token, SetClientSeedRequest{ClientSeed: "lucky"})
	if code != http.StatusOK {
		t.Fatalf("SetClientSeed failed with %d %v", code, body)
	}
	revealed := body["revealed"].(map[string]any)
	if revealed["serverSeed"] == "" || body["seedPair"].(map[string]any)["clientSeed"] != "lucky" {
		t.Errorf("Expected revealed pair and new client seed, got %v", body)
	}

	code, _ = s.do(t, http.MethodPost, "/api/seeds/client", token, SetClientSeedRequest{ClientSeed: ""})
	if code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty client seed, got %d", code)
	}

	code, body = s.do(t, http.MethodPost, "/api/verify", "", settle.VerifyRequest{
		Game:       "dice",
		ServerSeed: "server",
		ClientSeed: "client",
		Params:     game.Params{"target": 50.0, "condition": "over"},
	})
	if code != http.StatusOK {
		t.Fatalf("Verify failed with %d %v", code, body)
	}
	outcome := body["outcome"].(map[string]any)
	if outcome["result"].(map[string]any)["roll"] != 87.83 || outcome["multiplier"] != 1.98 {
		t.Errorf("Unexpected verified outcome %v", outcome)
	}
}

func TestDemoCredit(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.token(t, player)

	code, body := s.do(t, http.MethodPost, "/api/balance/demo", token, nil)
	if code != http.StatusOK || body["balance"] != 500.0 {
		t.Fatalf("Expected demo credit, got %d %v", code, body)
	}
	code, _ = s.do(t, http.MethodPost, "/api/balance/demo", token, nil)
	if code != http.StatusConflict {
		t.Errorf("Expected 409 on second claim, got %d", code)
	}
}

func TestAdmin(t *testing.T) {
	s := newTestServer(t, nil)

	code, _ := s.do(t, http.MethodGet, "/api/admin/negative-balances", s.token(t, player), nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-admin, got %d", code)
	}

	adminToken := s.token(t, admin)
	code, body := s.do(t, http.MethodGet, "/api/admin/negative-balances", adminToken, nil)
	if code != http.StatusOK || body["count"] != 0.0 {
		t.Errorf("Expected no negative balances, got %d %v", code, body)
	}

	code, _ = s.do(t, http.MethodGet, "/api/admin/rounds?limit=abc", adminToken, nil)
	if code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", code)
	}
	code, body = s.do(t, http.MethodGet, "/api/admin/rounds?limit=10", adminToken, nil)
	if code != http.StatusOK || body["count"] != 0.0 {
		t.Errorf("Expected empty round list, got %d %v", code, body)
	}
}

func TestLeaderboard(t *testing.T) {
	s := newTestServer(t, nil)
	for i := 0; i < config.LeaderboardSize+5; i++ {
		s.store.board = append(s.store.board, &db.WalletPnLRecord{
			WalletAddress: "0x" + strings.Repeat("0", 38) + string(rune('a'+i%6)) + string(rune('a'+i/6)),
			Amount:        int64(1000 - i),
			Rank:          i + 1,
		})
	}
	last := s.store.board[len(s.store.board)-1].WalletAddress

	code, body := s.do(t, http.MethodGet, "/api/leaderboard?wallet="+last, "", nil)
	if code != http.StatusOK {
		t.Fatalf("Expected leaderboard, got %d", code)
	}
	if n := len(body["leaderboard"].([]any)); n != config.LeaderboardSize {
		t.Errorf("Expected %d entries, got %d", config.LeaderboardSize, n)
	}
	pos, ok := body["userPosition"].(map[string]any)
	if !ok || pos["rank"] != float64(config.LeaderboardSize+5) {
		t.Errorf("Expected user position outside the top, got %v", body["userPosition"])
	}
}

func TestCrashRoutes(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		s := newTestServer(t, nil)
		code, _ := s.do(t, http.MethodGet, "/api/crash/history", "", nil)
		if code != http.StatusServiceUnavailable {
			t.Errorf("Expected 503, got %d", code)
		}
	})

	t.Run("BettingClosed", func(t *testing.T) {
		engine := ws.NewCrashEngine(ws.NewHub(), settletest.NewStore(), nil, 0.01, 1)
		s := newTestServer(t, engine)

		code, body := s.do(t, http.MethodGet, "/api/crash/bettors", "", nil)
		if code != http.StatusOK || body["count"] != 0.0 {
			t.Errorf("Expected empty bettor list, got %d %v", code, body)
		}

		// No round is open until the engine runs
		code, _ = s.do(t, http.MethodPost, "/api/crash/bet", s.token(t, player), CrashBetRequest{Amount: 10})
		if code != http.StatusConflict {
			t.Errorf("Expected 409, got %d", code)
		}
		code, _ = s.do(t, http.MethodGet, "/api/crash/history/unknown", "", nil)
		if code != http.StatusNotFound {
			t.Errorf("Expected 404 for unknown round, got %d", code)
		}
	})
}

func TestGames(t *testing.T) {
	s := newTestServer(t, nil)

	code, body := s.do(t, http.MethodGet, "/api/games", "", nil)
	if code != http.StatusOK || body["houseEdge"] != 0.01 {
		t.Fatalf("Expected game list, got %d %v", code, body)
	}
	names := body["games"].([]any)
	if len(names) == 0 || names[0] != "baccarat" {
		t.Errorf("Expected sorted game names, got %v", names)
	}

	code, body = s.do(t, http.MethodGet, "/api/games/plinko/tables", "", nil)
	if code != http.StatusOK || body["table"] == nil {
		t.Errorf("Expected plinko table, got %d %v", code, body)
	}
	code, body = s.do(t, http.MethodGet, "/api/games/mines/tables", "", nil)
	if code != http.StatusOK {
		t.Fatalf("Expected mines table, got %d %v", code, body)
	}
	mines := body["table"].(map[string]any)
	if len(mines) != game.MinesTiles-1 {
		t.Errorf("Expected %d mine counts, got %d", game.MinesTiles-1, len(mines))
	}
	if row := mines["3"].([]any); len(row) != game.MinesTiles-3 || row[0] != game.MinesMultiplier(3, 1, 0.01) {
		t.Errorf("Unexpected 3-mine row %v", row)
	}

	code, body = s.do(t, http.MethodGet, "/api/games/dice/tables", "", nil)
	if code != http.StatusOK || body["table"] != nil {
		t.Errorf("Expected dice without table, got %d %v", code, body)
	}
	code, _ = s.do(t, http.MethodGet, "/api/games/blackjack/tables", "", nil)
	if code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}
}
