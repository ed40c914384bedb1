package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type staticTokens map[string]string

func (s staticTokens) Parse(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func startServer(t *testing.T) (*CrashEngine, string) {
	t.Helper()
	e, ledger, _ := newTestEngine(t)
	ledger.SetBalance("0xa", 1000)

	done := make(chan struct{})
	go e.hub.Run(done)
	srv := httptest.NewServer(NewServer(e.hub, e, staticTokens{"good": "0xa"}))
	t.Cleanup(func() {
		srv.Close()
		close(done)
	})
	return e, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	raw, _ := json.Marshal(data)
	if err := conn.WriteJSON(ClientMessage{Type: msgType, Data: raw}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// readUntil returns the first event of the wanted type
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		if ev.Type == want {
			return ev.Data
		}
	}
}

func TestServer(t *testing.T) {
	t.Run("RejectsBadToken", func(t *testing.T) {
		_, url := startServer(t)
		_, resp, err := websocket.DefaultDialer.Dial(url+"?token=nope", nil)
		if err == nil {
			t.Fatal("expected dial to fail")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %v", resp)
		}
	})

	t.Run("SubscribeSendsState", func(t *testing.T) {
		e, url := startServer(t)
		e.state.ResetForNewGame("g1", "seed", "hash", "g1", 2)

		conn := dial(t, url)
		send(t, conn, "subscribe", map[string]string{"channel": ChannelCrash})
		snap := readUntil(t, conn, "crash_state")
		if snap["gameId"] != "g1" || snap["phase"] != "betting" {
			t.Errorf("unexpected snapshot %v", snap)
		}
		if _, leaked := snap["serverSeed"]; leaked {
			t.Error("snapshot leaked the server seed")
		}
	})

	t.Run("AnonymousCannotBet", func(t *testing.T) {
		e, url := startServer(t)
		e.state.ResetForNewGame("g1", "seed", "hash", "g1", 2)

		conn := dial(t, url)
		send(t, conn, "crash_bet", map[string]any{"amount": 10})
		if ev := readUntil(t, conn, "error"); ev["error"] != "login required" {
			t.Errorf("unexpected error %v", ev)
		}
	})

	t.Run("BetOverSocket", func(t *testing.T) {
		e, url := startServer(t)
		e.state.ResetForNewGame("g1", "seed", "hash", "g1", 2)

		conn := dial(t, url+"?token=good")
		send(t, conn, "crash_bet", map[string]any{"amount": 10, "autoCashout": 1.5})
		res := readUntil(t, conn, "crash_bet_result")
		if res["balance"] != float64(990) {
			t.Errorf("unexpected bet result %v", res)
		}
		if n := len(e.state.GetActiveBettors()); n != 1 {
			t.Errorf("expected one bettor, got %d", n)
		}
	})
}
