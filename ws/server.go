package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"coinhype/config"

	"github.com/gorilla/websocket"
)

// TokenParser resolves a session token to a user id
type TokenParser interface {
	Parse(token string) (string, error)
}

// Server is the /ws endpoint
type Server struct {
	hub      *Hub
	crash    *CrashEngine
	tokens   TokenParser
	upgrader websocket.Upgrader
}

// NewServer builds the endpoint. crash may be nil when crash rounds are
// disabled.
func NewServer(hub *Hub, crash *CrashEngine, tokens TokenParser) *Server {
	return &Server{
		hub:    hub,
		crash:  crash,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.WSReadBufferSize,
			WriteBufferSize: config.WSWriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection. A ?token= query parameter identifies
// the user; anonymous clients may only watch.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Println("📥 WebSocket connection from:", r.RemoteAddr)

	userID := ""
	if token := r.URL.Query().Get("token"); token != "" {
		id, err := s.tokens.Parse(token)
		if err != nil {
			http.Error(w, "invalid session token", http.StatusUnauthorized)
			return
		}
		userID = id
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("❌ WebSocket upgrade failed:", err)
		return
	}

	client := s.hub.newClient(conn, userID)
	if !s.hub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(s.hub, s.handleMessage)
}

type subscribeData struct {
	Channel string `json:"channel"`
}

type crashBetData struct {
	Amount      int64   `json:"amount"`
	AutoCashout float64 `json:"autoCashout"`
}

func (s *Server) handleMessage(c *ClientConnection, msg ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch msg.Type {
	case "subscribe":
		var data subscribeData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Channel == "" {
			c.reply(s.hub, errorEvent("channel is required"))
			return
		}
		c.subscribe(data.Channel)
		log.Printf("📡 Client %s subscribed to: %s", c.ID, data.Channel)
		s.sendInitialData(c, data.Channel)

	case "unsubscribe":
		var data subscribeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		c.unsubscribe(data.Channel)
		log.Printf("📴 Client %s unsubscribed from: %s", c.ID, data.Channel)

	case "crash_bet":
		if !s.crashReady(c) {
			return
		}
		var data crashBetData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.reply(s.hub, errorEvent("invalid bet"))
			return
		}
		bet, balance, err := s.crash.PlaceBet(ctx, c.UserID, data.Amount, data.AutoCashout)
		if err != nil {
			c.reply(s.hub, errorEvent(err.Error()))
			return
		}
		c.reply(s.hub, Event{Type: "crash_bet_result", Data: map[string]any{"bet": bet, "balance": balance}})

	case "crash_cashout":
		if !s.crashReady(c) {
			return
		}
		if _, err := s.crash.Cashout(ctx, c.UserID); err != nil {
			c.reply(s.hub, errorEvent(err.Error()))
		}

	default:
		log.Printf("⚠️  Unknown message type from client %s: %s", c.ID, msg.Type)
	}
}

func (s *Server) crashReady(c *ClientConnection) bool {
	if s.crash == nil {
		c.reply(s.hub, errorEvent("crash rounds are disabled"))
		return false
	}
	if c.UserID == "" {
		c.reply(s.hub, errorEvent("login required"))
		return false
	}
	return true
}

// sendInitialData pushes the current state when a client subscribes
func (s *Server) sendInitialData(c *ClientConnection, channel string) {
	if channel != ChannelCrash || s.crash == nil {
		return
	}
	c.reply(s.hub, Event{Type: "crash_history", Data: s.crash.State().GetHistory()})
	c.reply(s.hub, Event{Type: "crash_state", Data: s.crash.State().Snapshot()})
}

func errorEvent(message string) Event {
	return Event{Type: "error", Data: map[string]any{"error": message}}
}
