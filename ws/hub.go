package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"coinhype/config"

	"github.com/gorilla/websocket"
)

// Channel names clients can subscribe to
const (
	ChannelCrash = "crash"
)

// ClientConnection is a connected client with its subscriptions. UserID is
// set when the client connected with a valid session token.
type ClientConnection struct {
	ID            string
	UserID        string
	Conn          *websocket.Conn
	Subscriptions map[string]bool
	mu            sync.RWMutex
	Send          chan []byte
}

// ClientMessage is a request from a client
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Event is a message pushed to clients
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type broadcast struct {
	channel string
	data    []byte
}

// Hub fans events out to subscribed clients
type Hub struct {
	clients    map[*ClientConnection]bool
	clientsMu  sync.RWMutex
	closed     bool
	unregister chan *ClientConnection
	broadcast  chan broadcast
	stopped    chan struct{}

	clientIDCounter int64
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*ClientConnection]bool),
		unregister: make(chan *ClientConnection),
		broadcast:  make(chan broadcast, 100),
		stopped:    make(chan struct{}),
	}
}

// Run dispatches unregistrations and broadcasts until done is closed
func (h *Hub) Run(done <-chan struct{}) {
	log.Println("🚀 Event hub started")
	defer close(h.stopped)

	for {
		select {
		case <-done:
			h.clientsMu.Lock()
			h.closed = true
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.clientsMu.Unlock()
			log.Println("🛑 Event hub stopped")
			return

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.clientsMu.Unlock()
			log.Printf("👋 Client unregistered: %s (Total: %d)", client.ID, total)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Publish queues an event for every subscriber of channel. A full queue
// drops the event.
func (h *Hub) Publish(channel string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ Failed to marshal %s event for %s: %v", event.Type, channel, err)
		return
	}
	select {
	case h.broadcast <- broadcast{channel: channel, data: data}:
	default:
		log.Printf("⚠️  Broadcast queue full, dropping %s event", event.Type)
	}
}

// SendToUser delivers an event to every connection of one user
func (h *Hub) SendToUser(userID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ Failed to marshal private message: %v", err)
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for c := range h.clients {
		if c.UserID == userID {
			c.queue(data)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliver(msg broadcast) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for client := range h.clients {
		if client.Subscribed(msg.channel) {
			client.queue(msg.data)
		}
	}
}

// add registers the client before its pumps start, so replies to its first
// message are not dropped. It reports false once the hub has stopped.
func (h *Hub) add(client *ClientConnection) bool {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	if h.closed {
		return false
	}
	h.clients[client] = true
	log.Printf("✅ Client registered: %s (Total: %d)", client.ID, len(h.clients))
	return true
}

func (h *Hub) newClient(conn *websocket.Conn, userID string) *ClientConnection {
	id := atomic.AddInt64(&h.clientIDCounter, 1)
	return &ClientConnection{
		ID:            fmt.Sprintf("%d-%d", time.Now().Unix(), id),
		UserID:        userID,
		Conn:          conn,
		Subscriptions: make(map[string]bool),
		Send:          make(chan []byte, config.WSSendBufferSize),
	}
}

/* =========================
   CLIENT
========================= */

// Subscribed reports whether the client listens on channel
func (c *ClientConnection) Subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Subscriptions[channel]
}

func (c *ClientConnection) subscribe(channel string) {
	c.mu.Lock()
	c.Subscriptions[channel] = true
	c.mu.Unlock()
}

func (c *ClientConnection) unsubscribe(channel string) {
	c.mu.Lock()
	delete(c.Subscriptions, channel)
	c.mu.Unlock()
}

// queue must be called with the hub's client lock held, so Send is open
func (c *ClientConnection) queue(data []byte) {
	select {
	case c.Send <- data:
	default:
		log.Printf("⚠️  Client %s send buffer full, skipping message", c.ID)
	}
}

// writePump sends queued messages and keeps the connection alive with pings
func (c *ClientConnection) writePump() {
	ticker := time.NewTicker(config.WSPingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("❌ Write error for client %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client messages until the connection closes
func (c *ClientConnection) readPump(h *Hub, handle func(*ClientConnection, ClientMessage)) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stopped:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ Read error for client %s: %v", c.ID, err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Printf("❌ Failed to parse message from client %s: %v", c.ID, err)
			continue
		}
		handle(c, msg)
	}
}

// reply sends an event to this client only
func (c *ClientConnection) reply(h *Hub, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ Failed to marshal reply: %v", err)
		return
	}
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	if h.clients[c] {
		c.queue(data)
	}
}
