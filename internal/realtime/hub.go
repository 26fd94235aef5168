// Package realtime fans accepted telemetry out to connected dashboard
// sessions over websockets.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Message is the envelope for server-to-client events.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Hub is the connected-session registry. Every broadcast goes to every
// session, unfiltered: the server performs no per-subscriber
// authorization here, clients scope the stream against their own
// authorized bike set. Delivery order is preserved per session, with no
// ordering guarantee across sessions.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongTimeout  time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub with the given heartbeat settings.
func NewHub(pingInterval, pongTimeout time.Duration) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				// CORS policy is enforced on the HTTP API; the stream
				// itself is open by design.
				return true
			},
		},
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		clients:      map[*client]struct{}{},
	}
}

// ServeHTTP upgrades the connection and registers the session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.addClient(c)
	log.WithField("remote", conn.RemoteAddr().String()).Info("Client connected")

	go h.writePump(c)
	h.readPump(c)
}

// Broadcast sends one event to all connected sessions. It never blocks:
// a session whose buffer is full is dropped from the registry.
func (h *Hub) Broadcast(event string, payload interface{}) {
	b, err := json.Marshal(Message{Event: event, Payload: payload})
	if err != nil {
		log.WithError(err).WithField("event", event).Error("Failed to encode broadcast")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			// Slow client; drop it.
			delete(h.clients, c)
			close(c.send)
			_ = c.conn.Close()
		}
	}
}

// ClientCount reports the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.removeClient(c)
		log.WithField("remote", c.conn.RemoteAddr().String()).Info("Client disconnected")
	}()

	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
