// Package push broadcasts supervision facts to connected dashboards over
// websockets. Slow or dead clients are dropped, never waited on.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/ports"
)

const (
	writeWait      = 5 * time.Second
	clientBuffer   = 16
	maxMessageSize = 512
)

// envelope wraps every outbound frame with a correlation id and a kind tag.
type envelope struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Ts   string `json:"ts"`
	Data any    `json:"data"`
}

// Hub implements ports.Notifier by fanning frames out to every connected
// websocket client.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

var _ ports.Notifier = (*Hub)(nil)

// NewHub builds an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and keeps the connection until the peer
// closes it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Debug("websocket upgrade failed", "error", err)
		}
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(maxMessageSize)
	for {
		// Inbound frames are ignored; reading only detects disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, nil)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// AnomalyDetected pushes a fresh anomaly to every dashboard.
func (h *Hub) AnomalyDetected(_ context.Context, a domain.Anomaly) error {
	return h.broadcast("anomaly_detected", a)
}

// PartCompleted pushes a terminal part transition to every dashboard.
func (h *Hub) PartCompleted(_ context.Context, p domain.Part) error {
	return h.broadcast("part_completed", p)
}

func (h *Hub) broadcast(kind string, data any) error {
	msg, err := json.Marshal(envelope{
		ID:   uuid.NewString(),
		Kind: kind,
		Ts:   time.Now().UTC().Format(time.RFC3339),
		Data: data,
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	stale := make([]*client, 0)
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.drop(c)
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
}
