// Package stream serves live summary runs over WebSocket.
package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/newsdesk/internal/agent"
	"github.com/ashureev/newsdesk/internal/api"
	"github.com/ashureev/newsdesk/internal/domain"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 10 * time.Second

// client is one open stream. Writes are serialised per connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(ctx context.Context, f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, f)
}

// Hub tracks the open stream of each user session.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[string]*client),
	}
}

// Ensure Hub implements api.HistoryNotifier.
var _ api.HistoryNotifier = (*Hub)(nil)

func (h *Hub) get(ref agent.SessionRef) *client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sessions, ok := h.active[ref.UserID]; ok {
		return sessions[ref.SessionID]
	}
	return nil
}

// register adds a stream for a session, closing any stream it replaces.
func (h *Hub) register(ref agent.SessionRef, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[ref.UserID]; !exists {
		h.active[ref.UserID] = make(map[string]*client)
	}

	// The close handshake needs the replaced client to read, so it must not
	// block registration.
	if existing, exists := h.active[ref.UserID][ref.SessionID]; exists && existing != c {
		go func() { _ = existing.conn.Close(websocket.StatusNormalClosure, "session replaced") }()
	}

	h.active[ref.UserID][ref.SessionID] = c
	slog.Info("Summary stream registered", "user_id", ref.UserID, "session_id", ref.SessionID)
}

// unregister removes a stream if it is still the current one.
func (h *Hub) unregister(ref agent.SessionRef, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessions, ok := h.active[ref.UserID]; ok {
		if current, exists := sessions[ref.SessionID]; exists && current == c {
			delete(sessions, ref.SessionID)
			if len(sessions) == 0 {
				delete(h.active, ref.UserID)
			}
			slog.Info("Summary stream unregistered", "user_id", ref.UserID, "session_id", ref.SessionID)
		}
	}
}

// NotifyHistory pushes the session's history to its open stream, if any.
func (h *Hub) NotifyHistory(ref agent.SessionRef, history domain.History) {
	c := h.get(ref)
	if c == nil {
		return
	}
	if err := c.send(context.Background(), historyFrame(history)); err != nil {
		slog.Debug("Failed to push history to stream", "user_id", ref.UserID, "error", err)
	}
}

// CloseAll terminates every open stream.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var clients []*client
	for userID, sessions := range h.active {
		for _, c := range sessions {
			clients = append(clients, c)
		}
		delete(h.active, userID)
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		}(c)
	}
	wg.Wait()
}
