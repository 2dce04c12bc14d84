package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ashureev/newsdesk/internal/agent"
	"github.com/ashureev/newsdesk/internal/api"
	"github.com/ashureev/newsdesk/internal/domain"
	"github.com/ashureev/newsdesk/internal/identity"
	"github.com/coder/websocket"
)

const (
	// maxQueuedJobs bounds topics and clears waiting behind a running one.
	maxQueuedJobs = 4
	// codeBusy is sent when the job queue is full.
	codeBusy = "busy"
)

// Frame is a server to client message.
type Frame struct {
	Type    string           `json:"type"`
	Stage   agent.Stage      `json:"stage,omitempty"`
	Content string           `json:"content,omitempty"`
	Code    string           `json:"code,omitempty"`
	RunID   string           `json:"run_id,omitempty"`
	History []domain.Message `json:"history,omitempty"`
}

// clientMessage is a client to server message.
type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

func historyFrame(history domain.History) Frame {
	return Frame{Type: "history", History: history.Clone()}
}

// WebSocketHandler runs summary interactions over a WebSocket, streaming
// stage transitions as they happen.
type WebSocketHandler struct {
	svc            *agent.Service
	hub            *Hub
	allowedOrigins []string
	isDev          bool
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(svc *agent.Service, hub *Hub, allowedOrigins []string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		svc:            svc,
		hub:            hub,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ref := agent.SessionRef{
		UserID:    identity.UserIDFromContext(r.Context()),
		SessionID: identity.SessionIDFromContext(r.Context()),
	}
	slog.Info("WebSocket connection request", "user_id", ref.UserID, "session_id", ref.SessionID, "ip", identity.IPFromRequest(r))

	if ref.UserID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", ref.UserID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", ref.UserID)
		}
	}()

	c := &client{conn: ws}
	h.hub.register(ref, c)
	defer h.hub.unregister(ref, c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	history, err := h.svc.History(ctx, ref)
	if err != nil {
		slog.Error("Failed to load history for stream", "error", err, "user_id", ref.UserID)
		h.send(ctx, c, Frame{Type: "error", Code: agent.CodeInternal, Content: api.UserMessage(agent.CodeInternal)})
		return
	}
	h.send(ctx, c, historyFrame(history))

	h.readLoop(ctx, ws, c, ref)
	slog.Info("Summary stream ended", "user_id", ref.UserID, "session_id", ref.SessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

// readLoop keeps reading while topics and clears run on a worker, so pings
// and close frames are handled mid-run. Jobs run one at a time in arrival
// order. Leaving the loop cancels the running job and waits for it.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, c *client, ref agent.SessionRef) {
	jobCtx, cancelJobs := context.WithCancel(ctx)
	jobs := make(chan func(context.Context), maxQueuedJobs)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for job := range jobs {
			if jobCtx.Err() != nil {
				continue
			}
			job(jobCtx)
		}
	}()
	defer func() {
		cancelJobs()
		close(jobs)
		wg.Wait()
	}()

	enqueue := func(job func(context.Context)) {
		select {
		case jobs <- job:
		default:
			h.send(ctx, c, Frame{Type: "error", Code: codeBusy, Content: "Too many pending requests."})
		}
	}

	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", ref.UserID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", ref.UserID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.send(ctx, c, Frame{Type: "error", Code: "invalid_request", Content: "Messages must be JSON."})
			continue
		}

		switch msg.Type {
		case "topic":
			topic := msg.Content
			enqueue(func(ctx context.Context) { h.summarize(ctx, c, ref, topic) })
		case "clear":
			enqueue(func(ctx context.Context) { h.clear(ctx, c, ref) })
		case "ping":
			h.send(ctx, c, Frame{Type: "pong"})
		default:
			h.send(ctx, c, Frame{Type: "error", Code: "invalid_request", Content: "Unknown message type."})
		}
	}
}

func (h *WebSocketHandler) clear(ctx context.Context, c *client, ref agent.SessionRef) {
	if _, err := h.svc.Clear(ctx, ref); err != nil {
		slog.Error("Failed to clear history", "error", err, "user_id", ref.UserID)
		h.send(ctx, c, Frame{Type: "error", Code: agent.CodeInternal, Content: api.UserMessage(agent.CodeInternal)})
		return
	}
	h.send(ctx, c, historyFrame(domain.History{}))
}

func (h *WebSocketHandler) summarize(ctx context.Context, c *client, ref agent.SessionRef, topic string) {
	progress := func(stage agent.Stage) {
		h.send(ctx, c, Frame{Type: "stage", Stage: stage})
	}

	ex, err := h.svc.Ask(ctx, ref, topic, progress)
	if err != nil {
		code := agent.ErrorCode(err)
		if code == agent.CodeEmptyTopic {
			h.send(ctx, c, Frame{Type: "warning", Code: code, Content: api.UserMessage(code)})
			return
		}
		h.send(ctx, c, Frame{Type: "error", Code: code, Content: api.UserMessage(code)})
		return
	}

	h.send(ctx, c, Frame{Type: "summary", RunID: ex.RunID, Content: ex.Summary})
	h.send(ctx, c, historyFrame(ex.History))
}

func (h *WebSocketHandler) send(ctx context.Context, c *client, f Frame) {
	if err := c.send(ctx, f); err != nil {
		slog.Debug("WebSocket write error", "error", err, "type", f.Type)
	}
}
