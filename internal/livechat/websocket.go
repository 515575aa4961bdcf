package livechat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/atelier/internal/chat"
	"github.com/ashureev/atelier/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 10 * time.Second

// Frame types.
const (
	FrameChat  = "chat"
	FramePing  = "ping"
	FramePong  = "pong"
	FrameReply = "reply"
	FrameError = "error"
)

// inboundFrame is a chat.Request with an optional type. An empty type means
// a chat request.
type inboundFrame struct {
	Type string `json:"type,omitempty"`
	chat.Request
}

// outboundFrame is sent back for every inbound frame.
type outboundFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler upgrades GET /ws/chat and answers chat frames.
type Handler struct {
	service       *chat.Service
	cm            *ConnManager
	rateLimiter   *chat.RateLimiter
	convLog       chat.ConversationLogger
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a websocket chat handler. rateLimiter and convLog may
// be nil.
func NewHandler(service *chat.Service, cm *ConnManager, rateLimiter *chat.RateLimiter, convLog chat.ConversationLogger, allowedOrigin string, isDev bool) *Handler {
	if convLog == nil {
		convLog = chat.NoopConversationLogger()
	}
	return &Handler{
		service:       service,
		cm:            cm,
		rateLimiter:   rateLimiter,
		convLog:       convLog,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	tabID := SanitizeTabID(r.URL.Query().Get("tab"))
	slog.Info("Chat websocket request", "visitor_id", visitorID, "tab_id", tabID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept websocket", "error", err, "visitor_id", visitorID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "visitor_id", visitorID)
		}
	}()

	h.cm.Register(visitorID, tabID, ws)
	defer h.cm.Unregister(visitorID, tabID, ws)

	h.readLoop(r.Context(), ws, visitorID)
	slog.Info("Chat websocket ended", "visitor_id", visitorID, "tab_id", tabID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || h.allowedOrigin == "" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("Websocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, visitorID string) {
	for {
		var frame inboundFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("Websocket closed by client", "visitor_id", visitorID)
				return
			}
			// wsjson closes the connection itself on undecodable frames.
			slog.Warn("Websocket read error", "error", err, "visitor_id", visitorID)
			return
		}

		var out outboundFrame
		switch frame.Type {
		case FramePing:
			out = outboundFrame{Type: FramePong}
		case "", FrameChat:
			out = h.reply(ctx, visitorID, frame.Request)
		default:
			out = outboundFrame{Type: FrameError, Error: "unknown frame type"}
		}
		if err := h.write(ctx, ws, out); err != nil {
			slog.Debug("Failed to write websocket frame", "error", err, "visitor_id", visitorID)
			return
		}
	}
}

func (h *Handler) reply(ctx context.Context, visitorID string, req chat.Request) outboundFrame {
	if h.rateLimiter != nil && !h.rateLimiter.Allow(visitorID) {
		return outboundFrame{Type: FrameError, Error: "rate limit exceeded"}
	}
	if n := len(req.Messages); n > 0 {
		h.convLog.Log(chat.ConversationLogEvent{
			VisitorID:  visitorID,
			Locale:     req.Language,
			Channel:    "chat_ws",
			Direction:  "outbound",
			EventType:  "chat_user_message",
			ContentRaw: req.Messages[n-1].Content,
			Meta:       map[string]any{"path": req.PageContext.Path},
		})
	}

	start := time.Now()
	msg, err := h.service.Reply(ctx, req)
	if err != nil {
		slog.Warn("Websocket chat reply failed", "visitor_id", visitorID, "error", err)
		h.convLog.Log(chat.ConversationLogEvent{
			VisitorID: visitorID,
			Locale:    req.Language,
			Channel:   "chat_ws",
			Direction: "inbound",
			EventType: "chat_error",
			Meta:      map[string]any{"error": err.Error()},
		})
		switch {
		case errors.Is(err, chat.ErrInvalidRequest):
			return outboundFrame{Type: FrameError, Error: err.Error()}
		case errors.Is(err, chat.ErrUnavailable):
			return outboundFrame{Type: FrameError, Error: "chat is not available"}
		default:
			return outboundFrame{Type: FrameError, Error: "completion failed"}
		}
	}
	h.convLog.Log(chat.ConversationLogEvent{
		VisitorID:  visitorID,
		Locale:     req.Language,
		Channel:    "chat_ws",
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: msg,
		Meta:       map[string]any{"duration_ms": time.Since(start).Milliseconds()},
	})
	return outboundFrame{Type: FrameReply, Message: msg}
}

func (h *Handler) write(ctx context.Context, ws *websocket.Conn, v outboundFrame) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, ws, v)
}
