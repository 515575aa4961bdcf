package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/atelier/internal/api"
	"github.com/ashureev/atelier/internal/config"
	"github.com/ashureev/atelier/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Handler serves POST /api/chat.
type Handler struct {
	service     *Service
	rateLimiter *RateLimiter
	log         ConversationLogger
	maxBodySize int64
}

// NewHandler creates a chat handler.
func NewHandler(service *Service, cfg *config.Config, conversationLogger ConversationLogger) *Handler {
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}

	rateLimitRequests := 10
	rateLimitWindow := time.Minute
	maxBodySize := int64(defaultMaxRequestBodySize)
	if cfg != nil {
		rateLimitRequests = cfg.RateLimit.RequestsPerWindow
		rateLimitWindow = cfg.RateLimit.WindowDuration
		if cfg.Chat.MaxRequestBodySize > 0 {
			maxBodySize = cfg.Chat.MaxRequestBodySize
		}
	}

	return &Handler{
		service:     service,
		rateLimiter: NewRateLimiter(rateLimitRequests, rateLimitWindow),
		log:         conversationLogger,
		maxBodySize: maxBodySize,
	}
}

// RegisterRoutes registers the chat endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
	if err := h.log.Close(); err != nil {
		slog.Warn("failed to close conversation logger", "error", err)
	}
}

// HandleChat handles POST /api/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	key := visitorID
	if key == "" {
		key = identity.IPFromRequest(r)
	}
	if !h.rateLimiter.Allow(key) {
		writeChatError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeChatError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeChatError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	slog.Info("Chat request",
		"visitor_id", visitorID,
		"locale", req.Language,
		"path", req.PageContext.Path,
		"messages", len(req.Messages),
	)
	if n := len(req.Messages); n > 0 {
		h.log.Log(ConversationLogEvent{
			VisitorID:  visitorID,
			Locale:     req.Language,
			Channel:    "chat_http",
			Direction:  "outbound",
			EventType:  "chat_user_message",
			ContentRaw: req.Messages[n-1].Content,
			Meta: map[string]any{
				"request_id": reqID,
				"page":       req.PageContext.Page,
				"path":       req.PageContext.Path,
			},
		})
	}

	start := time.Now()
	reply, err := h.service.Reply(r.Context(), req)
	if err != nil {
		status, message := statusForError(err)
		slog.Warn("Chat reply failed", "visitor_id", visitorID, "status", status, "error", err)
		h.log.Log(ConversationLogEvent{
			VisitorID: visitorID,
			Locale:    req.Language,
			Channel:   "chat_http",
			Direction: "inbound",
			EventType: "chat_error",
			Meta: map[string]any{
				"request_id": reqID,
				"status":     status,
				"error":      err.Error(),
			},
		})
		writeChatError(w, status, message)
		return
	}

	h.log.Log(ConversationLogEvent{
		VisitorID:  visitorID,
		Locale:     req.Language,
		Channel:    "chat_http",
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: reply,
		Meta: map[string]any{
			"request_id":  reqID,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
	api.JSON(w, http.StatusOK, Response{Message: reply})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "chat is not available"
	default:
		return http.StatusBadGateway, "completion failed"
	}
}

func writeChatError(w http.ResponseWriter, status int, message string) {
	api.JSON(w, status, Response{Error: message})
}
