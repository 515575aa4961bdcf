package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/atelier/internal/api"
	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/identity"
	"github.com/ashureev/atelier/internal/locale"
	"github.com/ashureev/atelier/internal/store"
	"github.com/go-chi/chi/v5"
)

// DefaultTranscriptTTL is how long a chat record stays usable after its last write.
const DefaultTranscriptTTL = 24 * time.Hour

// TranscriptHandler stores one chat record per visitor on the server.
type TranscriptHandler struct {
	repo        store.TranscriptRepository
	ttl         time.Duration
	maxBodySize int64
	now         func() time.Time
}

// NewTranscriptHandler creates a transcript handler. ttl <= 0 means DefaultTranscriptTTL.
func NewTranscriptHandler(repo store.TranscriptRepository, ttl time.Duration, maxBodySize int64) *TranscriptHandler {
	if ttl <= 0 {
		ttl = DefaultTranscriptTTL
	}
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	return &TranscriptHandler{repo: repo, ttl: ttl, maxBodySize: maxBodySize, now: time.Now}
}

// RegisterRoutes registers the transcript endpoints.
func (h *TranscriptHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat/session", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Put)
		r.Delete("/", h.Delete)
	})
}

// Get returns the visitor's record for ?locale=. A record written under
// another locale or past its expiry is removed and reported as missing.
func (h *TranscriptHandler) Get(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	if visitorID == "" {
		api.Error(w, http.StatusUnauthorized, "unknown visitor")
		return
	}
	lc := r.URL.Query().Get("locale")
	if !locale.IsValid(lc) {
		api.Error(w, http.StatusBadRequest, "unsupported locale")
		return
	}

	t, err := h.repo.GetChatTranscript(r.Context(), visitorID)
	if err != nil {
		slog.Error("Failed to load chat transcript", "visitor_id", visitorID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if t == nil {
		api.Error(w, http.StatusNotFound, "no transcript")
		return
	}
	if !t.Record.Usable(lc, h.now(), h.ttl) {
		if err := h.repo.DeleteChatTranscript(r.Context(), visitorID); err != nil {
			slog.Warn("Failed to discard stale chat transcript", "visitor_id", visitorID, "error", err)
		}
		api.Error(w, http.StatusNotFound, "no transcript")
		return
	}
	api.JSON(w, http.StatusOK, t.Record)
}

// Put replaces the visitor's record.
func (h *TranscriptHandler) Put(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	if visitorID == "" {
		api.Error(w, http.StatusUnauthorized, "unknown visitor")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var rec domain.ChatRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !locale.IsValid(rec.Locale) {
		api.Error(w, http.StatusBadRequest, "unsupported locale")
		return
	}
	for _, m := range rec.Messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			api.Error(w, http.StatusBadRequest, "invalid message role")
			return
		}
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = h.now().UnixMilli()
	}

	if err := h.repo.UpsertChatTranscript(r.Context(), &domain.ChatTranscript{VisitorID: visitorID, Record: rec}); err != nil {
		slog.Error("Failed to save chat transcript", "visitor_id", visitorID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to save transcript")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes the visitor's record.
func (h *TranscriptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	if visitorID == "" {
		api.Error(w, http.StatusUnauthorized, "unknown visitor")
		return
	}
	if err := h.repo.DeleteChatTranscript(r.Context(), visitorID); err != nil {
		slog.Error("Failed to delete chat transcript", "visitor_id", visitorID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to delete transcript")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
