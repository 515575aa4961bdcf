package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/atelier/internal/config"
	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/identity"
	"github.com/go-chi/chi/v5"
)

func newTestHandler(backend Backend, limit int) *Handler {
	cfg := &config.Config{
		Chat:      testChatConfig(),
		RateLimit: config.RateLimitConfig{RequestsPerWindow: limit, WindowDuration: time.Hour},
	}
	cfg.Chat.MaxRequestBodySize = 512
	return NewHandler(NewService(backend, cfg.Chat, time.Second), cfg, nil)
}

func postChat(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req = req.WithContext(identity.WithVisitorID(req.Context(), "visitor_test"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return rr, resp
}

func chatRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

const validChatBody = `{"messages":[{"role":"user","content":"hello"}],"language":"en","pageContext":{"page":"home","path":"/en","context":"landing"}}`

func TestHandleChatSuccess(t *testing.T) {
	h := newTestHandler(&fakeBackend{reply: "Welcome to the atelier"}, 10)
	defer h.Close()

	rr, resp := postChat(t, chatRouter(h), validChatBody)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp.Message != "Welcome to the atelier" || resp.Error != "" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestHandleChatStatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		body    string
		want    int
	}{
		{"malformed json", &fakeBackend{reply: "x"}, `{`, http.StatusBadRequest},
		{"invalid request", &fakeBackend{reply: "x"}, `{"messages":[],"language":"en"}`, http.StatusBadRequest},
		{"too large", &fakeBackend{reply: "x"}, `{"messages":[{"role":"user","content":"` + strings.Repeat("a", 1024) + `"}],"language":"en"}`, http.StatusRequestEntityTooLarge},
		{"backend failure", &fakeBackend{err: errors.New("boom")}, validChatBody, http.StatusBadGateway},
		{"no backend", nil, validChatBody, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		h := newTestHandler(tt.backend, 10)
		rr, resp := postChat(t, chatRouter(h), tt.body)
		h.Close()
		if rr.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, rr.Code)
		}
		if resp.Error == "" || resp.Message != "" {
			t.Errorf("%s: expected error body, got %+v", tt.name, resp)
		}
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	h := newTestHandler(&fakeBackend{reply: "ok"}, 1)
	defer h.Close()
	router := chatRouter(h)

	if rr, _ := postChat(t, router, validChatBody); rr.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rr.Code)
	}
	if rr, _ := postChat(t, router, validChatBody); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rr.Code)
	}
}

type memTranscripts struct {
	mu      sync.Mutex
	records map[string]*domain.ChatTranscript
}

func (m *memTranscripts) GetChatTranscript(_ context.Context, id string) (*domain.ChatTranscript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id], nil
}

func (m *memTranscripts) UpsertChatTranscript(_ context.Context, t *domain.ChatTranscript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := *t
	rec.Record.Messages = domain.WithoutWelcome(t.Record.Messages)
	m.records[t.VisitorID] = &rec
	return nil
}

func (m *memTranscripts) DeleteChatTranscript(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *memTranscripts) CleanupExpiredTranscripts(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func transcriptRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
	}
	return req.WithContext(identity.WithVisitorID(req.Context(), "visitor_test"))
}

func TestTranscriptHandlerRoundTrip(t *testing.T) {
	repo := &memTranscripts{records: make(map[string]*domain.ChatTranscript)}
	h := NewTranscriptHandler(repo, 24*time.Hour, 0)
	now := time.UnixMilli(1_700_000_000_000)
	h.now = func() time.Time { return now }
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	body := `{"messages":[{"id":"u1","role":"user","content":"hi","timestamp":1}],"locale":"en","timestamp":1700000000000}`
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, transcriptRequest(http.MethodPut, "/api/chat/session", body))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("PUT expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, transcriptRequest(http.MethodGet, "/api/chat/session?locale=en", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET expected 200, got %d", rr.Code)
	}
	var rec domain.ChatRecord
	if err := json.NewDecoder(rr.Body).Decode(&rec); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(rec.Messages) != 1 || rec.Messages[0].Content != "hi" {
		t.Fatalf("unexpected record %+v", rec)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, transcriptRequest(http.MethodGet, "/api/chat/session?locale=ar", ""))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("GET under another locale expected 404, got %d", rr.Code)
	}
	if _, ok := repo.records["visitor_test"]; ok {
		t.Fatal("record under another locale should be discarded")
	}
}

func TestTranscriptHandlerExpiry(t *testing.T) {
	repo := &memTranscripts{records: map[string]*domain.ChatTranscript{
		"visitor_test": {VisitorID: "visitor_test", Record: domain.ChatRecord{Locale: "en", Timestamp: 0}},
	}}
	h := NewTranscriptHandler(repo, 24*time.Hour, 0)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, transcriptRequest(http.MethodGet, "/api/chat/session?locale=en", ""))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expired record expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, transcriptRequest(http.MethodPut, "/api/chat/session", `{"messages":[],"locale":"de"}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unsupported locale expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, transcriptRequest(http.MethodDelete, "/api/chat/session", ""))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE expected 204, got %d", rr.Code)
	}
}
