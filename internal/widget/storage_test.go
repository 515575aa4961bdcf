package widget

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/atelier/internal/chat"
	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/identity"
	"github.com/ashureev/atelier/internal/locale"
	"github.com/go-chi/chi/v5"
)

func sampleRecord(lc string) domain.ChatRecord {
	return domain.ChatRecord{
		Locale:    lc,
		Timestamp: time.Now().UnixMilli(),
		Messages: []domain.ChatMessage{
			{ID: "u1", Role: domain.RoleUser, Content: "hi", CreatedAt: 1, Seen: true},
			{ID: "a1", Role: domain.RoleAssistant, Content: "hello", CreatedAt: 2},
		},
	}
}

func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	if rec, err := s.Load(ctx, StorageKey); err != nil || rec != nil {
		t.Fatalf("expected nil, nil for empty storage, got %v %v", rec, err)
	}

	want := sampleRecord("en")
	if err := s.Save(ctx, StorageKey, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Load(ctx, StorageKey)
	if err != nil || got == nil {
		t.Fatalf("Load failed: %v %v", got, err)
	}
	if got.Locale != "en" || len(got.Messages) != 2 || got.Messages[1].Content != "hello" || !got.Messages[0].Seen {
		t.Fatalf("unexpected record %+v", got)
	}

	if err := s.Remove(ctx, StorageKey); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if rec, err := s.Load(ctx, StorageKey); err != nil || rec != nil {
		t.Fatalf("expected record to be gone, got %v %v", rec, err)
	}
	if err := s.Remove(ctx, StorageKey); err != nil {
		t.Fatalf("removing a missing record should succeed, got %v", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chat")
	s, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage failed: %v", err)
	}
	exerciseStorage(t, s)
}

func TestFileStorageRejectsCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, StorageKey+".json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background(), StorageKey); err == nil {
		t.Fatal("expected decode error")
	}
}

type fakeTranscripts struct {
	records map[string]*domain.ChatTranscript
}

func (f *fakeTranscripts) GetChatTranscript(_ context.Context, id string) (*domain.ChatTranscript, error) {
	return f.records[id], nil
}

func (f *fakeTranscripts) UpsertChatTranscript(_ context.Context, t *domain.ChatTranscript) error {
	f.records[t.VisitorID] = t
	return nil
}

func (f *fakeTranscripts) DeleteChatTranscript(_ context.Context, id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakeTranscripts) CleanupExpiredTranscripts(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func newTranscriptServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithVisitorID(req.Context(), "visitor_widget")))
		})
	})
	chat.NewTranscriptHandler(&fakeTranscripts{records: make(map[string]*domain.ChatTranscript)}, 0, 0).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPStorage(t *testing.T) {
	srv := newTranscriptServer(t)
	exerciseStorage(t, NewHTTPStorage(srv.URL, locale.English, srv.Client()))
}

func TestHTTPStorageScopesByLocale(t *testing.T) {
	srv := newTranscriptServer(t)
	ctx := context.Background()

	if err := NewHTTPStorage(srv.URL, locale.English, srv.Client()).Save(ctx, StorageKey, sampleRecord("en")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	rec, err := NewHTTPStorage(srv.URL, locale.Arabic, srv.Client()).Load(ctx, StorageKey)
	if err != nil || rec != nil {
		t.Fatalf("record from another locale must read as missing, got %v %v", rec, err)
	}
}

func TestSessionOverHTTPStorage(t *testing.T) {
	srv := newTranscriptServer(t)
	storage := NewHTTPStorage(srv.URL, locale.English, srv.Client())

	first := New(Options{Locale: locale.English, Storage: storage, Completer: &echoCompleter{}})
	first.Mount(context.Background())
	first.StartChat(context.Background())
	sendText(t, first, "hello")
	first.Close()

	second := New(Options{Locale: locale.English, Storage: storage, Completer: &echoCompleter{}})
	second.Mount(context.Background())
	if msgs := second.Snapshot().Messages; len(msgs) != 2 || msgs[1].Content != "re: hello" {
		t.Fatalf("expected transcript from the server, got %+v", msgs)
	}
}
