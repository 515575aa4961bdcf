package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/locale"
)

// StorageKey is the fixed key the chat record is stored under.
const StorageKey = "atelier.chat.session"

// Storage persists chat records by key. Load returns nil, nil when no
// record exists.
type Storage interface {
	Load(ctx context.Context, key string) (*domain.ChatRecord, error)
	Save(ctx context.Context, key string, rec domain.ChatRecord) error
	Remove(ctx context.Context, key string) error
}

// MemoryStorage keeps records in process memory.
type MemoryStorage struct {
	mu      sync.Mutex
	records map[string]domain.ChatRecord
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[string]domain.ChatRecord)}
}

func (m *MemoryStorage) Load(_ context.Context, key string) (*domain.ChatRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	rec.Messages = append([]domain.ChatMessage(nil), rec.Messages...)
	return &rec, nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, rec domain.ChatRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Messages = append([]domain.ChatMessage(nil), rec.Messages...)
	m.records[key] = rec
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

// FileStorage stores each record as a JSON file in a directory.
type FileStorage struct {
	dir string
}

// NewFileStorage creates the directory if needed.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, filepath.Base(key)+".json")
}

func (f *FileStorage) Load(_ context.Context, key string) (*domain.ChatRecord, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read chat record: %w", err)
	}
	var rec domain.ChatRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode chat record: %w", err)
	}
	return &rec, nil
}

func (f *FileStorage) Save(_ context.Context, key string, rec domain.ChatRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode chat record: %w", err)
	}
	tmp, err := os.CreateTemp(f.dir, ".record-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write chat record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close chat record: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace chat record: %w", err)
	}
	return nil
}

func (f *FileStorage) Remove(_ context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove chat record: %w", err)
	}
	return nil
}

// HTTPStorage keeps the record on the server through /api/chat/session.
// The server holds one record per visitor cookie, so the key is ignored;
// httpClient needs a cookie jar to keep the visitor identity.
type HTTPStorage struct {
	baseURL    string
	locale     locale.Code
	httpClient *http.Client
}

// NewHTTPStorage creates a server-backed storage for lc.
func NewHTTPStorage(baseURL string, lc locale.Code, httpClient *http.Client) *HTTPStorage {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPStorage{baseURL: strings.TrimSuffix(baseURL, "/"), locale: lc, httpClient: httpClient}
}

func (h *HTTPStorage) endpoint() string {
	return h.baseURL + "/api/chat/session"
}

func (h *HTTPStorage) Load(ctx context.Context, _ string) (*domain.ChatRecord, error) {
	u := h.endpoint() + "?locale=" + url.QueryEscape(string(h.locale))
	resp, err := h.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load chat record: status %d", resp.StatusCode)
	}
	var rec domain.ChatRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode chat record: %w", err)
	}
	return &rec, nil
}

func (h *HTTPStorage) Save(ctx context.Context, _ string, rec domain.ChatRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode chat record: %w", err)
	}
	resp, err := h.do(ctx, http.MethodPut, h.endpoint(), data)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("save chat record: status %d", resp.StatusCode)
	}
	return nil
}

func (h *HTTPStorage) Remove(ctx context.Context, _ string) error {
	resp, err := h.do(ctx, http.MethodDelete, h.endpoint(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("remove chat record: status %d", resp.StatusCode)
	}
	return nil
}

func (h *HTTPStorage) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s chat record: %w", strings.ToLower(method), err)
	}
	return resp, nil
}
