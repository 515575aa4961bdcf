//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/atelier/internal/store"
)

type pingRepo struct {
	store.Repository
	err error
}

func (p pingRepo) Ping(_ context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		pingErr  error
		chatUp   bool
		wantCode int
		wantDB   string
		wantChat string
	}{
		{"healthy", nil, true, http.StatusOK, "ok", "ok"},
		{"chat disabled", nil, false, http.StatusOK, "ok", "disabled"},
		{"database down", errors.New("boom"), true, http.StatusServiceUnavailable, "unreachable", "ok"},
	}
	for _, tt := range tests {
		chatUp := tt.chatUp
		h := NewHealthHandler(NewHandler(pingRepo{err: tt.pingErr}), time.Second, func() bool { return chatUp })
		rr := httptest.NewRecorder()
		h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rr.Code != tt.wantCode {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.wantCode, rr.Code)
		}
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode: %v", tt.name, err)
		}
		if body.Checks["database"] != tt.wantDB || body.Checks["chat"] != tt.wantChat {
			t.Errorf("%s: unexpected checks %v", tt.name, body.Checks)
		}
	}
}
