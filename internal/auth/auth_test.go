package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/atelier/internal/config"
)

func newTestManager() *Manager {
	return NewManager(config.AdminConfig{
		Password:      "cotton-and-linen",
		SessionSecret: "0123456789abcdef",
		SessionTTL:    time.Hour,
	}, true)
}

func TestIssueAndValid(t *testing.T) {
	m := newTestManager()
	base := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return base }

	token := m.Issue()
	if !m.Valid(token) {
		t.Fatal("freshly issued token should be valid")
	}

	expiry, mac, _ := strings.Cut(token, ".")
	if m.Valid(expiry + "1." + mac) {
		t.Error("token with altered expiry must be rejected")
	}
	if m.Valid(expiry + ".deadbeef") {
		t.Error("token with wrong mac must be rejected")
	}
	if m.Valid("garbage") {
		t.Error("malformed token must be rejected")
	}

	other := NewManager(config.AdminConfig{Password: "x", SessionSecret: "another-secret-16"}, true)
	other.now = m.now
	if other.Valid(token) {
		t.Error("token signed with another secret must be rejected")
	}

	m.now = func() time.Time { return base.Add(time.Hour) }
	if m.Valid(token) {
		t.Error("expired token must be rejected")
	}
}

func TestDisabledWithoutPassword(t *testing.T) {
	m := NewManager(config.AdminConfig{}, true)
	if m.Enabled() {
		t.Fatal("expected admin to be disabled")
	}
	if m.checkPassword("") {
		t.Fatal("empty password must never authenticate")
	}
	if m.Valid(m.Issue()) {
		t.Fatal("tokens must not validate when admin is disabled")
	}
}

func TestLoginJSON(t *testing.T) {
	m := newTestManager()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	m.Login(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password":"cotton-and-linen"}`))
	req.Header.Set("Content-Type", "application/json")
	m.Login(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || !cookies[0].HttpOnly {
		t.Fatalf("expected an http-only admin cookie, got %+v", cookies)
	}

	check := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	check.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	m.Check(rr, check)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from check, got %d", rr.Code)
	}
}

func TestLoginForm(t *testing.T) {
	m := newTestManager()
	form := url.Values{"password": {"nope"}}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	m.Login(rr, req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != LoginPath+"?failed=1" {
		t.Fatalf("expected redirect back to login, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	form.Set("password", "cotton-and-linen")
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	m.Login(rr, req)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/admin" {
		t.Fatalf("expected redirect to dashboard, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	m := newTestManager()
	rr := httptest.NewRecorder()
	m.Logout(rr, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected an expiring cookie, got %+v", cookies)
	}
}

func TestRequireAdmin(t *testing.T) {
	m := newTestManager()
	h := m.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/posts", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("API request: expected 401, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != LoginPath {
		t.Errorf("page request: expected redirect to login, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: m.Issue()})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Errorf("authenticated request should reach handler, got %d", rr.Code)
	}
}
