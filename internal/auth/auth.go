// Package auth guards the admin dashboard with a signed session cookie.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/atelier/internal/api"
	"github.com/ashureev/atelier/internal/config"
	"github.com/ashureev/atelier/internal/identity"
	"github.com/go-chi/chi/v5"
)

// CookieName is the admin session cookie.
const CookieName = "atelier_admin"

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/admin/login"

// Manager issues and verifies admin session cookies.
type Manager struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	isDev    bool
	now      func() time.Time
}

// NewManager creates a session manager. Admin access is disabled when no
// password is configured.
func NewManager(cfg config.AdminConfig, isDev bool) *Manager {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		password: []byte(cfg.Password),
		secret:   []byte(cfg.SessionSecret),
		ttl:      ttl,
		isDev:    isDev,
		now:      time.Now,
	}
}

// Enabled reports whether an admin password is configured.
func (m *Manager) Enabled() bool {
	return len(m.password) > 0
}

// checkPassword compares in constant time.
func (m *Manager) checkPassword(candidate string) bool {
	if !m.Enabled() {
		return false
	}
	return subtle.ConstantTimeCompare(m.password, []byte(candidate)) == 1
}

func (m *Manager) sign(payload string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue returns a token valid until now+ttl, formatted "<expiry>.<mac>".
func (m *Manager) Issue() string {
	expiry := strconv.FormatInt(m.now().Add(m.ttl).Unix(), 10)
	return expiry + "." + m.sign(expiry)
}

// Valid reports whether token carries a correct signature and has not expired.
func (m *Manager) Valid(token string) bool {
	if !m.Enabled() {
		return false
	}
	expiry, mac, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	if !hmac.Equal([]byte(mac), []byte(m.sign(expiry))) {
		return false
	}
	unix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return false
	}
	return m.now().Unix() < unix
}

// Authenticated reports whether r carries a valid admin cookie.
func (m *Manager) Authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return m.Valid(cookie.Value)
}

func (m *Manager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !m.isDev,
		SameSite: http.SameSiteStrictMode,
	})
}

// RegisterRoutes mounts login, logout and check under r.
func (m *Manager) RegisterRoutes(r chi.Router) {
	r.Post("/login", m.Login)
	r.Post("/logout", m.Logout)
	r.Get("/check", m.Check)
}

// Login accepts a JSON body {"password": "..."} or a posted form. Form
// submissions are redirected; JSON callers get 204 or 401.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	isForm := strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")

	var password string
	if isForm {
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, LoginPath+"?failed=1", http.StatusSeeOther)
			return
		}
		password = r.PostFormValue("password")
	} else {
		var body struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
		password = body.Password
	}

	if !m.checkPassword(password) {
		slog.Warn("Admin login failed", "ip", identity.IPFromRequest(r))
		if isForm {
			http.Redirect(w, r, LoginPath+"?failed=1", http.StatusSeeOther)
			return
		}
		api.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	m.setCookie(w, m.Issue(), int(m.ttl.Seconds()))
	slog.Info("Admin logged in", "ip", identity.IPFromRequest(r))
	if isForm {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Logout clears the session cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	m.setCookie(w, "", -1)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Check returns 200 for an authenticated request and 401 otherwise.
func (m *Manager) Check(w http.ResponseWriter, r *http.Request) {
	if !m.Authenticated(r) {
		api.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	api.JSON(w, http.StatusOK, map[string]bool{"authenticated": true})
}

// RequireAdmin rejects unauthenticated requests. API paths get 401, pages are
// redirected to the login form.
func (m *Manager) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/") {
			api.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	})
}
