// Package identity provides anonymous per-browser visitor identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/locale"
	"github.com/ashureev/atelier/internal/store"
)

const (
	VisitorCookieName   = "atelier_visitor"
	visitorCookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const visitorIDKey contextKey = iota

var visitorIDPattern = regexp.MustCompile(`^visitor_[a-f0-9]{32}$`)

// VisitorIDFromContext extracts the visitor ID from the request context.
func VisitorIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(visitorIDKey).(string); ok {
		return v
	}
	return ""
}

// WithVisitorID returns a context carrying visitorID.
func WithVisitorID(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorIDKey, visitorID)
}

func generateVisitorID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate visitor id: %w", err)
	}
	return "visitor_" + hex.EncodeToString(buf), nil
}

// IsValidVisitorID reports whether id has the shape issued by this package.
func IsValidVisitorID(id string) bool {
	return visitorIDPattern.MatchString(id)
}

func ensureVisitor(ctx context.Context, repo store.VisitorRepository, visitorID string, lc locale.Code) error {
	now := time.Now()
	visitor, err := repo.GetVisitor(ctx, visitorID)
	if err != nil {
		return err
	}
	if visitor != nil {
		return repo.UpdateLastSeen(ctx, visitorID, now)
	}

	return repo.UpsertVisitor(ctx, &domain.Visitor{
		VisitorID:  visitorID,
		Locale:     string(lc),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func setVisitorCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(visitorCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateVisitorID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(VisitorCookieName); err == nil && IsValidVisitorID(c.Value) {
		setVisitorCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateVisitorID()
	if err != nil {
		return "", err
	}
	setVisitorCookie(w, id, isDev)
	return id, nil
}

// Middleware injects an anonymous visitor identity, issuing the cookie on
// first contact and recording the visitor in repo.
func Middleware(repo store.VisitorRepository, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID, err := getOrCreateVisitorID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish visitor identity"}`, http.StatusInternalServerError)
				return
			}

			lc := locale.FromContext(r.Context())
			if q := r.URL.Query().Get("locale"); locale.IsValid(q) {
				lc = locale.Code(q)
			}
			if err := ensureVisitor(r.Context(), repo, visitorID, lc); err != nil {
				slog.Warn("Failed to record visitor", "visitor_id", visitorID, "error", err)
			}

			next.ServeHTTP(w, r.WithContext(WithVisitorID(r.Context(), visitorID)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for rate limiting and logging.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
