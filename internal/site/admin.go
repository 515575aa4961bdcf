package site

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/store"
	"github.com/go-chi/chi/v5"
)

const dashboardMessages = 20

// AdminRepository is what the dashboard reads.
type AdminRepository interface {
	Counts(ctx context.Context) (store.Counts, error)
	ListContactMessages(ctx context.Context, limit int) ([]*domain.ContactMessage, error)
}

// AdminData is passed to the admin templates.
type AdminData struct {
	Enabled       bool
	Authenticated bool
	Failed        bool
	Counts        store.Counts
	Messages      []*domain.ContactMessage
}

// AdminPages serves the login form and the dashboard.
type AdminPages struct {
	repo          AdminRepository
	renderer      *Renderer
	enabled       bool
	authenticated func(*http.Request) bool
}

// NewAdminPages creates the admin page handler. authenticated reports whether
// a request carries a valid admin session.
func NewAdminPages(repo AdminRepository, renderer *Renderer, enabled bool, authenticated func(*http.Request) bool) *AdminPages {
	return &AdminPages{repo: repo, renderer: renderer, enabled: enabled, authenticated: authenticated}
}

// RegisterRoutes mounts /admin/login and the guarded /admin dashboard.
func (a *AdminPages) RegisterRoutes(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	r.Get("/admin/login", a.Login)
	r.With(requireAdmin).Get("/admin", a.Dashboard)
}

// Login renders the sign-in form, or redirects signed-in admins.
func (a *AdminPages) Login(w http.ResponseWriter, r *http.Request) {
	if a.authenticated(r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	a.renderer.Render(w, http.StatusOK, "admin_login", &AdminData{
		Enabled: a.enabled,
		Failed:  r.URL.Query().Get("failed") == "1",
	})
}

// Dashboard shows content counts and recent contact messages.
func (a *AdminPages) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := &AdminData{Enabled: a.enabled, Authenticated: true}

	counts, err := a.repo.Counts(r.Context())
	if err != nil {
		slog.Error("Failed to load dashboard counts", "error", err)
	}
	data.Counts = counts

	msgs, err := a.repo.ListContactMessages(r.Context(), dashboardMessages)
	if err != nil {
		slog.Error("Failed to load dashboard messages", "error", err)
	}
	data.Messages = msgs

	a.renderer.Render(w, http.StatusOK, "admin_dashboard", data)
}
