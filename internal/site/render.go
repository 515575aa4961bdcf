// Package site renders the localized public pages and the admin dashboard.
package site

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
)

var sitePages = []string{
	"home", "about", "services", "production", "contact",
	"products", "product", "blog", "post", "notfound",
}

var adminPages = []string{"admin_login", "admin_dashboard"}

// Renderer executes the page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses every page against its layout from files.
func NewRenderer(files fs.FS) (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, name := range sitePages {
		t, err := template.ParseFS(files, "layout.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	for _, name := range adminPages {
		t, err := template.ParseFS(files, "admin_layout.html", name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page name with data. Output is buffered so a template error
// never produces a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data interface{}) {
	t, ok := r.pages[name]
	if !ok {
		slog.Error("Unknown page template", "page", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("Failed to render page", "page", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("Failed to write page", "page", name, "error", err)
	}
}
