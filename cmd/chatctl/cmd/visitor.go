package cmd

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashureev/atelier/internal/identity"
)

const httpTimeout = 90 * time.Second

// visitorJar keeps the visitor cookie between runs.
type visitorJar struct {
	jar  *cookiejar.Jar
	base *url.URL
	path string
}

func newVisitorJar(server, path string) (*visitorJar, error) {
	base, err := url.Parse(server)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", server)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	v := &visitorJar{jar: jar, base: base, path: path}

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); identity.IsValidVisitorID(id) {
			jar.SetCookies(base, []*http.Cookie{{Name: identity.VisitorCookieName, Value: id, Path: "/"}})
		}
	}
	return v, nil
}

// HTTPClient returns a client sending the visitor cookie.
func (v *visitorJar) HTTPClient() *http.Client {
	return &http.Client{Jar: v.jar, Timeout: httpTimeout}
}

// VisitorID returns the id the server assigned, if any.
func (v *visitorJar) VisitorID() string {
	for _, c := range v.jar.Cookies(v.base) {
		if c.Name == identity.VisitorCookieName && identity.IsValidVisitorID(c.Value) {
			return c.Value
		}
	}
	return ""
}

// Save writes the current visitor id to disk.
func (v *visitorJar) Save() error {
	id := v.VisitorID()
	if id == "" || v.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(v.path), 0o700); err != nil {
		return fmt.Errorf("create visitor directory: %w", err)
	}
	return os.WriteFile(v.path, []byte(id+"\n"), 0o600)
}
