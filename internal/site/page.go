package site

import (
	"html/template"
	"strings"

	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/locale"
)

// ContactForm holds submitted contact fields for redisplay.
type ContactForm struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// PageData is passed to every public page template.
type PageData struct {
	Locale      locale.Code
	Dir         locale.Direction
	Title       string
	Active      string
	Path        string // request path below the locale segment, "/" at the root
	WhatsAppURL string
	Year        int

	Products []domain.LocalizedProduct
	Posts    []domain.LocalizedPost
	Product  *domain.LocalizedProduct
	Post     *domain.LocalizedPost
	Body     template.HTML

	Sent      bool
	FormError string // dictionary key
	Form      ContactForm

	dict *locale.Dictionary
}

// T looks up key in the page's dictionary.
func (p *PageData) T(key string) string {
	return p.dict.T(key)
}

// Href prefixes path with the page locale.
func (p *PageData) Href(path string) string {
	return localePath(p.Locale, path)
}

// SwitchHref is the current page under the other locale.
func (p *PageData) SwitchHref() string {
	return localePath(p.Locale.Other(), p.Path)
}

func localePath(lc locale.Code, path string) string {
	if path == "" || path == "/" {
		return "/" + string(lc) + "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return "/" + string(lc) + path
}

// subPath strips the leading /{locale} segment from a request path.
func subPath(lc locale.Code, requestPath string) string {
	rest := strings.TrimPrefix(requestPath, "/"+string(lc))
	if rest == "" {
		return "/"
	}
	return rest
}
