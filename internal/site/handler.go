package site

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/locale"
	"github.com/ashureev/atelier/internal/store"
	"github.com/ashureev/atelier/internal/widget"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	homeFeaturedLimit = 6
	homePostsLimit    = 3
	listLimit         = 100
	maxContactBody    = 64 << 10
)

// Repository is the content the public pages read and write.
type Repository interface {
	store.ContentRepository
	store.ContactRepository
}

// Handler serves the localized public pages.
type Handler struct {
	repo        Repository
	renderer    *Renderer
	md          goldmark.Markdown
	whatsAppURL string
	now         func() time.Time
}

// NewHandler creates the public site handler.
func NewHandler(repo Repository, renderer *Renderer, whatsAppNumber string) *Handler {
	return &Handler{
		repo:        repo,
		renderer:    renderer,
		md:          goldmark.New(goldmark.WithExtensions(extension.GFM)),
		whatsAppURL: widget.WhatsAppLink(whatsAppNumber),
		now:         time.Now,
	}
}

// RegisterRoutes mounts the root redirect and every page under /{locale}.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.RedirectToLocale)
	r.Route("/{"+locale.URLParam+"}", func(r chi.Router) {
		r.Use(locale.Middleware(http.HandlerFunc(h.NotFound)))
		r.Get("/", h.Home)
		r.Get("/about", h.static("about", "about.title"))
		r.Get("/services", h.static("services", "services.title"))
		r.Get("/production", h.static("production", "production.title"))
		r.Get("/contact", h.Contact)
		r.Post("/contact", h.SubmitContact)
		r.Get("/products", h.Products)
		r.Get("/products/{slug}", h.Product)
		r.Get("/blog", h.Blog)
		r.Get("/blog/{slug}", h.Post)
		r.NotFound(h.NotFound)
	})
}

// RedirectToLocale sends / to the visitor's preferred locale.
func (h *Handler) RedirectToLocale(w http.ResponseWriter, r *http.Request) {
	lc := locale.Detect(r.Header.Get("Accept-Language"))
	w.Header().Add("Vary", "Accept-Language")
	http.Redirect(w, r, localePath(lc, "/"), http.StatusFound)
}

func (h *Handler) page(r *http.Request, active, titleKey string) *PageData {
	lc := locale.FromContext(r.Context())
	p := &PageData{
		Locale:      lc,
		Dir:         locale.DirectionOf(lc),
		Active:      active,
		Path:        subPath(lc, r.URL.Path),
		WhatsAppURL: h.whatsAppURL,
		Year:        h.now().Year(),
		dict:        locale.DictionaryFor(string(lc)),
	}
	if titleKey != "" {
		p.Title = p.T(titleKey)
	}
	return p
}

func (h *Handler) static(name, titleKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.renderer.Render(w, http.StatusOK, name, h.page(r, name, titleKey))
	}
}

// Home shows featured products and the latest posts.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "home", "")
	ctx := r.Context()

	products, err := h.repo.ListProducts(ctx, true, homeFeaturedLimit)
	if err != nil {
		slog.Error("Failed to list featured products", "error", err)
	}
	posts, err := h.repo.ListPosts(ctx, homePostsLimit)
	if err != nil {
		slog.Error("Failed to list latest posts", "error", err)
	}

	p.Products = localizeProducts(products, p.Locale)
	p.Posts = localizePosts(posts, p.Locale)
	h.renderer.Render(w, http.StatusOK, "home", p)
}

// Products lists the catalog.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListProducts(r.Context(), false, listLimit)
	if err != nil {
		h.serverError(w, r, "list products", err)
		return
	}
	p := h.page(r, "products", "products.title")
	p.Products = localizeProducts(products, p.Locale)
	h.renderer.Render(w, http.StatusOK, "products", p)
}

// Product shows one catalog entry.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	product, err := h.repo.GetProductBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.serverError(w, r, "get product", err)
		return
	}
	if product == nil {
		h.NotFound(w, r)
		return
	}
	p := h.page(r, "products", "")
	lp := product.Localized(string(p.Locale))
	p.Product = &lp
	p.Title = lp.Title
	h.renderer.Render(w, http.StatusOK, "product", p)
}

// Blog lists posts, newest first.
func (h *Handler) Blog(w http.ResponseWriter, r *http.Request) {
	posts, err := h.repo.ListPosts(r.Context(), listLimit)
	if err != nil {
		h.serverError(w, r, "list posts", err)
		return
	}
	p := h.page(r, "blog", "blog.title")
	p.Posts = localizePosts(posts, p.Locale)
	h.renderer.Render(w, http.StatusOK, "blog", p)
}

// Post renders one blog post. Bodies are markdown.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	post, err := h.repo.GetPostBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.serverError(w, r, "get post", err)
		return
	}
	if post == nil {
		h.NotFound(w, r)
		return
	}
	p := h.page(r, "blog", "")
	lp := post.Localized(string(p.Locale))
	p.Post = &lp
	p.Title = lp.Title

	var buf bytes.Buffer
	if err := h.md.Convert([]byte(lp.Body), &buf); err != nil {
		h.serverError(w, r, "render post body", err)
		return
	}
	// goldmark escapes raw HTML unless WithUnsafe is set.
	p.Body = template.HTML(buf.String()) //nolint:gosec

	h.renderer.Render(w, http.StatusOK, "post", p)
}

// Contact shows the contact form.
func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, "contact", "contact.title")
	p.Sent = r.URL.Query().Get("sent") == "1"
	h.renderer.Render(w, http.StatusOK, "contact", p)
}

// SubmitContact stores a contact message and redirects back to the form.
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxContactBody)
	p := h.page(r, "contact", "contact.title")

	if err := r.ParseForm(); err != nil {
		p.FormError = "contact.error_required"
		h.renderer.Render(w, http.StatusBadRequest, "contact", p)
		return
	}

	p.Form = ContactForm{
		Name:    strings.TrimSpace(r.PostFormValue("name")),
		Email:   strings.TrimSpace(r.PostFormValue("email")),
		Phone:   strings.TrimSpace(r.PostFormValue("phone")),
		Message: strings.TrimSpace(r.PostFormValue("message")),
	}
	msg := &domain.ContactMessage{
		ID:      uuid.NewString(),
		Locale:  string(p.Locale),
		Name:    p.Form.Name,
		Email:   p.Form.Email,
		Phone:   p.Form.Phone,
		Message: p.Form.Message,
	}
	if !msg.Complete() {
		p.FormError = "contact.error_required"
		h.renderer.Render(w, http.StatusBadRequest, "contact", p)
		return
	}

	if err := h.repo.CreateContactMessage(r.Context(), msg); err != nil {
		slog.Error("Failed to store contact message", "error", err, "locale", p.Locale)
		p.FormError = "contact.error_failed"
		h.renderer.Render(w, http.StatusInternalServerError, "contact", p)
		return
	}

	slog.Info("Contact message received", "id", msg.ID, "locale", p.Locale)
	http.Redirect(w, r, p.Href("/contact")+"?sent=1", http.StatusSeeOther)
}

// NotFound renders the localized 404 page. The locale comes from the first
// path segment when it is supported, otherwise from Accept-Language.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	lc := requestLocale(r)
	p := &PageData{
		Locale:      lc,
		Dir:         locale.DirectionOf(lc),
		Path:        "/",
		WhatsAppURL: h.whatsAppURL,
		Year:        h.now().Year(),
		dict:        locale.DictionaryFor(string(lc)),
	}
	p.Title = p.T("notfound.title")
	h.renderer.Render(w, http.StatusNotFound, "notfound", p)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error("Page request failed", "operation", op, "path", r.URL.Path, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func requestLocale(r *http.Request) locale.Code {
	first, _, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if locale.IsValid(first) {
		return locale.Code(first)
	}
	return locale.Detect(r.Header.Get("Accept-Language"))
}

func localizeProducts(in []*domain.Product, lc locale.Code) []domain.LocalizedProduct {
	out := make([]domain.LocalizedProduct, 0, len(in))
	for _, p := range in {
		out = append(out, p.Localized(string(lc)))
	}
	return out
}

func localizePosts(in []*domain.Post, lc locale.Code) []domain.LocalizedPost {
	out := make([]domain.LocalizedPost, 0, len(in))
	for _, p := range in {
		out = append(out, p.Localized(string(lc)))
	}
	return out
}
