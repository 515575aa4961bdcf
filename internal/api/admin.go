package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxAdminBody     = 1 << 20
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a lowercase, hyphen-separated slug.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// AdminHandler serves content management endpoints.
type AdminHandler struct {
	*Handler
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(base *Handler) *AdminHandler {
	return &AdminHandler{Handler: base}
}

// RegisterRoutes mounts the admin API on r. Callers wrap r with an auth check.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/counts", h.Counts)

	r.Get("/posts", h.ListPosts)
	r.Post("/posts", h.CreatePost)
	r.Get("/posts/{id}", h.GetPost)
	r.Put("/posts/{id}", h.UpdatePost)
	r.Delete("/posts/{id}", h.DeletePost)

	r.Get("/products", h.ListProducts)
	r.Post("/products", h.CreateProduct)
	r.Get("/products/{id}", h.GetProduct)
	r.Put("/products/{id}", h.UpdateProduct)
	r.Delete("/products/{id}", h.DeleteProduct)

	r.Get("/messages", h.ListMessages)
}

// Counts returns content totals for the dashboard.
func (h *AdminHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.repo.Counts(r.Context())
	if err != nil {
		slog.Error("Failed to count content", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load counts")
		return
	}
	JSON(w, http.StatusOK, counts)
}

// ListPosts returns posts, newest first.
func (h *AdminHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.repo.ListPosts(r.Context(), listLimit(r))
	if err != nil {
		slog.Error("Failed to list posts", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list posts")
		return
	}
	if posts == nil {
		posts = []*domain.Post{}
	}
	JSON(w, http.StatusOK, posts)
}

// GetPost returns one post by id.
func (h *AdminHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.repo.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("Failed to get post", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load post")
		return
	}
	if post == nil {
		Error(w, http.StatusNotFound, "post not found")
		return
	}
	JSON(w, http.StatusOK, post)
}

// CreatePost stores a new post with a generated id.
func (h *AdminHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var post domain.Post
	if !decodeBody(w, r, &post) {
		return
	}
	if msg := validatePost(&post); msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}
	post.ID = uuid.NewString()
	post.CreatedAt = time.Time{}
	h.savePost(w, r, &post, http.StatusCreated)
}

// UpdatePost replaces an existing post.
func (h *AdminHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	existing, err := h.repo.GetPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("Failed to get post", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load post")
		return
	}
	if existing == nil {
		Error(w, http.StatusNotFound, "post not found")
		return
	}

	var post domain.Post
	if !decodeBody(w, r, &post) {
		return
	}
	if msg := validatePost(&post); msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}
	post.ID = existing.ID
	post.CreatedAt = existing.CreatedAt
	if post.PublishedAt.IsZero() {
		post.PublishedAt = existing.PublishedAt
	}
	h.savePost(w, r, &post, http.StatusOK)
}

func (h *AdminHandler) savePost(w http.ResponseWriter, r *http.Request, post *domain.Post, status int) {
	err := h.repo.UpsertPost(r.Context(), post)
	if errors.Is(err, store.ErrSlugTaken) {
		Error(w, http.StatusConflict, "slug already in use")
		return
	}
	if err != nil {
		slog.Error("Failed to save post", "error", err, "slug", post.Slug)
		Error(w, http.StatusInternalServerError, "failed to save post")
		return
	}
	slog.Info("Post saved", "id", post.ID, "slug", post.Slug)
	JSON(w, status, post)
}

// DeletePost removes a post.
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	h.deleteRow(w, r, "post", h.repo.DeletePost)
}

// ListProducts returns products, newest first. ?featured=true filters.
func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	featured, _ := strconv.ParseBool(r.URL.Query().Get("featured"))
	products, err := h.repo.ListProducts(r.Context(), featured, listLimit(r))
	if err != nil {
		slog.Error("Failed to list products", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	JSON(w, http.StatusOK, products)
}

// GetProduct returns one product by id.
func (h *AdminHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.repo.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("Failed to get product", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if product == nil {
		Error(w, http.StatusNotFound, "product not found")
		return
	}
	JSON(w, http.StatusOK, product)
}

// CreateProduct stores a new product with a generated id.
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product domain.Product
	if !decodeBody(w, r, &product) {
		return
	}
	if msg := validateProduct(&product); msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}
	product.ID = uuid.NewString()
	product.CreatedAt = time.Time{}
	h.saveProduct(w, r, &product, http.StatusCreated)
}

// UpdateProduct replaces an existing product.
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	existing, err := h.repo.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("Failed to get product", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if existing == nil {
		Error(w, http.StatusNotFound, "product not found")
		return
	}

	var product domain.Product
	if !decodeBody(w, r, &product) {
		return
	}
	if msg := validateProduct(&product); msg != "" {
		Error(w, http.StatusBadRequest, msg)
		return
	}
	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt
	h.saveProduct(w, r, &product, http.StatusOK)
}

func (h *AdminHandler) saveProduct(w http.ResponseWriter, r *http.Request, product *domain.Product, status int) {
	err := h.repo.UpsertProduct(r.Context(), product)
	if errors.Is(err, store.ErrSlugTaken) {
		Error(w, http.StatusConflict, "slug already in use")
		return
	}
	if err != nil {
		slog.Error("Failed to save product", "error", err, "slug", product.Slug)
		Error(w, http.StatusInternalServerError, "failed to save product")
		return
	}
	slog.Info("Product saved", "id", product.ID, "slug", product.Slug)
	JSON(w, status, product)
}

// DeleteProduct removes a product.
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	h.deleteRow(w, r, "product", h.repo.DeleteProduct)
}

// ListMessages returns contact form submissions, newest first.
func (h *AdminHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.repo.ListContactMessages(r.Context(), listLimit(r))
	if err != nil {
		slog.Error("Failed to list contact messages", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []*domain.ContactMessage{}
	}
	JSON(w, http.StatusOK, msgs)
}

func (h *AdminHandler) deleteRow(w http.ResponseWriter, r *http.Request, kind string, del func(ctx context.Context, id string) (bool, error)) {
	id := chi.URLParam(r, "id")
	deleted, err := del(r.Context(), id)
	if err != nil {
		slog.Error("Failed to delete "+kind, "error", err, "id", id)
		Error(w, http.StatusInternalServerError, "failed to delete "+kind)
		return
	}
	if !deleted {
		Error(w, http.StatusNotFound, kind+" not found")
		return
	}
	slog.Info("Deleted "+kind, "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAdminBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func listLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

func validatePost(p *domain.Post) string {
	p.Slug = strings.TrimSpace(p.Slug)
	switch {
	case !ValidSlug(p.Slug):
		return "slug must be lowercase letters, digits and single hyphens"
	case strings.TrimSpace(p.TitleEN) == "":
		return "title_en is required"
	case strings.TrimSpace(p.BodyEN) == "":
		return "body_en is required"
	}
	return ""
}

func validateProduct(p *domain.Product) string {
	p.Slug = strings.TrimSpace(p.Slug)
	switch {
	case !ValidSlug(p.Slug):
		return "slug must be lowercase letters, digits and single hyphens"
	case strings.TrimSpace(p.TitleEN) == "":
		return "title_en is required"
	}
	return ""
}
