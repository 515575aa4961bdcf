package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/shared"
)

const postColumns = `id, slug, title_en, title_ar, excerpt_en, excerpt_ar, body_en, body_ar,
	category_en, category_ar, image_url, featured, published_at, created_at, updated_at`

const productColumns = `id, slug, title_en, title_ar, description_en, description_ar,
	category_en, category_ar, image_url, gallery_json, featured, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row scanner) (*domain.Post, error) {
	var p domain.Post
	var publishedAt, createdAt, updatedAt int64
	err := row.Scan(
		&p.ID, &p.Slug, &p.TitleEN, &p.TitleAR, &p.ExcerptEN, &p.ExcerptAR,
		&p.BodyEN, &p.BodyAR, &p.CategoryEN, &p.CategoryAR, &p.ImageURL,
		&p.Featured, &publishedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.PublishedAt = time.Unix(publishedAt, 0)
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

func scanProduct(row scanner) (*domain.Product, error) {
	var p domain.Product
	var galleryJSON string
	var createdAt, updatedAt int64
	err := row.Scan(
		&p.ID, &p.Slug, &p.TitleEN, &p.TitleAR, &p.DescriptionEN, &p.DescriptionAR,
		&p.CategoryEN, &p.CategoryAR, &p.ImageURL, &galleryJSON, &p.Featured,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if galleryJSON != "" {
		if err := json.Unmarshal([]byte(galleryJSON), &p.Gallery); err != nil {
			return nil, fmt.Errorf("decode gallery for product %s: %w", p.ID, err)
		}
	}
	if p.Gallery == nil {
		p.Gallery = []string{}
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// ListPosts returns posts ordered by publication time, newest first.
func (s *SQLStore) ListPosts(ctx context.Context, limit int) ([]*domain.Post, error) {
	rows, err := s.query(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY published_at DESC, created_at DESC LIMIT ?`,
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer closeRows(rows, "posts")

	var posts []*domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// GetPost retrieves a post by id.
func (s *SQLStore) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	return s.getPost(ctx, "id", id)
}

// GetPostBySlug retrieves a post by slug.
func (s *SQLStore) GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return s.getPost(ctx, "slug", slug)
}

func (s *SQLStore) getPost(ctx context.Context, column, value string) (*domain.Post, error) {
	p, err := scanPost(s.queryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE `+column+` = ?`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan post row: %w", err)
	}
	return p, nil
}

// UpsertPost creates or updates a post keyed by id.
func (s *SQLStore) UpsertPost(ctx context.Context, p *domain.Post) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.PublishedAt.IsZero() {
		p.PublishedAt = now
	}
	p.UpdatedAt = now

	query := `
	INSERT INTO posts (` + postColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		slug = excluded.slug,
		title_en = excluded.title_en,
		title_ar = excluded.title_ar,
		excerpt_en = excluded.excerpt_en,
		excerpt_ar = excluded.excerpt_ar,
		body_en = excluded.body_en,
		body_ar = excluded.body_ar,
		category_en = excluded.category_en,
		category_ar = excluded.category_ar,
		image_url = excluded.image_url,
		featured = excluded.featured,
		published_at = excluded.published_at,
		updated_at = excluded.updated_at`

	_, err := s.exec(ctx, "upsert post", query,
		p.ID, p.Slug, p.TitleEN, p.TitleAR, p.ExcerptEN, p.ExcerptAR,
		p.BodyEN, p.BodyAR, p.CategoryEN, p.CategoryAR, p.ImageURL, p.Featured,
		p.PublishedAt.Unix(), p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if shared.IsUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}
	return nil
}

// DeletePost removes a post and reports whether it existed.
func (s *SQLStore) DeletePost(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "posts", id)
}

// ListProducts returns products, newest first.
func (s *SQLStore) ListProducts(ctx context.Context, featuredOnly bool, limit int) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []interface{}{}
	if featuredOnly {
		query += ` WHERE featured = ?`
		args = append(args, true)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, normalizeLimit(limit))

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer closeRows(rows, "products")

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// GetProduct retrieves a product by id.
func (s *SQLStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, "id", id)
}

// GetProductBySlug retrieves a product by slug.
func (s *SQLStore) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return s.getProduct(ctx, "slug", slug)
}

func (s *SQLStore) getProduct(ctx context.Context, column, value string) (*domain.Product, error) {
	p, err := scanProduct(s.queryRow(ctx, `SELECT `+productColumns+` FROM products WHERE `+column+` = ?`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan product row: %w", err)
	}
	return p, nil
}

// UpsertProduct creates or updates a product keyed by id.
func (s *SQLStore) UpsertProduct(ctx context.Context, p *domain.Product) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Gallery == nil {
		p.Gallery = []string{}
	}
	gallery, err := json.Marshal(p.Gallery)
	if err != nil {
		return fmt.Errorf("encode gallery: %w", err)
	}

	query := `
	INSERT INTO products (` + productColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		slug = excluded.slug,
		title_en = excluded.title_en,
		title_ar = excluded.title_ar,
		description_en = excluded.description_en,
		description_ar = excluded.description_ar,
		category_en = excluded.category_en,
		category_ar = excluded.category_ar,
		image_url = excluded.image_url,
		gallery_json = excluded.gallery_json,
		featured = excluded.featured,
		updated_at = excluded.updated_at`

	_, err = s.exec(ctx, "upsert product", query,
		p.ID, p.Slug, p.TitleEN, p.TitleAR, p.DescriptionEN, p.DescriptionAR,
		p.CategoryEN, p.CategoryAR, p.ImageURL, string(gallery), p.Featured,
		p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if shared.IsUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// DeleteProduct removes a product and reports whether it existed.
func (s *SQLStore) DeleteProduct(ctx context.Context, id string) (bool, error) {
	return s.deleteByID(ctx, "products", id)
}

func (s *SQLStore) deleteByID(ctx context.Context, table, id string) (bool, error) {
	result, err := s.exec(ctx, "delete from "+table, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete from %s: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// CreateContactMessage stores a contact form submission.
func (s *SQLStore) CreateContactMessage(ctx context.Context, m *domain.ContactMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.exec(ctx, "insert contact message", `
		INSERT INTO contact_messages (id, locale, name, email, phone, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Locale, m.Name, m.Email, m.Phone, m.Message, m.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

// ListContactMessages returns submissions, newest first.
func (s *SQLStore) ListContactMessages(ctx context.Context, limit int) ([]*domain.ContactMessage, error) {
	rows, err := s.query(ctx, `
		SELECT id, locale, name, email, phone, message, created_at
		FROM contact_messages ORDER BY created_at DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query contact messages: %w", err)
	}
	defer closeRows(rows, "contact_messages")

	var out []*domain.ContactMessage
	for rows.Next() {
		var m domain.ContactMessage
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Locale, &m.Name, &m.Email, &m.Phone, &m.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan contact message row: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact messages: %w", err)
	}
	return out, nil
}
