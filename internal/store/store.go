// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/atelier/internal/domain"
)

// ErrSlugTaken is returned when a post or product slug is already used.
var ErrSlugTaken = errors.New("slug already in use")

// ContentRepository reads and edits blog posts and products.
// Lookups return nil, nil when no row matches.
type ContentRepository interface {
	ListPosts(ctx context.Context, limit int) ([]*domain.Post, error)
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*domain.Post, error)
	UpsertPost(ctx context.Context, post *domain.Post) error
	DeletePost(ctx context.Context, id string) (bool, error)

	// ListProducts returns products, newest first. featuredOnly restricts
	// the result to featured products.
	ListProducts(ctx context.Context, featuredOnly bool, limit int) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	UpsertProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) (bool, error)
}

// ContactRepository stores contact form submissions.
type ContactRepository interface {
	CreateContactMessage(ctx context.Context, msg *domain.ContactMessage) error
	ListContactMessages(ctx context.Context, limit int) ([]*domain.ContactMessage, error)
}

// VisitorRepository tracks anonymous visitors.
type VisitorRepository interface {
	// GetVisitor retrieves a visitor by id, or nil if unknown.
	GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error)

	// UpsertVisitor creates or updates a visitor record.
	UpsertVisitor(ctx context.Context, visitor *domain.Visitor) error

	// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
	UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error

	// DeleteIdleVisitors removes visitors inactive for longer than idle,
	// together with their transcripts.
	DeleteIdleVisitors(ctx context.Context, idle time.Duration) (int64, error)
}

// TranscriptRepository persists chat records per visitor.
type TranscriptRepository interface {
	GetChatTranscript(ctx context.Context, visitorID string) (*domain.ChatTranscript, error)
	UpsertChatTranscript(ctx context.Context, t *domain.ChatTranscript) error
	DeleteChatTranscript(ctx context.Context, visitorID string) error

	// CleanupExpiredTranscripts removes transcripts last written before ttl ago.
	CleanupExpiredTranscripts(ctx context.Context, ttl time.Duration) (int64, error)
}

// Counts summarizes stored content for the admin dashboard.
type Counts struct {
	Posts    int `json:"posts"`
	Products int `json:"products"`
	Messages int `json:"messages"`
}

// Repository is the full persistence surface used by the server.
type Repository interface {
	ContentRepository
	ContactRepository
	VisitorRepository
	TranscriptRepository

	// Counts returns row counts for the dashboard.
	Counts(ctx context.Context) (Counts, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
