package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/atelier/internal/shared"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var _ Repository = (*SQLStore)(nil)

// SQLStore implements Repository on database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db         *sql.DB
	driver     string
	maxRetries int
	retryDelay time.Duration
}

// Option configures an SQLStore.
type Option func(*SQLStore)

// WithRetry sets the retry policy used for conflict errors.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(s *SQLStore) {
		if maxRetries > 0 {
			s.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			s.retryDelay = baseDelay
		}
	}
}

// Open opens the repository for driver ("sqlite" or "postgres"). For SQLite
// dsn is a file path; for PostgreSQL it is a connection URL.
func Open(driver, dsn string, opts ...Option) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		return NewSQLite(dsn, opts...)
	case DriverPostgres:
		return NewPostgres(dsn, opts...)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string, opts ...Option) (*SQLStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, DriverSQLite, opts)
}

// NewPostgres creates a new PostgreSQL-backed repository.
func NewPostgres(databaseURL string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, DriverPostgres, opts)
}

func newSQLStore(db *sql.DB, driver string, opts []Option) (*SQLStore, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{
		db:         db,
		driver:     driver,
		maxRetries: 3,
		retryDelay: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	title_en TEXT NOT NULL,
	title_ar TEXT NOT NULL DEFAULT '',
	excerpt_en TEXT NOT NULL DEFAULT '',
	excerpt_ar TEXT NOT NULL DEFAULT '',
	body_en TEXT NOT NULL DEFAULT '',
	body_ar TEXT NOT NULL DEFAULT '',
	category_en TEXT NOT NULL DEFAULT '',
	category_ar TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	featured BOOLEAN NOT NULL DEFAULT FALSE,
	published_at BIGINT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published_at);

CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	title_en TEXT NOT NULL,
	title_ar TEXT NOT NULL DEFAULT '',
	description_en TEXT NOT NULL DEFAULT '',
	description_ar TEXT NOT NULL DEFAULT '',
	category_en TEXT NOT NULL DEFAULT '',
	category_ar TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	gallery_json TEXT NOT NULL DEFAULT '[]',
	featured BOOLEAN NOT NULL DEFAULT FALSE,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_created ON products(created_at);

CREATE TABLE IF NOT EXISTS contact_messages (
	id TEXT PRIMARY KEY,
	locale TEXT NOT NULL,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contact_created ON contact_messages(created_at);

CREATE TABLE IF NOT EXISTS visitors (
	visitor_id TEXT PRIMARY KEY,
	locale TEXT NOT NULL DEFAULT '',
	last_seen_at BIGINT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_visitors_last_seen ON visitors(last_seen_at);

CREATE TABLE IF NOT EXISTS chat_transcripts (
	visitor_id TEXT PRIMARY KEY,
	locale TEXT NOT NULL,
	messages_json TEXT NOT NULL,
	record_timestamp BIGINT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_transcripts_updated ON chat_transcripts(updated_at);
`

func (s *SQLStore) initSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Driver returns the database driver name.
func (s *SQLStore) Driver() string {
	return s.driver
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Counts returns row counts for the dashboard.
func (s *SQLStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM posts),
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM contact_messages)`)
	if err := row.Scan(&c.Posts, &c.Products, &c.Messages); err != nil {
		return Counts{}, fmt.Errorf("count content: %w", err)
	}
	return c, nil
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, name, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := shared.RetryOnConflict(ctx, name, s.maxRetries, s.retryDelay, func() error {
		var execErr error
		result, execErr = s.db.ExecContext(ctx, s.rebind(query), args...)
		return execErr
	})
	return result, err
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}
