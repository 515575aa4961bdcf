package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/atelier/internal/domain"
)

// GetVisitor retrieves a visitor by id.
func (s *SQLStore) GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error) {
	row := s.queryRow(ctx, `
		SELECT visitor_id, locale, last_seen_at, created_at, updated_at
		FROM visitors WHERE visitor_id = ?`, visitorID)

	var v domain.Visitor
	var lastSeen, createdAt, updatedAt int64
	err := row.Scan(&v.VisitorID, &v.Locale, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan visitor row: %w", err)
	}
	v.LastSeenAt = time.Unix(lastSeen, 0)
	v.CreatedAt = time.Unix(createdAt, 0)
	v.UpdatedAt = time.Unix(updatedAt, 0)
	return &v, nil
}

// UpsertVisitor creates or updates a visitor record.
func (s *SQLStore) UpsertVisitor(ctx context.Context, v *domain.Visitor) error {
	query := `
	INSERT INTO visitors (visitor_id, locale, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(visitor_id) DO UPDATE SET
		locale = excluded.locale,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.exec(ctx, "upsert visitor", query,
		v.VisitorID, v.Locale, v.LastSeenAt.Unix(), v.CreatedAt.Unix(), v.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert visitor: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
func (s *SQLStore) UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error {
	result, err := s.exec(ctx, "update last seen",
		`UPDATE visitors SET last_seen_at = ?, updated_at = ? WHERE visitor_id = ?`,
		lastSeen.Unix(), time.Now().Unix(), visitorID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "visitor_id", visitorID)
	}
	return nil
}

// DeleteIdleVisitors removes visitors inactive for longer than idle along
// with their transcripts.
func (s *SQLStore) DeleteIdleVisitors(ctx context.Context, idle time.Duration) (int64, error) {
	threshold := time.Now().Add(-idle).Unix()
	if _, err := s.exec(ctx, "delete idle transcripts", `
		DELETE FROM chat_transcripts WHERE visitor_id IN (
			SELECT visitor_id FROM visitors WHERE last_seen_at < ?
		)`, threshold); err != nil {
		return 0, fmt.Errorf("delete idle visitor transcripts: %w", err)
	}
	result, err := s.exec(ctx, "delete idle visitors", `DELETE FROM visitors WHERE last_seen_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("delete idle visitors: %w", err)
	}
	return result.RowsAffected()
}

// GetChatTranscript retrieves the persisted chat record for a visitor.
func (s *SQLStore) GetChatTranscript(ctx context.Context, visitorID string) (*domain.ChatTranscript, error) {
	row := s.queryRow(ctx, `
		SELECT visitor_id, locale, messages_json, record_timestamp, created_at, updated_at
		FROM chat_transcripts WHERE visitor_id = ?`, visitorID)

	var t domain.ChatTranscript
	var messagesJSON string
	var createdAt, updatedAt int64
	err := row.Scan(&t.VisitorID, &t.Record.Locale, &messagesJSON, &t.Record.Timestamp, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat transcript: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &t.Record.Messages); err != nil {
		return nil, fmt.Errorf("decode chat transcript messages: %w", err)
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	return &t, nil
}

// UpsertChatTranscript creates or replaces the chat record for a visitor.
// The synthetic welcome message is never written.
func (s *SQLStore) UpsertChatTranscript(ctx context.Context, t *domain.ChatTranscript) error {
	messages, err := json.Marshal(domain.WithoutWelcome(t.Record.Messages))
	if err != nil {
		return fmt.Errorf("encode chat transcript messages: %w", err)
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `
	INSERT INTO chat_transcripts (visitor_id, locale, messages_json, record_timestamp, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(visitor_id) DO UPDATE SET
		locale = excluded.locale,
		messages_json = excluded.messages_json,
		record_timestamp = excluded.record_timestamp,
		updated_at = excluded.updated_at`

	_, err = s.exec(ctx, "upsert chat transcript", query,
		t.VisitorID, t.Record.Locale, string(messages), t.Record.Timestamp,
		t.CreatedAt.Unix(), t.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert chat transcript: %w", err)
	}
	return nil
}

// DeleteChatTranscript removes the chat record for a visitor.
func (s *SQLStore) DeleteChatTranscript(ctx context.Context, visitorID string) error {
	if _, err := s.exec(ctx, "delete chat transcript",
		`DELETE FROM chat_transcripts WHERE visitor_id = ?`, visitorID); err != nil {
		return fmt.Errorf("delete chat transcript: %w", err)
	}
	return nil
}

// CleanupExpiredTranscripts removes transcripts last written before ttl ago.
func (s *SQLStore) CleanupExpiredTranscripts(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).UnixMilli()
	result, err := s.exec(ctx, "cleanup transcripts",
		`DELETE FROM chat_transcripts WHERE record_timestamp < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired transcripts: %w", err)
	}
	return result.RowsAffected()
}
