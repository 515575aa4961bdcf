// Package retention removes expired chat transcripts and idle visitors.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/atelier/internal/shared"
	"github.com/ashureev/atelier/internal/store"
)

// Repository is the subset of the store the worker needs.
type Repository interface {
	CleanupExpiredTranscripts(ctx context.Context, ttl time.Duration) (int64, error)
	DeleteIdleVisitors(ctx context.Context, idle time.Duration) (int64, error)
}

var _ Repository = (store.Repository)(nil)

// Config controls the sweep.
type Config struct {
	Interval      time.Duration
	TranscriptTTL time.Duration
	VisitorIdle   time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
}

// Result reports what one sweep removed.
type Result struct {
	Transcripts int64
	Visitors    int64
}

// Start runs a background goroutine that sweeps every cfg.Interval until ctx
// is done. The returned channel closes when the goroutine exits.
func Start(ctx context.Context, repo Repository, cfg Config) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		slog.Info("Retention worker started",
			"interval", cfg.Interval,
			"transcript_ttl", cfg.TranscriptTTL,
			"visitor_idle", cfg.VisitorIdle)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, cfg)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

// Sweep runs one cleanup pass. Failures are logged and do not stop the
// other step.
func Sweep(ctx context.Context, repo Repository, cfg Config) Result {
	var res Result

	if cfg.TranscriptTTL > 0 {
		err := shared.RetryOnConflict(ctx, "cleanup transcripts", cfg.MaxRetries, cfg.RetryDelay, func() error {
			n, err := repo.CleanupExpiredTranscripts(ctx, cfg.TranscriptTTL)
			res.Transcripts = n
			return err
		})
		if err != nil {
			slog.Error("Retention worker failed to clean up transcripts", "error", err)
		} else if res.Transcripts > 0 {
			slog.Info("Retention worker removed expired transcripts", "count", res.Transcripts)
		}
	}

	if cfg.VisitorIdle > 0 {
		err := shared.RetryOnConflict(ctx, "delete idle visitors", cfg.MaxRetries, cfg.RetryDelay, func() error {
			n, err := repo.DeleteIdleVisitors(ctx, cfg.VisitorIdle)
			res.Visitors = n
			return err
		})
		if err != nil {
			slog.Error("Retention worker failed to delete idle visitors", "error", err)
		} else if res.Visitors > 0 {
			slog.Info("Retention worker removed idle visitors", "count", res.Visitors)
		}
	}

	return res
}
