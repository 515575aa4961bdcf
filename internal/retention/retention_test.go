package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRepo struct {
	mu              sync.Mutex
	transcriptCalls int
	visitorCalls    int
	transcriptErrs  []error
	visitorErr      error
	gotTTL          time.Duration
	gotIdle         time.Duration
}

func (f *fakeRepo) CleanupExpiredTranscripts(_ context.Context, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcriptCalls++
	f.gotTTL = ttl
	if len(f.transcriptErrs) > 0 {
		err := f.transcriptErrs[0]
		f.transcriptErrs = f.transcriptErrs[1:]
		return 0, err
	}
	return 3, nil
}

func (f *fakeRepo) DeleteIdleVisitors(_ context.Context, idle time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visitorCalls++
	f.gotIdle = idle
	if f.visitorErr != nil {
		return 0, f.visitorErr
	}
	return 2, nil
}

func (f *fakeRepo) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcriptCalls, f.visitorCalls
}

func testConfig() Config {
	return Config{
		Interval:      10 * time.Millisecond,
		TranscriptTTL: 24 * time.Hour,
		VisitorIdle:   30 * 24 * time.Hour,
		MaxRetries:    3,
		RetryDelay:    time.Millisecond,
	}
}

func TestSweep(t *testing.T) {
	repo := &fakeRepo{}
	res := Sweep(context.Background(), repo, testConfig())
	if res.Transcripts != 3 || res.Visitors != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if repo.gotTTL != 24*time.Hour || repo.gotIdle != 30*24*time.Hour {
		t.Fatalf("unexpected thresholds ttl=%v idle=%v", repo.gotTTL, repo.gotIdle)
	}
}

func TestSweepRetriesConflicts(t *testing.T) {
	repo := &fakeRepo{transcriptErrs: []error{errors.New("database is locked"), errors.New("SQLITE_BUSY")}}
	res := Sweep(context.Background(), repo, testConfig())
	if transcripts, _ := repo.calls(); transcripts != 3 {
		t.Fatalf("expected 3 attempts, got %d", transcripts)
	}
	if res.Transcripts != 3 {
		t.Fatalf("expected final attempt to succeed, got %+v", res)
	}
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{transcriptErrs: []error{errors.New("disk on fire")}}
	res := Sweep(context.Background(), repo, testConfig())
	transcripts, visitors := repo.calls()
	if transcripts != 1 {
		t.Fatalf("non-conflict errors must not be retried, got %d attempts", transcripts)
	}
	if visitors != 1 || res.Visitors != 2 {
		t.Fatalf("visitor cleanup should still run, got %d calls %+v", visitors, res)
	}
}

func TestSweepSkipsDisabledSteps(t *testing.T) {
	repo := &fakeRepo{}
	cfg := testConfig()
	cfg.VisitorIdle = 0
	Sweep(context.Background(), repo, cfg)
	if _, visitors := repo.calls(); visitors != 0 {
		t.Fatalf("visitor cleanup should be skipped, got %d calls", visitors)
	}
}

func TestStartStopsWithContext(t *testing.T) {
	repo := &fakeRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	done := Start(ctx, repo, testConfig())

	deadline := time.Now().Add(2 * time.Second)
	for {
		if transcripts, _ := repo.calls(); transcripts > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("worker never swept")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
