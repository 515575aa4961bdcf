package chat

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConversationLoggerWritesPerVisitorNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global", "all.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:       true,
		Dir:           dir,
		GlobalEnabled: true,
		GlobalPath:    globalPath,
		QueueSize:     16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}

	logger.Log(ConversationLogEvent{
		VisitorID:  "visitor_1",
		Locale:     "ar",
		Channel:    "chat_http",
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: "أين   **موقعكم**؟",
	})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	line := readLastLine(t, filepath.Join(dir, "visitor_1.ndjson"))
	var got ConversationLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.ContentRaw != "أين   **موقعكم**؟" {
		t.Fatalf("unexpected ContentRaw: %q", got.ContentRaw)
	}
	if got.Content != "أين موقعكم؟" {
		t.Fatalf("expected cleaned content, got %q", got.Content)
	}
	if got.Timestamp == "" {
		t.Fatal("expected timestamp to be filled in")
	}
	if readLastLine(t, globalPath) != line {
		t.Fatal("expected global log to mirror the visitor log")
	}
}

func TestConversationLoggerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	logger.Log(ConversationLogEvent{VisitorID: "v"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestConversationLoggerLogAfterClose(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: true, Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Log(ConversationLogEvent{VisitorID: "late"})
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestSafeFileName(t *testing.T) {
	t.Parallel()

	if got := safeFileName("../../etc/passwd"); strings.ContainsAny(got, "./") {
		t.Fatalf("path characters must be replaced: %q", got)
	}
	if got := safeFileName(""); got != "unknown" {
		t.Fatalf("expected fallback name, got %q", got)
	}
}

func TestCleanForReadabilityStripsControlChars(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m   plain"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b") {
		t.Fatalf("expected escape bytes to be stripped: %q", clean)
	}
	if !strings.Contains(clean, "plain") {
		t.Fatalf("expected readable text to remain: %q", clean)
	}
}

func readLastLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			return lines[len(lines)-1]
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
