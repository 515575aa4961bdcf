package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/atelier/internal/config"
)

type fakeBackend struct {
	reply string
	err   error
	got   Request
	calls int
}

func (f *fakeBackend) Complete(_ context.Context, req Request) (string, error) {
	f.calls++
	f.got = req
	return f.reply, f.err
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{MaxHistory: 4, MaxMessageLength: 20}
}

func userTurn(content string) Message { return Message{Role: RoleUser, Content: content} }

func TestServiceReplyValidation(t *testing.T) {
	backend := &fakeBackend{reply: "ok"}
	svc := NewService(backend, testChatConfig(), time.Second)

	tests := []struct {
		name string
		req  Request
	}{
		{"bad language", Request{Language: "fr", Messages: []Message{userTurn("hi")}}},
		{"no messages", Request{Language: "en"}},
		{"bad role", Request{Language: "en", Messages: []Message{{Role: "system", Content: "x"}}}},
		{"blank content", Request{Language: "en", Messages: []Message{userTurn("   ")}}},
		{"too long", Request{Language: "en", Messages: []Message{userTurn(strings.Repeat("a", 21))}}},
		{"last not user", Request{Language: "en", Messages: []Message{userTurn("hi"), {Role: RoleAssistant, Content: "yo"}}}},
	}
	for _, tt := range tests {
		if _, err := svc.Reply(context.Background(), tt.req); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("%s: expected ErrInvalidRequest, got %v", tt.name, err)
		}
	}
	if backend.calls != 0 {
		t.Fatalf("backend must not be called for invalid requests, got %d calls", backend.calls)
	}
}

func TestServiceReplyTruncatesHistoryAndResolvesPage(t *testing.T) {
	backend := &fakeBackend{reply: "answer"}
	svc := NewService(backend, testChatConfig(), time.Second)

	req := Request{
		Language: "ar",
		Messages: []Message{
			userTurn("1"), {Role: RoleAssistant, Content: "2"},
			userTurn("3"), {Role: RoleAssistant, Content: "4"},
			userTurn("5"), {Role: RoleAssistant, Content: "6"},
			userTurn("7"),
		},
		PageContext: PageContext{Path: "/ar/products/polo"},
	}
	reply, err := svc.Reply(context.Background(), req)
	if err != nil {
		t.Fatalf("Reply failed: %v", err)
	}
	if reply != "answer" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(backend.got.Messages) != 4 || backend.got.Messages[0].Content != "4" {
		t.Fatalf("expected the 4 most recent messages, got %+v", backend.got.Messages)
	}
	if backend.got.PageContext.Page != "product" {
		t.Fatalf("expected page context resolved from path, got %+v", backend.got.PageContext)
	}
	if len(req.Messages) != 7 {
		t.Fatal("caller's request must not be modified")
	}
}

func TestServiceReplyErrors(t *testing.T) {
	req := Request{Language: "en", Messages: []Message{userTurn("hi")}}

	if _, err := NewService(nil, testChatConfig(), 0).Reply(context.Background(), req); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	boom := errors.New("upstream down")
	if _, err := NewService(&fakeBackend{err: boom}, testChatConfig(), 0).Reply(context.Background(), req); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}

	if _, err := NewService(&fakeBackend{reply: "  "}, testChatConfig(), 0).Reply(context.Background(), req); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
}

func TestSystemPromptIncludesPageAndLanguage(t *testing.T) {
	prompt := SystemPrompt(Request{
		Language:    "ar",
		PageContext: PageContext{Page: "contact", Path: "/ar/contact", Context: "looking for ways to contact the sales team"},
	}, "+20 100")
	if !strings.Contains(prompt, "/ar/contact") || !strings.Contains(prompt, `"ar"`) {
		t.Fatalf("prompt missing page or language: %q", prompt)
	}
	if !strings.Contains(prompt, "+20 100") {
		t.Fatalf("prompt missing WhatsApp number: %q", prompt)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Hour)
	defer rl.Stop()

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other keys are limited independently")
	}

	rl.evict(time.Now().Add(2 * time.Hour))
	rl.mu.Lock()
	remaining := len(rl.requests)
	rl.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected all keys evicted, got %d", remaining)
	}
}
