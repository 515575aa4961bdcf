package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/atelier/internal/config"
	"github.com/ashureev/atelier/internal/locale"
)

// Service validates chat requests and forwards them to the backend.
type Service struct {
	backend          Backend
	maxHistory       int
	maxMessageLength int
	timeout          time.Duration
}

// NewService creates a chat service. backend may be nil, in which case every
// reply fails with ErrUnavailable.
func NewService(backend Backend, cfg config.ChatConfig, timeout time.Duration) *Service {
	return &Service{
		backend:          backend,
		maxHistory:       cfg.MaxHistory,
		maxMessageLength: cfg.MaxMessageLength,
		timeout:          timeout,
	}
}

// Available reports whether a backend is configured.
func (s *Service) Available() bool {
	return s.backend != nil
}

// Reply validates req and returns the assistant's answer.
func (s *Service) Reply(ctx context.Context, req Request) (string, error) {
	if s.backend == nil {
		return "", ErrUnavailable
	}
	normalized, err := s.Normalize(req)
	if err != nil {
		return "", err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.backend.Complete(ctx, normalized)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// Normalize checks req and returns a copy with history truncated and the
// page context resolved from its path when the client sent none.
func (s *Service) Normalize(req Request) (Request, error) {
	if !locale.IsValid(req.Language) {
		return Request{}, fmt.Errorf("%w: unsupported language %q", ErrInvalidRequest, req.Language)
	}
	if len(req.Messages) == 0 {
		return Request{}, fmt.Errorf("%w: messages are required", ErrInvalidRequest)
	}
	for i, m := range req.Messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return Request{}, fmt.Errorf("%w: message %d has invalid role %q", ErrInvalidRequest, i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return Request{}, fmt.Errorf("%w: message %d is empty", ErrInvalidRequest, i)
		}
		if s.maxMessageLength > 0 && utf8.RuneCountInString(m.Content) > s.maxMessageLength {
			return Request{}, fmt.Errorf("%w: message %d exceeds %d characters", ErrInvalidRequest, i, s.maxMessageLength)
		}
	}
	if req.Messages[len(req.Messages)-1].Role != RoleUser {
		return Request{}, fmt.Errorf("%w: last message must be from the user", ErrInvalidRequest)
	}

	messages := req.Messages
	if s.maxHistory > 0 && len(messages) > s.maxHistory {
		messages = messages[len(messages)-s.maxHistory:]
	}
	out := Request{
		Messages:    append([]Message(nil), messages...),
		Language:    req.Language,
		PageContext: req.PageContext,
	}
	if out.PageContext.Page == "" {
		out.PageContext = LookupPageContext(out.PageContext.Path)
	}
	return out, nil
}
