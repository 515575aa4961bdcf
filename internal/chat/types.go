// Package chat implements the site assistant: the completion contract, the
// page-context table, the completion backend and its HTTP surfaces.
package chat

import "errors"

// Roles accepted in a completion request.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrInvalidRequest is returned when a completion request fails validation.
	ErrInvalidRequest = errors.New("invalid chat request")
	// ErrUnavailable is returned when no completion backend is configured.
	ErrUnavailable = errors.New("chat backend unavailable")
	// ErrEmptyReply is returned when the backend produced no text.
	ErrEmptyReply = errors.New("empty completion")
)

// Message is one turn of the conversation sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PageContext describes the page the visitor is looking at.
type PageContext struct {
	Page    string `json:"page"`
	Path    string `json:"path"`
	Context string `json:"context"`
}

// Request is the body of POST /api/chat.
type Request struct {
	Messages    []Message   `json:"messages"`
	Language    string      `json:"language"`
	PageContext PageContext `json:"pageContext"`
}

// Response is the body returned by POST /api/chat. Exactly one field is set.
type Response struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
