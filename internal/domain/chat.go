package domain

import (
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// WelcomeMessageID is the sentinel id of the synthetic greeting. Messages
// carrying it are never persisted or sent to the completion endpoint.
const WelcomeMessageID = "welcome"

// ChatMessage is one entry of a chat session transcript.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"timestamp"` // epoch milliseconds
	Seen      bool   `json:"seen,omitempty"`
}

// IsWelcome reports whether m is the synthetic greeting.
func (m ChatMessage) IsWelcome() bool {
	return m.ID == WelcomeMessageID
}

// ChatRecord is the persisted form of a chat session.
type ChatRecord struct {
	Messages  []ChatMessage `json:"messages"`
	Locale    string        `json:"locale"`
	Timestamp int64         `json:"timestamp"` // epoch milliseconds of the last write
}

// Usable reports whether the record may rehydrate a session under loc at now.
func (r *ChatRecord) Usable(loc string, now time.Time, ttl time.Duration) bool {
	if r == nil || r.Locale != loc {
		return false
	}
	return now.UnixMilli()-r.Timestamp <= ttl.Milliseconds()
}

// WithoutWelcome returns a copy of msgs with the synthetic greeting removed.
func WithoutWelcome(msgs []ChatMessage) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsWelcome() {
			out = append(out, m)
		}
	}
	return out
}

// ChatTranscript is a server-side persisted chat record for one visitor.
type ChatTranscript struct {
	VisitorID string
	Record    ChatRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}
