package domain

import (
	"time"
)

// Visitor is an anonymous browser identified by a cookie.
type Visitor struct {
	VisitorID  string    `json:"visitor_id"`
	Locale     string    `json:"locale,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IdleFor returns how long the visitor has been inactive at now.
func (v *Visitor) IdleFor(now time.Time) time.Duration {
	d := now.Sub(v.LastSeenAt)
	if d < 0 {
		return 0
	}
	return d
}
