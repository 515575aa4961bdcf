package domain

import (
	"strings"
	"time"
)

// ContactMessage is a submission of the contact form.
type ContactMessage struct {
	ID        string    `json:"id"`
	Locale    string    `json:"locale"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Complete reports whether the submission has a name, a way to reply and a body.
func (m *ContactMessage) Complete() bool {
	if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Message) == "" {
		return false
	}
	return strings.TrimSpace(m.Email) != "" || strings.TrimSpace(m.Phone) != ""
}
