// Package widget implements the chat widget session: the menu/chat state
// machine, transcript persistence, the proactive nudge and the formatting
// of assistant replies.
package widget

// Mode is the state of the widget. Loading is only possible inside the chat
// view.
type Mode int

const (
	// ModeMenu shows the contact-method chooser.
	ModeMenu Mode = iota
	// ModeChatIdle shows the transcript and accepts input.
	ModeChatIdle
	// ModeChatSending waits for a completion.
	ModeChatSending
	// ModeChatFailed shows the transcript after the last send failed.
	ModeChatFailed
)

// View names the visible panel.
type View string

const (
	ViewMenu View = "menu"
	ViewChat View = "chat"
)

// View returns the panel shown in m.
func (m Mode) View() View {
	if m == ModeMenu {
		return ViewMenu
	}
	return ViewChat
}

// Loading reports whether a completion is in flight.
func (m Mode) Loading() bool {
	return m == ModeChatSending
}

func (m Mode) String() string {
	switch m {
	case ModeMenu:
		return "menu"
	case ModeChatIdle:
		return "chat_idle"
	case ModeChatSending:
		return "chat_sending"
	case ModeChatFailed:
		return "chat_failed"
	default:
		return "unknown"
	}
}
