package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/locale"
	"github.com/ashureev/atelier/internal/widget"
)

func formatOptions() widget.FormatOptions {
	return widget.FormatOptions{WhatsAppNumber: os.Getenv("WHATSAPP_NUMBER")}
}

// printMessages writes msgs with their quick actions.
func printMessages(w io.Writer, msgs []domain.ChatMessage, lc locale.Code) {
	dict := locale.DictionaryFor(string(lc))
	for _, m := range widget.RenderMessages(msgs, lc, dict, formatOptions()) {
		printMessage(w, m)
	}
}

func printMessage(w io.Writer, m widget.RenderedMessage) {
	who := "assistant"
	if m.Role == domain.RoleUser {
		who = "you"
	}
	fmt.Fprintf(w, "%s: %s\n", who, m.Text)
	for _, a := range m.Actions {
		fmt.Fprintf(w, "    [%s] %s\n", a.Label, a.URL)
	}
}

func printMenu(w io.Writer, dict *locale.Dictionary) {
	fmt.Fprintln(w, dict.T("chat.menu_title"))
	fmt.Fprintln(w, "  1. "+dict.T("chat.menu_chat"))
	fmt.Fprintln(w, "  2. "+dict.T("chat.menu_whatsapp"))
}

// nudgePrinter returns a session change callback that prints the proactive
// nudge each time it becomes visible.
func nudgePrinter(w io.Writer, dict *locale.Dictionary) func(widget.Snapshot) {
	var (
		mu      sync.Mutex
		visible bool
	)
	return func(snap widget.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.NudgeVisible && !visible {
			fmt.Fprintf(w, "\n(%s)\n", dict.T("chat.nudge"))
		}
		visible = snap.NudgeVisible
	}
}

// lockedWriter serializes writes from the prompt loop and the nudge timer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
