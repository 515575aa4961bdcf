package widget

import (
	"regexp"
	"strings"

	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/locale"
)

// ActionKind classifies a quick action under an assistant message.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionContact  ActionKind = "contact"
	ActionWhatsApp ActionKind = "whatsapp"
)

// Action is a button rendered under an assistant message.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Label string     `json:"label"`
	URL   string     `json:"url"`
}

// Rendered is an assistant message ready for display.
type Rendered struct {
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
}

// FormatOptions carries site settings used by Format.
type FormatOptions struct {
	WhatsAppNumber string
}

var (
	strongRe = regexp.MustCompile(`\*\*|__`)
	// A single asterisk pair counts as emphasis only when it hugs a word.
	italicRe = regexp.MustCompile(`\*(\S[^*\n]*\S|\S)\*`)
	// Paths must end at whitespace, punctuation or the end of the text; the
	// terminator is captured so it can be put back.
	routeRe      = regexp.MustCompile(`(?:https?://[^\s/]+)?/(en|ar)/(blog|products|about|production)(?:/([A-Za-z0-9]+(?:-[A-Za-z0-9]+)*))?/?($|[\s.,:;!?)،؛؟])`)
	contactRe    = regexp.MustCompile(`(?:https?://[^\s/]+)?/(en|ar)/contact/?($|[\s.,:;!?)،؛؟])`)
	spaceRunRe   = regexp.MustCompile(`[ \t]{2,}`)
	emptyParenRe = regexp.MustCompile(`\(\s*\)`)
	danglingRe   = regexp.MustCompile(`[ \t]+([.,:;!?)،؛؟])`)
	nonDigitRe   = regexp.MustCompile(`[^0-9]`)
)

var whatsAppPhrases = []string{"whatsapp", "whats app", "واتساب", "واتس اب", "واتس آب", "واتس"}

// Format strips emphasis markers from text and turns site paths of the form
// [origin]/{locale}/{section}[/{slug}] into navigation actions. Slugs are
// lowercased in the action URL. Contact
// actions are appended when the text points at the contact page or WhatsApp.
func Format(text string, code locale.Code, dict *locale.Dictionary, opts FormatOptions) Rendered {
	var actions []Action
	seen := make(map[string]bool)
	add := func(a Action) {
		if seen[a.URL] {
			return
		}
		seen[a.URL] = true
		actions = append(actions, a)
	}

	contactIntent := hasContactIntent(text, opts.WhatsAppNumber)

	out := strongRe.ReplaceAllString(text, "")
	out = italicRe.ReplaceAllString(out, "$1")
	out = routeRe.ReplaceAllStringFunc(out, func(match string) string {
		sub := routeRe.FindStringSubmatch(match)
		target := "/" + sub[1] + "/" + sub[2]
		if sub[3] != "" {
			target += "/" + strings.ToLower(sub[3])
		}
		add(Action{Kind: ActionNavigate, Label: dict.T("chat.action_" + sub[2]), URL: target})
		return sub[4]
	})
	out = contactRe.ReplaceAllString(out, "${2}")

	if contactIntent {
		add(Action{Kind: ActionContact, Label: dict.T("chat.action_contact"), URL: "/" + string(code) + "/contact"})
		if link := WhatsAppLink(opts.WhatsAppNumber); link != "" {
			add(Action{Kind: ActionWhatsApp, Label: dict.T("chat.action_whatsapp"), URL: link})
		}
	}

	return Rendered{Text: tidy(out), Actions: actions}
}

// RenderedMessage pairs a transcript entry with its display form.
type RenderedMessage struct {
	domain.ChatMessage
	Rendered
}

// RenderMessages formats assistant messages; user messages are shown as typed.
func RenderMessages(msgs []domain.ChatMessage, code locale.Code, dict *locale.Dictionary, opts FormatOptions) []RenderedMessage {
	out := make([]RenderedMessage, 0, len(msgs))
	for _, m := range msgs {
		r := Rendered{Text: m.Content}
		if m.Role == domain.RoleAssistant {
			r = Format(m.Content, code, dict, opts)
		}
		out = append(out, RenderedMessage{ChatMessage: m, Rendered: r})
	}
	return out
}

// WhatsAppLink returns the wa.me link for number, or "" when it has no digits.
func WhatsAppLink(number string) string {
	digits := nonDigitRe.ReplaceAllString(number, "")
	if digits == "" {
		return ""
	}
	return "https://wa.me/" + digits
}

func hasContactIntent(text, number string) bool {
	if contactRe.MatchString(text) {
		return true
	}
	lower := strings.ToLower(text)
	for _, p := range whatsAppPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	digits := nonDigitRe.ReplaceAllString(number, "")
	if len(digits) < 6 {
		return false
	}
	compact := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "").Replace(text)
	return strings.Contains(compact, digits)
}

// tidy cleans up after elision: no empty parentheses, no blanks before
// punctuation, no trailing blanks and no runs of blank lines.
func tidy(s string) string {
	s = emptyParenRe.ReplaceAllString(s, "")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = danglingRe.ReplaceAllString(s, "$1")

	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if blank || len(kept) == 0 {
				continue
			}
			blank = true
			kept = append(kept, "")
			continue
		}
		blank = false
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
