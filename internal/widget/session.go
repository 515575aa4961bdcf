package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/atelier/internal/chat"
	"github.com/ashureev/atelier/internal/domain"
	"github.com/ashureev/atelier/internal/locale"
	"github.com/google/uuid"
)

// DefaultTTL is how long a stored record may rehydrate a session.
const DefaultTTL = 24 * time.Hour

var (
	ErrEmptyInput   = errors.New("input is empty")
	ErrSendInFlight = errors.New("a message is already being sent")
	ErrClosed       = errors.New("session is closed")
	ErrNotInChat    = errors.New("chat view is not open")
)

// Completer returns the assistant reply for a request.
type Completer interface {
	Complete(ctx context.Context, req chat.Request) (string, error)
}

// Options configures a Session.
type Options struct {
	Locale    locale.Code
	Path      string // current page path, used for the page-context hint
	Storage   Storage
	Completer Completer
	Clock     Clock
	TTL       time.Duration
	Logger    *slog.Logger
	NewID     func() string
	// OnChange is called after every visible state change, without locks held.
	OnChange func(Snapshot)
}

// Snapshot is a copy of the session's visible state.
type Snapshot struct {
	Mode         Mode
	View         View
	Loading      bool
	Open         bool
	Messages     []domain.ChatMessage
	Input        string
	HasHistory   bool
	NudgeVisible bool
}

// Session is the state of one chat widget for one page load.
type Session struct {
	mu         sync.Mutex
	lc         locale.Code
	dict       *locale.Dictionary
	path       string
	storage    Storage
	completer  Completer
	clock      Clock
	ttl        time.Duration
	log        *slog.Logger
	newID      func() string
	onChange   func(Snapshot)
	nudge      *Nudge
	lifetime   context.Context
	stop       context.CancelFunc
	cancelSend context.CancelFunc

	mode       Mode
	open       bool
	messages   []domain.ChatMessage
	input      string
	hasHistory bool
	mounted    bool
	closed     bool
	// epoch changes whenever the transcript is discarded; replies started
	// under an older epoch are dropped.
	epoch uint64
}

// New creates a session in the menu view. Mount must be called before use.
func New(opts Options) *Session {
	if !locale.IsValid(string(opts.Locale)) {
		opts.Locale = locale.Default
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	lifetime, stop := context.WithCancel(context.Background())
	s := &Session{
		lc:        opts.Locale,
		dict:      locale.DictionaryFor(string(opts.Locale)),
		path:      opts.Path,
		storage:   opts.Storage,
		completer: opts.Completer,
		clock:     opts.Clock,
		ttl:       opts.TTL,
		log:       opts.Logger,
		newID:     opts.NewID,
		onChange:  opts.OnChange,
		lifetime:  lifetime,
		stop:      stop,
		mode:      ModeMenu,
	}
	s.nudge = newNudge(opts.Clock, s.notify)
	return s
}

// Locale returns the session's locale.
func (s *Session) Locale() locale.Code { return s.lc }

// Dictionary returns the session's dictionary.
func (s *Session) Dictionary() *locale.Dictionary { return s.dict }

// Mount restores a stored record written under the same locale within the
// TTL and arms the nudge when the widget is closed and there is no history.
func (s *Session) Mount(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.mounted {
		s.mu.Unlock()
		return
	}
	s.mounted = true
	s.hydrateLocked(ctx)
	arm := !s.open && !s.hasHistory
	s.mu.Unlock()

	if arm {
		s.nudge.Arm()
	}
	s.notify()
}

// hydrateLocked loads the stored record into an empty message list.
func (s *Session) hydrateLocked(ctx context.Context) {
	rec, err := s.storage.Load(ctx, StorageKey)
	if err != nil {
		s.log.Warn("Failed to load chat record", "locale", s.lc, "error", err)
		return
	}
	if rec.Usable(string(s.lc), s.clock.Now(), s.ttl) {
		s.messages = domain.WithoutWelcome(rec.Messages)
		s.hasHistory = len(s.messages) > 0
		return
	}
	if rec != nil {
		if err := s.storage.Remove(ctx, StorageKey); err != nil {
			s.log.Warn("Failed to remove stale chat record", "locale", s.lc, "error", err)
		}
	}
}

// SetOpen shows or hides the widget. Opening it disarms the nudge.
func (s *Session) SetOpen(open bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.open = open
	s.mu.Unlock()

	if open {
		s.nudge.Disarm()
	}
	s.notify()
}

// DismissNudge hides the nudge for the rest of the page load.
func (s *Session) DismissNudge() {
	s.nudge.Disarm()
}

// StartChat switches from the menu to the chat view, rehydrating an empty
// transcript or seeding the welcome message.
func (s *Session) StartChat(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.messages) == 0 {
		s.hydrateLocked(ctx)
	}
	if len(s.messages) == 0 {
		s.messages = []domain.ChatMessage{s.welcome()}
	}
	if s.mode == ModeMenu {
		s.mode = ModeChatIdle
	}
	s.mu.Unlock()
	s.notify()
}

// SetInput replaces the typed input.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.input = text
	s.mu.Unlock()
	s.notify()
}

// Send submits the typed input. It returns a sentinel error when the send
// is ignored; completion failures become an apology message instead.
func (s *Session) Send(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.mode.View() != ViewChat:
		s.mu.Unlock()
		return ErrNotInChat
	case s.mode.Loading():
		s.mu.Unlock()
		return ErrSendInFlight
	case strings.TrimSpace(s.input) == "":
		s.mu.Unlock()
		return ErrEmptyInput
	}

	s.messages = append(s.messages, domain.ChatMessage{
		ID:        s.newID(),
		Role:      domain.RoleUser,
		Content:   strings.TrimSpace(s.input),
		CreatedAt: s.clock.Now().UnixMilli(),
	})
	s.input = ""
	s.mode = ModeChatSending
	s.persistLocked(ctx)

	req := s.requestLocked()
	epoch := s.epoch
	sendCtx, cancel := context.WithCancel(ctx)
	stopOnClose := context.AfterFunc(s.lifetime, cancel)
	s.cancelSend = cancel
	s.mu.Unlock()
	s.notify()

	reply, err := s.complete(sendCtx, req)
	stopOnClose()
	cancel()

	s.mu.Lock()
	if s.closed || epoch != s.epoch {
		s.mu.Unlock()
		s.log.Debug("Dropping chat reply for discarded transcript", "locale", s.lc)
		return nil
	}
	s.cancelSend = nil
	if err == nil && strings.TrimSpace(reply) == "" {
		err = chat.ErrEmptyReply
	}
	if err != nil {
		s.log.Warn("Chat completion failed", "locale", s.lc, "path", s.path, "error", err)
		s.messages = append(s.messages, s.assistantMessage(s.dict.T("chat.error_apology")))
		s.mode = ModeChatFailed
	} else {
		for i := range s.messages {
			if s.messages[i].Role == domain.RoleUser {
				s.messages[i].Seen = true
			}
		}
		s.messages = append(s.messages, s.assistantMessage(reply))
		s.mode = ModeChatIdle
	}
	s.persistLocked(ctx)
	s.mu.Unlock()
	s.notify()
	return nil
}

// NewChat discards the transcript and its stored record and seeds a fresh
// welcome message. The view does not change.
func (s *Session) NewChat(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.discardLocked()
	s.messages = []domain.ChatMessage{s.welcome()}
	s.hasHistory = false
	if s.mode.View() == ViewChat {
		s.mode = ModeChatIdle
	}
	if err := s.storage.Remove(ctx, StorageKey); err != nil {
		s.log.Warn("Failed to remove chat record", "locale", s.lc, "error", err)
	}
	s.mu.Unlock()
	s.notify()
}

// Back clears the transcript and input and returns to the menu. The stored
// record is kept so the next StartChat can rehydrate it.
func (s *Session) Back() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.discardLocked()
	s.messages = nil
	s.input = ""
	s.mode = ModeMenu
	s.mu.Unlock()
	s.notify()
}

// Close disposes of the session. An in-flight completion is cancelled and
// its reply ignored; every later call is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.discardLocked()
	s.stop()
	s.mu.Unlock()
	s.nudge.Disarm()
}

// Snapshot returns a copy of the visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Mode:         s.mode,
		View:         s.mode.View(),
		Loading:      s.mode.Loading(),
		Open:         s.open,
		Messages:     append([]domain.ChatMessage(nil), s.messages...),
		Input:        s.input,
		HasHistory:   s.hasHistory,
		NudgeVisible: s.nudge.Visible(),
	}
}

func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.Snapshot())
}

// discardLocked invalidates any in-flight send.
func (s *Session) discardLocked() {
	s.epoch++
	if s.cancelSend != nil {
		s.cancelSend()
		s.cancelSend = nil
	}
}

func (s *Session) welcome() domain.ChatMessage {
	return domain.ChatMessage{
		ID:        domain.WelcomeMessageID,
		Role:      domain.RoleAssistant,
		Content:   s.dict.T("chat.welcome"),
		CreatedAt: s.clock.Now().UnixMilli(),
	}
}

func (s *Session) assistantMessage(content string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        s.newID(),
		Role:      domain.RoleAssistant,
		Content:   content,
		CreatedAt: s.clock.Now().UnixMilli(),
	}
}

// persistLocked writes the transcript when it holds a real message.
func (s *Session) persistLocked(ctx context.Context) {
	msgs := domain.WithoutWelcome(s.messages)
	if len(msgs) == 0 {
		return
	}
	rec := domain.ChatRecord{Messages: msgs, Locale: string(s.lc), Timestamp: s.clock.Now().UnixMilli()}
	if err := s.storage.Save(ctx, StorageKey, rec); err != nil {
		s.log.Warn("Failed to save chat record", "locale", s.lc, "error", err)
	}
}

func (s *Session) requestLocked() chat.Request {
	msgs := domain.WithoutWelcome(s.messages)
	out := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chat.Message{Role: string(m.Role), Content: m.Content})
	}
	return chat.Request{
		Messages:    out,
		Language:    string(s.lc),
		PageContext: chat.LookupPageContext(s.path),
	}
}

func (s *Session) complete(ctx context.Context, req chat.Request) (reply string, err error) {
	if s.completer == nil {
		return "", chat.ErrUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completer panicked: %v", r)
		}
	}()
	return s.completer.Complete(ctx, req)
}
