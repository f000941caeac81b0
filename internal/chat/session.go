// Package chat implements the client side of a chat room membership.
//
// A Session is a single actor goroutine that owns all of the membership's
// state: the message log, the set of users typing, the connection status and
// the typing debounce timer. Inbound channel events, user intents and timer
// expiries are queued as typed events and handled one at a time, so no two
// mutations ever interleave.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/pubsub"
	"github.com/nfrund/roomchat/internal/realtime"
)

const (
	// TopicSessionUpdated carries a JSON View after every session change.
	TopicSessionUpdated = "chat.session.updated"

	// DefaultTypingDebounce is the quiet period after the last keystroke
	// before stop_typing is sent.
	DefaultTypingDebounce = 1200 * time.Millisecond

	eventQueueSize = 64
)

// SessionUpdated is the typed form of TopicSessionUpdated.
var SessionUpdated = pubsub.NewEvent[View](TopicSessionUpdated)

// ErrNotConnected is returned by SendMessage when the session has no live
// channel: it is still connecting, the transport was lost, or it has left.
var ErrNotConnected = errors.New("chat: not connected to the room")

// Cache is the persistence a session writes its message log through to.
type Cache interface {
	Load(ctx context.Context, room string) []domain.Message
	Save(ctx context.Context, room string, messages []domain.Message)
}

// Channel is the realtime channel surface a session drives.
type Channel interface {
	Send(m domain.Message) error
	Typing() error
	StopTyping() error
	Close() error
}

// Connector opens the channel for a membership. Inbound events must be
// delivered to sink.
type Connector func(ctx context.Context, rs domain.RoomSession, sink realtime.Sink) (Channel, error)

// RealtimeConnector returns a Connector that dials url with dialer.
func RealtimeConnector(dialer realtime.Dialer, url string) Connector {
	return func(ctx context.Context, rs domain.RoomSession, sink realtime.Sink) (Channel, error) {
		ch, err := realtime.Connect(ctx, dialer, url, rs, sink)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}

// Dependencies holds the collaborators of a session.
type Dependencies struct {
	Cache   Cache
	Connect Connector
	// Publisher, when set, receives every View on TopicSessionUpdated.
	Publisher pubsub.Publisher
	// Clock defaults to the wall clock.
	Clock Clock
}

// Option configures a Session.
type Option func(*Session)

// WithTypingDebounce overrides DefaultTypingDebounce.
func WithTypingDebounce(d time.Duration) Option {
	return func(s *Session) {
		s.debounce = d
	}
}

// Session is one user's live membership in one room.
type Session struct {
	rs       domain.RoomSession
	cache    Cache
	connect  Connector
	pub      pubsub.Publisher
	clock    Clock
	debounce time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan event
	done   chan struct{}

	leaveOnce sync.Once
	view      atomic.Pointer[View]

	// Owned by the actor goroutine.
	channel  Channel
	messages []domain.Message
	typing   []string
	status   Status
	lastErr  error
	timer    Timer
	timerGen uint64
	seq      uint64
}

// Activate validates the membership, restores the room's cached messages and
// starts connecting. Validation failures are returned before any cache or
// network access. A connection failure does not fail activation; the session
// reports StatusDisconnected instead and keeps its cached history visible.
//
// An empty username defaults to the authenticated user's name. The session
// ends on Leave or when ctx is cancelled.
func Activate(ctx context.Context, auth domain.AuthContext, room, username string, deps Dependencies, opts ...Option) (*Session, error) {
	if !auth.IsAuthenticated {
		return nil, domain.ErrNotAuthenticated
	}
	if strings.TrimSpace(username) == "" {
		username = auth.Username()
	}
	rs, err := domain.NewRoomSession(room, username)
	if err != nil {
		return nil, err
	}
	if deps.Cache == nil || deps.Connect == nil {
		return nil, errors.New("chat: cache and connector are required")
	}
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		rs:       rs,
		cache:    deps.Cache,
		connect:  deps.Connect,
		pub:      deps.Publisher,
		clock:    deps.Clock,
		debounce: DefaultTypingDebounce,
		logger:   slog.Default().With("component", "chat_session", "room", rs.Room, "username", rs.Username),
		ctx:      sctx,
		cancel:   cancel,
		events:   make(chan event, eventQueueSize),
		done:     make(chan struct{}),
		status:   StatusConnecting,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.messages = s.cache.Load(sctx, rs.Room)
	if len(s.messages) > 0 {
		// Rejoining restarts the expiry window of the restored history.
		s.cache.Save(sctx, rs.Room, s.messages)
	}
	s.logger.Info("Activating chat session", "cached_messages", len(s.messages))
	s.publish()

	go s.run()
	go s.dial()
	return s, nil
}

// Room returns the membership the session was activated with.
func (s *Session) Room() domain.RoomSession {
	return s.rs
}

// View returns the latest snapshot of the session. It never blocks.
func (s *Session) View() View {
	return *s.view.Load()
}

// Done is closed once the session has fully shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// SendMessage sends text to the room and appends it to the local log without
// waiting for the server. Text that is empty after trimming is rejected with
// domain.ErrEmptyMessage and nothing is sent.
func (s *Session) SendMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyMessage
	}
	reply := make(chan error, 1)
	if !s.enqueue(sendRequested{text: text, reply: reply}) {
		return ErrNotConnected
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrNotConnected
		}
	}
}

// NotifyTyping reports the current content of the input after a change.
// For non-empty input it emits typing and restarts the stop_typing debounce.
func (s *Session) NotifyTyping(input string) {
	if input == "" {
		return
	}
	s.enqueue(typingNotified{})
}

// Leave ends the session: the channel is closed, the debounce timer stopped
// and typing state cleared. The message cache is kept. Leave blocks until
// the session has shut down and is safe to call more than once.
func (s *Session) Leave() error {
	s.leaveOnce.Do(func() {
		s.enqueue(leaveRequested{})
	})
	<-s.done
	return nil
}

// enqueue hands ev to the actor. It reports false once the session is over.
func (s *Session) enqueue(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// dial opens the channel off the actor so activation never waits on the
// network. A channel that connects after the session ended is closed by the
// cancellation of s.ctx.
func (s *Session) dial() {
	ch, err := s.connect(s.ctx, s.rs, func(ev realtime.Event) {
		s.enqueue(inbound{ev: ev})
	})
	if err != nil {
		s.enqueue(connectFailed{err: err})
		return
	}
	if !s.enqueue(joined{channel: ch}) {
		_ = ch.Close()
	}
}

func (s *Session) run() {
	defer s.teardown()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("Session context cancelled")
			return
		case ev := <-s.events:
			if s.handle(ev) {
				return
			}
		}
	}
}

// handle applies one event. It reports true when the session should end.
func (s *Session) handle(ev event) bool {
	switch ev := ev.(type) {
	case joined:
		if s.status != StatusConnecting {
			// The transport was lost before the join reached the actor.
			s.logger.Debug("Discarding channel that dropped while joining")
			_ = ev.channel.Close()
			return false
		}
		s.channel = ev.channel
		s.status = StatusJoined
		s.lastErr = nil
		s.logger.Info("Chat session joined")
		s.publish()

	case connectFailed:
		s.status = StatusDisconnected
		if s.lastErr == nil {
			s.lastErr = ev.err
		}
		s.logger.Warn("Chat session could not connect", "error", ev.err)
		s.publish()

	case inbound:
		s.handleInbound(ev.ev)

	case sendRequested:
		ev.reply <- s.send(ev.text)

	case typingNotified:
		if s.status != StatusJoined {
			return false
		}
		s.armDebounce()
		if err := s.channel.Typing(); err != nil {
			s.logger.Debug("Failed to emit typing", "error", err)
		}

	case timerFired:
		if ev.gen != s.timerGen || s.timer == nil {
			return false
		}
		s.timer = nil
		if s.status == StatusJoined {
			if err := s.channel.StopTyping(); err != nil {
				s.logger.Debug("Failed to emit stop_typing", "error", err)
			}
		}

	case leaveRequested:
		s.logger.Info("Leaving chat session")
		return true
	}
	return false
}

func (s *Session) handleInbound(ev realtime.Event) {
	switch ev := ev.(type) {
	case realtime.MessageReceived:
		s.appendMessage(ev.Message)

	case realtime.SystemMessageReceived:
		s.appendMessage(ev.Message)

	case realtime.TypingChanged:
		if s.updateTyping(ev.Username, ev.IsTyping) {
			s.publish()
		}

	case realtime.Disconnected:
		s.status = StatusDisconnected
		s.lastErr = ev.Err
		s.channel = nil
		s.typing = nil
		s.stopDebounce()
		s.logger.Warn("Chat session disconnected", "error", ev.Err)
		s.publish()
	}
}

// send is the local half of SendMessage, run on the actor.
func (s *Session) send(text string) error {
	if s.status != StatusJoined {
		return ErrNotConnected
	}
	m := domain.NewOutgoingMessage(s.rs.Room, s.rs.Username, text, s.clock.Now())
	if err := s.channel.Send(m); err != nil {
		s.logger.Warn("Failed to send message", "error", err)
		return ErrNotConnected
	}
	s.stopDebounce()
	if err := s.channel.StopTyping(); err != nil {
		s.logger.Debug("Failed to emit stop_typing", "error", err)
	}
	s.appendMessage(m)
	return nil
}

// appendMessage adds m to the log, writes the log through to the cache and
// publishes the change.
func (s *Session) appendMessage(m domain.Message) {
	s.messages = append(s.messages, m)
	s.cache.Save(s.ctx, s.rs.Room, s.messages)
	s.publish()
}

// updateTyping applies a user_typing event. The local user never appears in
// the set. It reports whether the set changed.
func (s *Session) updateTyping(username string, isTyping bool) bool {
	if username == "" || s.rs.SameUser(username) {
		return false
	}
	i := slices.Index(s.typing, username)
	switch {
	case isTyping && i < 0:
		s.typing = append(s.typing, username)
		return true
	case !isTyping && i >= 0:
		s.typing = slices.Delete(s.typing, i, i+1)
		return true
	}
	return false
}

// armDebounce (re)starts the stop_typing timer. Only the latest arming can
// fire; earlier ones are stopped and their generation invalidated.
func (s *Session) armDebounce() {
	s.stopDebounce()
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(s.debounce, func() {
		s.enqueue(timerFired{gen: gen})
	})
}

func (s *Session) stopDebounce() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

// teardown is the single exit path of the actor, whatever ended it.
func (s *Session) teardown() {
	s.stopDebounce()
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Debug("Error closing channel", "error", err)
		}
		s.channel = nil
	}
	s.typing = nil
	s.status = StatusLeft
	s.cancel()
	s.publish()
	close(s.done)
	s.logger.Info("Chat session ended")
}

// publish stores a fresh snapshot and announces it.
func (s *Session) publish() {
	s.seq++
	v := &View{
		Seq:         s.seq,
		Room:        s.rs.Room,
		Username:    s.rs.Username,
		Messages:    slices.Clone(s.messages),
		TypingUsers: slices.Clone(s.typing),
		Status:      s.status,
	}
	if v.Messages == nil {
		v.Messages = []domain.Message{}
	}
	if v.TypingUsers == nil {
		v.TypingUsers = []string{}
	}
	if s.lastErr != nil {
		v.Err = s.lastErr.Error()
	}
	s.view.Store(v)

	if s.pub == nil {
		return
	}
	// The session context may already be cancelled during teardown.
	meta := map[string]string{"room": s.rs.Room}
	if err := pubsub.Publish(context.Background(), s.pub, SessionUpdated, s.rs.Username, *v, meta); err != nil {
		s.logger.Error("Failed to publish session view", "error", err)
	}
}
