package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/nfrund/roomchat/internal/domain"
)

const (
	// Time allowed to write a frame to the server.
	writeWait = 10 * time.Second
	// Outbound frames queued ahead of the writer before new ones are dropped.
	sendBuffer = 64
)

// ErrClosed is returned when emitting on a channel that has been closed.
var ErrClosed = errors.New("realtime: channel closed")

// State is the channel's position in its lifecycle. A channel only moves
// forward: Connecting, Joined, Closed.
type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Sink receives inbound events in arrival order from the channel's reader
// goroutine. It must not block for long.
type Sink func(Event)

// Channel is the live connection of one room membership. Outbound intents are
// fire-and-forget: they are queued and written by a single writer goroutine.
// Transport loss is terminal; there is no reconnect.
type Channel struct {
	session domain.RoomSession
	conn    Conn
	sink    Sink
	logger  *slog.Logger

	state atomic.Int32

	// mu guards send against use after close.
	mu     sync.RWMutex
	send   chan []byte
	closed bool

	ctx        context.Context
	cancel     context.CancelFunc
	writerDone chan struct{}

	connClose sync.Once
	connErr   error
}

// Connect dials url, starts the channel's pumps and emits join_room for rs.
// The channel lives until Close is called, ctx is cancelled, or the
// transport fails.
func Connect(ctx context.Context, dialer Dialer, url string, rs domain.RoomSession, sink Sink) (*Channel, error) {
	logger := slog.Default().With("component", "realtime_channel", "room", rs.Room, "username", rs.Username)

	conn, err := dialer.Dial(ctx, url)
	if err != nil {
		logger.Error("Failed to connect to realtime server", "url", url, "error", err)
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}

	ch := newChannel(ctx, conn, rs, sink, logger)
	if err := ch.start(); err != nil {
		logger.Error("Failed to join room", "error", err)
		return nil, err
	}
	return ch, nil
}

func newChannel(ctx context.Context, conn Conn, rs domain.RoomSession, sink Sink, logger *slog.Logger) *Channel {
	cctx, cancel := context.WithCancel(ctx)
	ch := &Channel{
		session:    rs,
		conn:       conn,
		sink:       sink,
		logger:     logger,
		send:       make(chan []byte, sendBuffer),
		ctx:        cctx,
		cancel:     cancel,
		writerDone: make(chan struct{}),
	}
	ch.state.Store(int32(StateConnecting))
	return ch
}

// start queues join_room ahead of anything the reader can observe, so a
// transport that drops immediately is reported after the join, never before.
func (ch *Channel) start() error {
	go ch.writePump()

	if err := ch.emit(EventJoinRoom, ch.roomUser()); err != nil {
		_ = ch.Close()
		_ = ch.closeConn()
		ch.cancel()
		return fmt.Errorf("join room %s: %w", ch.session.Room, err)
	}
	ch.state.CompareAndSwap(int32(StateConnecting), int32(StateJoined))
	ch.logger.Info("Joined room")

	go ch.readPump()
	go func() {
		<-ch.ctx.Done()
		_ = ch.Close()
	}()
	return nil
}

// State returns the channel's current state.
func (ch *Channel) State() State {
	return State(ch.state.Load())
}

// Send emits send_message for m.
func (ch *Channel) Send(m domain.Message) error {
	return ch.emit(EventSendMessage, m)
}

// Typing emits typing for the local user.
func (ch *Channel) Typing() error {
	return ch.emit(EventTyping, ch.roomUser())
}

// StopTyping emits stop_typing for the local user.
func (ch *Channel) StopTyping() error {
	return ch.emit(EventStopTyping, ch.roomUser())
}

func (ch *Channel) roomUser() RoomUser {
	return RoomUser{Room: ch.session.Room, Username: ch.session.Username}
}

// emit queues one frame. A full queue drops the frame.
func (ch *Channel) emit(event string, payload any) error {
	frame, err := Encode(event, payload)
	if err != nil {
		return err
	}

	ch.mu.RLock()
	defer ch.mu.RUnlock()

	if ch.closed {
		return ErrClosed
	}
	select {
	case ch.send <- frame:
	default:
		ch.logger.Warn("Channel send buffer full, dropping frame", "event", event)
	}
	return nil
}

// Close flushes queued frames and closes the transport. Only the first call
// has any effect; it returns the transport's close error.
func (ch *Channel) Close() error {
	if !ch.shutdown() {
		return nil
	}

	select {
	case <-ch.writerDone:
	case <-time.After(writeWait):
		ch.logger.Warn("Timed out flushing outbound frames")
	}
	err := ch.closeConn()
	ch.cancel()
	ch.logger.Info("Left room")
	return err
}

// shutdown marks the channel closed and stops the writer. It reports whether
// this call was the one that closed it.
func (ch *Channel) shutdown() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return false
	}
	ch.closed = true
	ch.state.Store(int32(StateClosed))
	close(ch.send)
	return true
}

func (ch *Channel) closeConn() error {
	ch.connClose.Do(func() {
		ch.connErr = ch.conn.Close()
	})
	return ch.connErr
}

// readPump decodes frames from the connection and hands them to the sink.
func (ch *Channel) readPump() {
	for {
		frame, err := ch.conn.Read(ch.ctx)
		if err != nil {
			ch.readFailed(err)
			return
		}

		env, err := Decode(frame)
		if err != nil {
			ch.logger.Warn("Dropping undecodable frame", "error", err)
			continue
		}
		ev, err := inbound(env)
		if err != nil {
			var unknown errUnknownEvent
			if errors.As(err, &unknown) {
				ch.logger.Debug("Ignoring event", "event", env.Event)
			} else {
				ch.logger.Warn("Dropping malformed event", "event", env.Event, "error", err)
			}
			continue
		}
		ch.sink(ev)
	}
}

// readFailed ends the channel after the transport stopped delivering frames.
// Errors caused by a local Close are expected and not reported.
func (ch *Channel) readFailed(err error) {
	if ch.ctx.Err() != nil {
		// Cancelled by the owner; Close completes the teardown.
		_ = ch.Close()
		return
	}
	if !ch.shutdown() {
		return
	}

	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, io.EOF) {
		ch.logger.Info("Realtime server closed the connection")
	} else {
		ch.logger.Error("Realtime connection lost", "error", err)
	}

	_ = ch.closeConn()
	ch.cancel()
	ch.sink(Disconnected{Err: err})
}

// writePump writes queued frames until the send channel is closed.
func (ch *Channel) writePump() {
	defer close(ch.writerDone)

	for frame := range ch.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := ch.conn.Write(ctx, frame)
		cancel()
		if err != nil {
			ch.logger.Error("Realtime write error", "error", err)
			// Closing the connection makes the reader report the loss.
			_ = ch.closeConn()
			return
		}
	}
}
