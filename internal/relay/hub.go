// Package relay is a development realtime server for the room protocol. It
// keeps room membership in memory and fans events out to the other members
// of a room.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/realtime"
)

// frame is one inbound websocket message and the client that sent it.
type frame struct {
	client *client
	data   []byte
}

// member is what the hub knows about a client after join_room.
type member struct {
	room     string
	username string
}

// Hub owns room membership. All of its state is touched only by Run.
type Hub struct {
	register   chan *client
	unregister chan *client
	inbound    chan frame
	done       chan struct{}

	clients map[*client]*member
	rooms   map[string]map[*client]struct{}
	now     func() time.Time
	logger  *slog.Logger
}

// NewHub creates a hub. Call Run to start it.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		inbound:    make(chan frame, 256),
		done:       make(chan struct{}),
		clients:    make(map[*client]*member),
		rooms:      make(map[string]map[*client]struct{}),
		now:        time.Now,
		logger:     logger.With("component", "relay_hub"),
	}
}

// Run processes registrations and frames until ctx is cancelled, then closes
// every client's send channel. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Relay hub started")
	defer func() {
		close(h.done)
		for c := range h.clients {
			close(c.send)
		}
		h.clients = map[*client]*member{}
		h.rooms = map[string]map[*client]struct{}{}
		h.logger.Info("Relay hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = nil
			h.logger.Debug("Client connected", "client_id", c.id, "total_clients", len(h.clients))

		case c := <-h.unregister:
			m, ok := h.clients[c]
			if !ok {
				continue
			}
			delete(h.clients, c)
			close(c.send)
			if m != nil {
				h.leave(c, m)
				h.toRoom(m.room, nil, realtime.EventSystemMessage, h.notice(m.username+" left the room"))
			}
			h.logger.Debug("Client disconnected", "client_id", c.id, "total_clients", len(h.clients))

		case f := <-h.inbound:
			if _, ok := h.clients[f.client]; !ok {
				continue
			}
			if err := h.handle(f); err != nil {
				h.logger.Warn("Dropping frame", "client_id", f.client.id, "error", err)
			}
		}
	}
}

func (h *Hub) handle(f frame) error {
	env, err := realtime.Decode(f.data)
	if err != nil {
		return err
	}
	c := f.client
	m := h.clients[c]

	switch env.Event {
	case realtime.EventJoinRoom:
		var ru realtime.RoomUser
		if err := json.Unmarshal(env.Data, &ru); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		rs, err := domain.NewRoomSession(ru.Room, ru.Username)
		if err != nil {
			return err
		}
		if m != nil {
			h.leave(c, m)
		}
		m = &member{room: rs.Room, username: rs.Username}
		h.clients[c] = m
		if h.rooms[m.room] == nil {
			h.rooms[m.room] = make(map[*client]struct{})
		}
		h.rooms[m.room][c] = struct{}{}
		h.logger.Info("User joined room", "client_id", c.id, "room", m.room, "username", m.username)
		h.toRoom(m.room, nil, realtime.EventSystemMessage, h.notice(m.username+" joined the room"))
		return nil

	case realtime.EventSendMessage:
		if m == nil {
			return fmt.Errorf("%s before %s", env.Event, realtime.EventJoinRoom)
		}
		h.toRoom(m.room, c, realtime.EventReceiveMessage, env.Data)
		return nil

	case realtime.EventTyping, realtime.EventStopTyping:
		if m == nil {
			return fmt.Errorf("%s before %s", env.Event, realtime.EventJoinRoom)
		}
		payload := realtime.UserTyping{Username: m.username, IsTyping: env.Event == realtime.EventTyping}
		h.toRoom(m.room, c, realtime.EventUserTyping, payload)
		return nil

	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
}

func (h *Hub) leave(c *client, m *member) {
	members := h.rooms[m.room]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, m.room)
	}
}

func (h *Hub) notice(text string) domain.Message {
	return domain.Message{Message: text, Time: domain.FormatTime(h.now())}
}

// toRoom sends event to every member of room except skip.
func (h *Hub) toRoom(room string, skip *client, event string, payload any) {
	out, err := realtime.Encode(event, payload)
	if err != nil {
		h.logger.Error("Failed to encode frame", "event", event, "error", err)
		return
	}
	for c := range h.rooms[room] {
		if c == skip {
			continue
		}
		select {
		case c.send <- out:
		default:
			h.logger.Warn("Client send channel full, dropping message", "client_id", c.id, "event", event)
		}
	}
}
