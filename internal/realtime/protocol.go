package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/nfrund/roomchat/internal/domain"
)

// Event names. These strings are the wire contract with the realtime server.
const (
	EventJoinRoom       = "join_room"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventReceiveMessage = "receive_message"
	EventSystemMessage  = "system_message"
	EventUserTyping     = "user_typing"
)

// Envelope is one socket frame: an event name and its JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RoomUser is the payload of join_room, typing and stop_typing.
type RoomUser struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// UserTyping is the payload of user_typing.
type UserTyping struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// Encode builds the frame for event with payload.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// Decode splits a frame into its envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode frame: missing event name")
	}
	return env, nil
}

// Event is an inbound occurrence delivered to a channel's sink.
type Event interface {
	isEvent()
}

// MessageReceived carries a chat message from another room member.
type MessageReceived struct {
	Message domain.Message
}

// SystemMessageReceived carries a server notice, already tagged as a system
// message.
type SystemMessageReceived struct {
	Message domain.Message
}

// TypingChanged reports that a room member started or stopped typing.
type TypingChanged struct {
	Username string
	IsTyping bool
}

// Disconnected reports that the transport ended without a local Close.
type Disconnected struct {
	Err error
}

func (MessageReceived) isEvent()       {}
func (SystemMessageReceived) isEvent() {}
func (TypingChanged) isEvent()         {}
func (Disconnected) isEvent()          {}

// errUnknownEvent marks frames with an event name the client does not consume.
type errUnknownEvent string

func (e errUnknownEvent) Error() string {
	return "unknown event " + string(e)
}

// inbound converts a decoded envelope into the typed event it carries.
func inbound(env Envelope) (Event, error) {
	switch env.Event {
	case EventReceiveMessage:
		var m domain.Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return MessageReceived{Message: m}, nil

	case EventSystemMessage:
		var m domain.Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		m.Type = domain.MessageTypeSystem
		return SystemMessageReceived{Message: m}, nil

	case EventUserTyping:
		var p UserTyping
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return TypingChanged{Username: p.Username, IsTyping: p.IsTyping}, nil

	default:
		return nil, errUnknownEvent(env.Event)
	}
}
