package domain

import "time"

// MessageTypeSystem marks server-originated notices such as join and leave
// announcements. They are rendered without an author bubble.
const MessageTypeSystem = "system"

// timeLayout renders the two-digit hour and minute of the sender's local clock.
const timeLayout = "03:04 PM"

// Message is a single chat line. Messages are immutable once created and are
// kept in arrival order; ID is the sender's wall clock in milliseconds and is
// not unique across clients.
type Message struct {
	ID      int64  `json:"id"`
	Room    string `json:"room,omitempty"`
	Author  string `json:"author,omitempty"`
	Message string `json:"message"`
	Time    string `json:"time"`
	Type    string `json:"type,omitempty"`
}

// IsSystem reports whether the message is a server notice.
func (m Message) IsSystem() bool {
	return m.Type == MessageTypeSystem
}

// NewOutgoingMessage builds the message a local user sends at now.
func NewOutgoingMessage(room, author, text string, now time.Time) Message {
	return Message{
		ID:      now.UnixMilli(),
		Room:    room,
		Author:  author,
		Message: text,
		Time:    FormatTime(now),
	}
}

// FormatTime renders t the way message timestamps are displayed.
func FormatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}
