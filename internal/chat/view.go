package chat

import "github.com/nfrund/roomchat/internal/domain"

// Status is the connection state a session shows to the user.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusJoined       Status = "joined"
	StatusDisconnected Status = "disconnected"
	StatusLeft         Status = "left"
)

// View is an immutable snapshot of a session for the presentation layer.
// Seq increases with every change, so consumers receiving views out of order
// can drop stale ones.
type View struct {
	Seq         uint64           `json:"seq"`
	Room        string           `json:"room"`
	Username    string           `json:"username"`
	Messages    []domain.Message `json:"messages"`
	TypingUsers []string         `json:"typingUsers"`
	Status      Status           `json:"status"`
	Err         string           `json:"error,omitempty"`
}

// Connected reports whether messages can be sent.
func (v View) Connected() bool {
	return v.Status == StatusJoined
}
