// Package terminal renders chat session views as plain text lines.
package terminal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nfrund/roomchat/internal/chat"
	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/pubsub"
)

// Renderer prints what changed between successive views of one session.
// Views may arrive out of order; anything older than the last one rendered
// is ignored.
type Renderer struct {
	out io.Writer

	mu      sync.Mutex
	lastSeq uint64
	shown   int
	status  chat.Status
	typing  string
}

// NewRenderer writes to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Subscribe renders every view published on chat.TopicSessionUpdated until
// ctx is cancelled.
func (r *Renderer) Subscribe(ctx context.Context, sub pubsub.Subscriber) error {
	return pubsub.Subscribe(ctx, sub, chat.SessionUpdated, func(_ context.Context, v chat.View, _ pubsub.Message) error {
		r.Render(v)
		return nil
	})
}

// Render prints the parts of v not printed yet.
func (r *Renderer) Render(v chat.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.Seq != 0 && v.Seq <= r.lastSeq {
		return
	}
	r.lastSeq = v.Seq

	var b strings.Builder
	if v.Status != r.status {
		if line := statusLine(v); line != "" {
			b.WriteString(line + "\n")
		}
		r.status = v.Status
	}
	if r.shown > len(v.Messages) {
		r.shown = 0
	}
	for _, m := range v.Messages[r.shown:] {
		b.WriteString(FormatMessage(m, v.Username) + "\n")
	}
	r.shown = len(v.Messages)

	if typing := TypingLine(v.TypingUsers); typing != r.typing {
		if typing != "" {
			b.WriteString(typing + "...\n")
		}
		r.typing = typing
	}

	if b.Len() > 0 {
		_, _ = io.WriteString(r.out, b.String())
	}
}

func statusLine(v chat.View) string {
	switch v.Status {
	case chat.StatusConnecting:
		return fmt.Sprintf("-- connecting to room %s as %s --", v.Room, v.Username)
	case chat.StatusJoined:
		return fmt.Sprintf("-- joined room %s --", v.Room)
	case chat.StatusDisconnected:
		if v.Err != "" {
			return "-- disconnected: " + v.Err + " --"
		}
		return "-- disconnected --"
	case chat.StatusLeft:
		return fmt.Sprintf("-- left room %s --", v.Room)
	}
	return ""
}

// FormatMessage renders one line. Messages authored by self are labelled
// "you".
func FormatMessage(m domain.Message, self string) string {
	if m.IsSystem() {
		return fmt.Sprintf("-- %s (%s) --", m.Message, m.Time)
	}
	author := m.Author
	if self != "" && author == self {
		author = "you"
	}
	return fmt.Sprintf("[%s] %s: %s", m.Time, author, m.Message)
}

// TypingLine is "A is typing" or "A, B are typing", or "" for nobody.
func TypingLine(users []string) string {
	switch len(users) {
	case 0:
		return ""
	case 1:
		return users[0] + " is typing"
	default:
		return strings.Join(users, ", ") + " are typing"
	}
}
