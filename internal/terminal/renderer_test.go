package terminal

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/roomchat/internal/chat"
	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/pubsub"
)

// syncBuffer is a bytes.Buffer safe for the subscriber goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var (
	hello  = domain.Message{ID: 1, Author: "bob", Message: "hello", Time: "02:05 PM"}
	mine   = domain.Message{ID: 2, Author: "alice", Message: "hey bob", Time: "02:06 PM"}
	joined = domain.Message{ID: 3, Message: "carol joined the room", Time: "02:07 PM", Type: domain.MessageTypeSystem}
)

func TestFormatMessage(t *testing.T) {
	assert.Equal(t, "[02:05 PM] bob: hello", FormatMessage(hello, "alice"))
	assert.Equal(t, "[02:06 PM] you: hey bob", FormatMessage(mine, "alice"))
	assert.Equal(t, "-- carol joined the room (02:07 PM) --", FormatMessage(joined, "alice"))
}

func TestTypingLine(t *testing.T) {
	assert.Equal(t, "", TypingLine(nil))
	assert.Equal(t, "bob is typing", TypingLine([]string{"bob"}))
	assert.Equal(t, "bob, carol are typing", TypingLine([]string{"bob", "carol"}))
}

func TestRenderer_PrintsOnlyChanges(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)
	base := chat.View{Room: "1234", Username: "alice"}

	v := base
	v.Seq, v.Status, v.Messages = 1, chat.StatusConnecting, []domain.Message{hello}
	r.Render(v)
	v.Seq, v.Status = 2, chat.StatusJoined
	r.Render(v)
	v.Seq, v.TypingUsers = 3, []string{"bob"}
	r.Render(v)
	v.Seq, v.TypingUsers, v.Messages = 4, nil, []domain.Message{hello, mine, joined}
	r.Render(v)

	want := "-- connecting to room 1234 as alice --\n" +
		"[02:05 PM] bob: hello\n" +
		"-- joined room 1234 --\n" +
		"bob is typing...\n" +
		"[02:06 PM] you: hey bob\n" +
		"-- carol joined the room (02:07 PM) --\n"
	assert.Equal(t, want, out.String())
}

func TestRenderer_DropsStaleViews(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)

	r.Render(chat.View{Seq: 5, Room: "1234", Username: "alice", Status: chat.StatusJoined, Messages: []domain.Message{hello, mine}})
	out.Reset()
	r.Render(chat.View{Seq: 4, Room: "1234", Username: "alice", Status: chat.StatusJoined, Messages: []domain.Message{hello}})

	assert.Empty(t, out.String())
}

func TestRenderer_Disconnected(t *testing.T) {
	var out bytes.Buffer
	r := NewRenderer(&out)

	r.Render(chat.View{Seq: 1, Room: "1234", Status: chat.StatusDisconnected, Err: "connection refused"})

	assert.Equal(t, "-- disconnected: connection refused --\n", out.String())
}

func TestRenderer_Subscribe(t *testing.T) {
	bus := pubsub.NewWatermillBridge(nil, 0)
	t.Cleanup(func() { _ = bus.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	r := NewRenderer(&out)
	require.NoError(t, r.Subscribe(ctx, bus))

	view := chat.View{Seq: 1, Room: "1234", Username: "alice", Status: chat.StatusJoined, Messages: []domain.Message{hello}}
	require.NoError(t, pubsub.Publish(ctx, bus, chat.SessionUpdated, "alice", view, nil))

	require.Eventually(t, func() bool {
		return out.String() == "-- joined room 1234 --\n[02:05 PM] bob: hello\n"
	}, 2*time.Second, 10*time.Millisecond)
}
