package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/roomchat/internal/domain"
)

// TestWebsocketDialer_RoundTrip runs a channel against a real WebSocket
// server: the server checks the join frame and answers with a notice.
func TestWebsocketDialer_RoundTrip(t *testing.T) {
	joined := make(chan RoomUser, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		_, frame, err := c.Read(ctx)
		if err != nil {
			return
		}
		env, err := Decode(frame)
		if err != nil || env.Event != EventJoinRoom {
			return
		}
		var p RoomUser
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		joined <- p

		notice, _ := Encode(EventSystemMessage, domain.Message{Message: p.Username + " joined the room", Time: "09:00 AM"})
		if err := c.Write(ctx, websocket.MessageText, notice); err != nil {
			return
		}
		// Wait for the client to leave.
		_, _, _ = c.Read(ctx)
	}))
	defer srv.Close()

	sink := newEventSink()
	url := srv.URL + "/ws" // http scheme, rewritten to ws by the dialer
	ch, err := Connect(context.Background(), WebsocketDialer{}, url, alice, sink.sink)
	require.NoError(t, err)
	defer ch.Close()

	select {
	case p := <-joined:
		assert.Equal(t, RoomUser{Room: "4821", Username: "alice"}, p)
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw join_room")
	}

	sys, ok := sink.next(t).(SystemMessageReceived)
	require.True(t, ok)
	assert.Equal(t, "alice joined the room", sys.Message.Message)
	assert.Equal(t, domain.MessageTypeSystem, sys.Message.Type)

	assert.NoError(t, ch.Close())
	assert.Equal(t, StateClosed, ch.State())
}

func TestWebsocketDialer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := WebsocketDialer{}.Dial(ctx, srv.URL+"/ws")
	assert.Error(t, err)
}
