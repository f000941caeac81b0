package realtime

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn. Frames pushed with serverSend are returned by
// Read; frames written by the channel are recorded.
type fakeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written []Envelope

	closeCount atomic.Int32
	closed     chan struct{}
	closeOnce  sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-f.inbound:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-f.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}
	env, err := Decode(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.written = append(f.written, env)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() error {
	f.closeCount.Add(1)
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// serverSend queues a frame for the client to read.
func (f *fakeConn) serverSend(t *testing.T, event string, payload any) {
	t.Helper()
	frame, err := Encode(event, payload)
	require.NoError(t, err)
	f.inbound <- frame
}

// hangUp simulates the server ending the connection.
func (f *fakeConn) hangUp() {
	close(f.inbound)
}

func (f *fakeConn) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	for i, env := range f.written {
		out[i] = env.Event
	}
	return out
}

func (f *fakeConn) payload(t *testing.T, i int, v any) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Less(t, i, len(f.written))
	require.NoError(t, json.Unmarshal(f.written[i].Data, v))
}

// waitForEvents blocks until the connection has seen want frames.
func (f *fakeConn) waitForEvents(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.events()) >= len(want)
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, want, f.events())
}

type fakeDialer struct {
	conn *fakeConn
	err  error
	urls []string
}

func (d *fakeDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	d.urls = append(d.urls, rawURL)
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// eventSink collects inbound events.
type eventSink struct {
	ch chan Event
}

func newEventSink() *eventSink {
	return &eventSink{ch: make(chan Event, 16)}
}

func (s *eventSink) sink(ev Event) {
	s.ch <- ev
}

func (s *eventSink) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-s.ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound event")
		return nil
	}
}

func (s *eventSink) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case ev := <-s.ch:
		t.Fatalf("unexpected event %#v", ev)
	case <-time.After(d):
	}
}
