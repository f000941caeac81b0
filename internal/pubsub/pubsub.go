// Package pubsub is the in-process event bus between chat sessions and
// whatever presents them.
package pubsub

import "context"

// Message is one event on the bus. Payload is opaque to the bus; typed
// events encode it as JSON.
type Message struct {
	Topic string
	// UserID names the user the event concerns, for example the username a
	// session view belongs to.
	UserID   string
	Payload  []byte
	Metadata map[string]string
}

// Handler processes one delivered message. A returned error is logged and
// the message is not redelivered.
type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type Subscriber interface {
	// Subscribe registers handler for topic and returns. Delivery stops when
	// ctx is cancelled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
