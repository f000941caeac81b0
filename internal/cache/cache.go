// Package cache keeps a bounded, time-limited copy of each room's recent
// messages so rejoining a room shortly after leaving restores its history.
//
// Retention is lazy and per room: a record older than the TTL is dropped the
// next time it is loaded, and every save keeps only the most recent messages.
// Nothing sweeps across rooms.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nfrund/roomchat/internal/domain"
	"github.com/nfrund/roomchat/internal/storage"
)

const (
	// DefaultTTL is how long a room's record stays loadable after its last write.
	DefaultTTL = 30 * time.Minute
	// DefaultLimit is the number of most recent messages kept per room.
	DefaultLimit = 100

	keyPrefix = "chat_messages_"
)

// record is the persisted form of one room's log. Timestamp is the write
// time in Unix milliseconds.
type record struct {
	Messages  []domain.Message `json:"messages"`
	Timestamp int64            `json:"timestamp"`
}

// Stat describes a live record.
type Stat struct {
	Count     int
	WrittenAt time.Time
}

// MessageCache loads and saves per-room message logs in a storage.KV.
// Failures of the underlying store never reach the caller.
type MessageCache struct {
	kv     storage.KV
	ttl    time.Duration
	limit  int
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a MessageCache.
type Option func(*MessageCache)

// WithTTL sets how long records remain valid.
func WithTTL(d time.Duration) Option {
	return func(c *MessageCache) {
		c.ttl = d
	}
}

// WithLimit sets how many messages are kept per room.
func WithLimit(n int) Option {
	return func(c *MessageCache) {
		c.limit = n
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *MessageCache) {
		c.now = now
	}
}

// New creates a MessageCache over kv.
func New(kv storage.KV, opts ...Option) *MessageCache {
	c := &MessageCache{
		kv:     kv,
		ttl:    DefaultTTL,
		limit:  DefaultLimit,
		now:    time.Now,
		logger: slog.Default().With("component", "message_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the storage key of room's record.
func Key(room string) string {
	return keyPrefix + room
}

// Load returns the cached messages of room in their original order. It
// returns nil when there is no record, the record cannot be decoded, or the
// record has expired; an expired record is deleted on the way out.
func (c *MessageCache) Load(ctx context.Context, room string) []domain.Message {
	rec, ok := c.read(ctx, room)
	if !ok {
		return nil
	}
	return rec.Messages
}

// Stat reports the size and write time of room's record, if it is live.
func (c *MessageCache) Stat(ctx context.Context, room string) (Stat, bool) {
	rec, ok := c.read(ctx, room)
	if !ok {
		return Stat{}, false
	}
	return Stat{Count: len(rec.Messages), WrittenAt: time.UnixMilli(rec.Timestamp)}, true
}

func (c *MessageCache) read(ctx context.Context, room string) (record, bool) {
	key := Key(room)
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("Failed to read cached messages", "room", room, "error", err)
		}
		return record{}, false
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("Ignoring corrupt message cache", "room", room, "error", err)
		return record{}, false
	}

	age := c.now().Sub(time.UnixMilli(rec.Timestamp))
	if age >= c.ttl {
		c.logger.Debug("Message cache expired", "room", room, "age", age)
		c.remove(ctx, room)
		return record{}, false
	}
	return rec, true
}

// Save persists the last limit messages of room stamped with the current
// time. If the store rejects the write, the room's record is deleted instead
// and the error is dropped.
func (c *MessageCache) Save(ctx context.Context, room string, messages []domain.Message) {
	if len(messages) > c.limit {
		messages = messages[len(messages)-c.limit:]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	data, err := json.Marshal(record{
		Messages:  messages,
		Timestamp: c.now().UnixMilli(),
	})
	if err == nil {
		err = c.kv.Set(ctx, Key(room), data)
	}
	if err != nil {
		c.logger.Warn("Failed to save message cache, clearing room record", "room", room, "error", err)
		c.remove(ctx, room)
	}
}

// Clear removes room's record.
func (c *MessageCache) Clear(ctx context.Context, room string) {
	c.remove(ctx, room)
}

func (c *MessageCache) remove(ctx context.Context, room string) {
	if err := c.kv.Delete(ctx, Key(room)); err != nil {
		c.logger.Warn("Failed to delete message cache", "room", room, "error", err)
	}
}
