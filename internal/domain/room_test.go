package domain

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomSession(t *testing.T) {
	t.Run("trims both fields", func(t *testing.T) {
		rs, err := NewRoomSession("  4821 ", "\talice ")
		require.NoError(t, err)
		assert.Equal(t, RoomSession{Room: "4821", Username: "alice"}, rs)
	})

	t.Run("rejects empty room", func(t *testing.T) {
		_, err := NewRoomSession("   ", "alice")
		assert.ErrorIs(t, err, ErrEmptyRoom)
	})

	t.Run("rejects empty username", func(t *testing.T) {
		_, err := NewRoomSession("4821", "")
		assert.ErrorIs(t, err, ErrEmptyUsername)
	})

	t.Run("normalizes composed and decomposed forms", func(t *testing.T) {
		rs, err := NewRoomSession("r", "Jose\u0301")
		require.NoError(t, err)
		assert.Equal(t, "Jos\u00e9", rs.Username)
		assert.True(t, rs.SameUser("Jos\u00e9 "))
	})
}

func TestNewOutgoingMessage(t *testing.T) {
	now := time.Date(2026, 3, 4, 15, 7, 0, 0, time.Local)
	m := NewOutgoingMessage("4821", "alice", "hello", now)

	assert.Equal(t, now.UnixMilli(), m.ID)
	assert.Equal(t, "4821", m.Room)
	assert.Equal(t, "alice", m.Author)
	assert.Equal(t, "hello", m.Message)
	assert.Equal(t, "03:07 PM", m.Time)
	assert.False(t, m.IsSystem())
}

func TestAuthContextUsername(t *testing.T) {
	assert.Equal(t, "", Anonymous.Username())
	assert.Equal(t, "", AuthContext{User: &User{Username: "bob"}}.Username())
	assert.Equal(t, "bob", AuthContext{User: &User{Username: " bob"}, IsAuthenticated: true}.Username())
}

func TestNewRoomID(t *testing.T) {
	for range 200 {
		id := NewRoomID()
		require.Len(t, id, 4)
		n, err := strconv.Atoi(id)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1000)
		assert.LessOrEqual(t, n, 9999)
	}
}
