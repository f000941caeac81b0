package domain

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RoomSession identifies one user's membership in one room.
type RoomSession struct {
	Room     string `json:"room"`
	Username string `json:"username"`
}

// NewRoomSession trims and NFC-normalizes both identifiers so that the same
// name typed on different keyboards compares equal, then validates them.
func NewRoomSession(room, username string) (RoomSession, error) {
	rs := RoomSession{
		Room:     normalize(room),
		Username: normalize(username),
	}
	if rs.Room == "" {
		return RoomSession{}, ErrEmptyRoom
	}
	if rs.Username == "" {
		return RoomSession{}, ErrEmptyUsername
	}
	return rs, nil
}

// SameUser reports whether name refers to the session's own user.
func (rs RoomSession) SameUser(name string) bool {
	return normalize(name) == rs.Username
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NewRoomID picks a random four-digit room id, 1000 through 9999.
func NewRoomID() string {
	return strconv.Itoa(1000 + rand.IntN(9000))
}
