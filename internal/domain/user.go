package domain

import "strings"

// User is the account returned by the authentication API.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthContext is the identity capability handed to components that need to
// know who the local user is. It replaces any process-wide auth lookup: a
// chat session only learns the user through the context passed to it.
type AuthContext struct {
	User            *User
	IsAuthenticated bool
}

// Username returns the authenticated user's name, or "" when there is none.
func (a AuthContext) Username() string {
	if !a.IsAuthenticated || a.User == nil {
		return ""
	}
	return strings.TrimSpace(a.User.Username)
}

// Anonymous is the context of a signed-out client.
var Anonymous = AuthContext{}
