package domain

import "errors"

// Sentinel errors for the domain layer. These are the validation failures the
// presentation layer is expected to show to the user.
var (
	ErrEmptyRoom        = errors.New("room id is required")
	ErrEmptyUsername    = errors.New("username is required")
	ErrEmptyMessage     = errors.New("message text is empty")
	ErrNotAuthenticated = errors.New("user is not authenticated")
)
