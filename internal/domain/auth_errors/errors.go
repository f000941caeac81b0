package auth_errors

import "errors"

// Errors the authentication API reports through HTTP status codes. The auth
// client maps responses onto these so callers can branch with errors.Is.
var (
	// ErrUserAlreadyExists indicates a sign-up attempt failed because the user's
	// email address is already registered.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates a login attempt failed due to an incorrect
	// email or password combination.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidResetToken indicates that a password reset request used a token
	// that is either expired, already used, or was never valid.
	ErrInvalidResetToken = errors.New("invalid or expired password reset token")

	// ErrUnauthorized indicates the stored token was rejected. Local auth state
	// has been cleared by the time this is returned.
	ErrUnauthorized = errors.New("session expired, please log in again")
)
