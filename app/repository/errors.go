package repository

import "errors"

var (
	// ErrDuplicateToken is returned when a refresh token value collides with
	// an existing record. Near-impossible with 256-bit tokens, but callers
	// must retry with a fresh token rather than ignore it.
	ErrDuplicateToken = errors.New("refresh token already exists")

	// ErrTokenNotFound is returned by Rotate when the presented token has no
	// live record (already rotated, revoked, or never issued).
	ErrTokenNotFound = errors.New("refresh token not found")

	// ErrTokenExpired is returned by Rotate when the record exists but its
	// expiry has passed.
	ErrTokenExpired = errors.New("refresh token expired")
)
