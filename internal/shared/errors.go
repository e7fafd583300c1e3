package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates a token that failed verification or expired.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInactiveUser indicates an authenticated but deactivated account.
	ErrInactiveUser = errors.New("user inactive")
)
