package accounts

import "errors"

var (
	// ErrNotFound means no account matches the given id or email.
	ErrNotFound = errors.New("account not found")

	// ErrConflict means a unique constraint (normalized email) was hit.
	ErrConflict = errors.New("account already exists")

	// ErrInvalidInput marks a request the store refuses to attempt.
	ErrInvalidInput = errors.New("invalid account input")
)
