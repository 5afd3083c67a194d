package epoch

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidInput marks a request the store refuses to attempt.
var ErrInvalidInput = errors.New("invalid epoch input")

// Store is the revocation-epoch persistence boundary.
type Store interface {
	// Current returns the account's epoch. Accounts without a row are at
	// epoch 0; unknown accounts are indistinguishable from fresh ones.
	Current(ctx context.Context, accountID string) (int64, error)

	// Bump increments the account's epoch and returns the new value.
	Bump(ctx context.Context, now time.Time, accountID string) (int64, error)
}
