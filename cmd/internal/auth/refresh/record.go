package refresh

import (
	"context"
	"time"
)

// Record mirrors the agora.refresh_tokens row. TokenHash is the only trace
// of the secret; the plain value never reaches storage.
type Record struct {
	ID        string
	OwnerID   string
	TokenHash string

	CreatedAt  time.Time
	LastUsedAt *time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time

	// ReplacedByID links a rotated record to its successor. A revoked record
	// with this set was consumed by rotation; seeing its secret again is the
	// reuse signal.
	ReplacedByID *string
}

// Active reports whether the record is usable at the given instant.
func (r Record) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// RotateStatus tags the outcome of a store-level rotation.
type RotateStatus int

const (
	// RotateOK means the old record was revoked and the successor inserted.
	RotateOK RotateStatus = iota
	// RotateInvalid means the digest matched nothing usable.
	RotateInvalid
	// RotateReuseDetected means the digest matched a revoked record.
	RotateReuseDetected
)

// RotateOutcome reports a rotation attempt. Old is set for RotateOK and
// RotateReuseDetected; New only for RotateOK.
type RotateOutcome struct {
	Status RotateStatus
	Old    Record
	New    Record
}

// Store abstracts persistence for refresh credentials.
//
// Rotate must be atomic: no interleaving of two rotations of the same digest
// may produce two successors, and no window may exist where both the old and
// new record are usable.
type Store interface {
	// Insert adds a new record. Returns ErrDuplicateHash on digest collision.
	Insert(ctx context.Context, rec Record) error

	// ByHash loads a record by digest, or ErrNotFound. No liveness checks;
	// callers interpret revocation and expiry.
	ByHash(ctx context.Context, hash string) (Record, error)

	// Rotate atomically consumes the record matching currentHash and inserts
	// next in its place. On reuse detection it applies revokeAllOnReuse
	// against the owner inside the same transaction.
	Rotate(ctx context.Context, now time.Time, currentHash string, next Record, revokeAllOnReuse bool) (RotateOutcome, error)

	// Revoke revokes the record matching hash (idempotent), or ErrNotFound.
	Revoke(ctx context.Context, now time.Time, hash string) error

	// RevokeAllForOwner revokes every active record the owner holds and
	// returns how many were newly revoked.
	RevokeAllForOwner(ctx context.Context, now time.Time, ownerID string) (int64, error)

	// ActiveByOwner lists the owner's records that are usable at now.
	ActiveByOwner(ctx context.Context, now time.Time, ownerID string) ([]Record, error)

	// DeleteExpired removes records past expiry, revoked or not, and returns
	// how many were deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
