package refresh

import "errors"

var (
	// ErrInvalid is returned when a presented secret matches no usable
	// record: unknown digest, or a record past its expiry.
	ErrInvalid = errors.New("refresh credential invalid")

	// ErrReuseDetected is returned when a revoked credential is presented
	// again. By the time the caller sees this, the configured reuse policy
	// (revoking the owner's other credentials) has already been applied.
	ErrReuseDetected = errors.New("refresh credential reuse detected")

	// ErrNotFound is returned by revocation when no record matches.
	ErrNotFound = errors.New("refresh credential not found")

	// ErrDuplicateHash is returned when an insert collides on the digest
	// unique index. With 256-bit secrets this indicates a programming error,
	// not chance.
	ErrDuplicateHash = errors.New("refresh credential digest already exists")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid refresh config")
)
