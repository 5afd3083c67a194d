package jwt

import "errors"

// Decode failures. Every rejected token maps onto exactly one of these so
// callers can branch (or log) without string matching.
var (
	// ErrMalformed covers anything that is not a structurally valid signed
	// token: wrong segment count, bad base64, an unexpected signing method,
	// or a missing subject.
	ErrMalformed = errors.New("access token malformed")

	// ErrSignatureInvalid marks a structurally valid token whose signature
	// does not verify against the configured secret.
	ErrSignatureInvalid = errors.New("access token signature invalid")

	// ErrExpired marks a token outside its validity window, beyond leeway.
	ErrExpired = errors.New("access token expired")

	// ErrIssuerMismatch marks a token minted for a different issuer.
	ErrIssuerMismatch = errors.New("access token issuer mismatch")
)
