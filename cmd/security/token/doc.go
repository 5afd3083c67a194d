// Package token provides refresh-credential hashing for Agora.
//
// It is the single source of truth for how raw refresh secrets are turned
// into the digests stored in Postgres.
//
// Design goals:
//   - Default mode: SHA-256(secret), deterministic, fixed 64-char hex output
//     suitable for an exact-match unique index lookup.
//   - Keyed mode: HMAC-SHA256(secret, key) when AGORA_TOKEN_HMAC_KEY is set,
//     so a database dump alone is not enough to forge lookups.
//
// The digest is deliberately unsalted: the store looks credentials up by
// equality, and raw secrets carry at least 256 bits of entropy, so digest
// leakage does not make the raw value recoverable.
package token
