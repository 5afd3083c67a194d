// Package refresh manages Agora's long-lived refresh credentials.
//
// A refresh credential is an opaque random secret handed to the client
// exactly once; the store keeps only its digest. Presenting the secret can
// validate it, rotate it (revoke the old record and issue a successor in one
// transaction), or revoke it.
//
// Reuse detection is the security core: a revoked credential presented again
// means the secret exists in two places, typically because it was stolen. The
// rotation path reports this distinctly so callers can revoke every
// credential the owner holds.
//
// Expired records are treated as invalid at read time; a background sweeper
// deletes them from storage on an interval.
package refresh
