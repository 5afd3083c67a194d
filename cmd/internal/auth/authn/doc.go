// Package authn turns bearer access tokens into request identities.
//
// The middleware is anonymous-on-failure: a missing, malformed, expired, or
// stale-epoch token leaves the request unauthenticated rather than rejecting
// it, and route handlers decide whether anonymity is acceptable. RequireAuth
// is the gate for routes that need a principal.
package authn
