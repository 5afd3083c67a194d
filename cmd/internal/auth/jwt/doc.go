// Package jwt issues and verifies Agora's short-lived access tokens.
//
// Access tokens are HS256 JWTs with a fixed, explicitly typed claim set:
// subject (account id), revocation epoch, optional role list, issuer,
// issued-at and expiry. The claim set is a struct rather than an open map so
// issuer and verifier cannot silently drift apart.
//
// Decoding fails closed: any signature, structure, issuer, or time violation
// yields one of the package's sentinel errors and never a partial result.
// The signing secret is held in memory and fixed at construction.
package jwt
