// Package epoch tracks per-account revocation epochs.
//
// Every access token carries the epoch that was current when it was minted.
// Bumping an account's epoch therefore invalidates all of its outstanding
// access tokens at once, without keeping a token blacklist: verification
// just compares the token's epoch against the current one.
//
// Accounts start at epoch 0 implicitly; no row is written until the first
// bump. Bump is strictly monotonic per account.
package epoch
