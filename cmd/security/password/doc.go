// Package password provides Argon2id password hashing for Agora.
//
// Hashes are encoded as PHC-style strings
// ($argon2id$v=19$m=...,t=...,p=...$salt$key) so parameters travel with the
// hash and can be tightened over time without invalidating stored rows.
//
// Security notes:
//   - Encoded hashes are treated as untrusted input during Verify; parameters
//     far above the configured cost are rejected to prevent an
//     attacker-supplied hash string from driving pathological CPU/memory use.
//   - Comparison is constant-time.
package password
