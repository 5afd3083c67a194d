// Package accounts persists Agora's security principals.
//
// An account is deliberately thin: id, login email, display name, password
// hash, role list. The auth packages reference accounts only by id so that
// account storage can evolve without touching token or session code.
package accounts
