// Package api exposes Agora's auth endpoints over HTTP.
//
// The handler composes the account store, refresh service, epoch store, and
// access-token codec into the login, refresh, logout, password, and session
// management routes. Refresh secrets travel either in the JSON body or in an
// HttpOnly cookie for browser clients.
//
// All refresh failures surface the same 401 regardless of cause; reuse is
// distinguished only internally (audit log, metrics, structured logs) so an
// attacker probing stolen tokens learns nothing from the response.
package api
