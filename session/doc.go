// Package session keeps signed-in sessions in Redis.
//
// Each session is a JSON record under its own key with a TTL, plus an entry
// in a per-user set so every session of a user can be revoked at once (used
// after a password change).
//
// This package does not issue tokens or check passwords; that belongs to the
// identity engine.
package session
