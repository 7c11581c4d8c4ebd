// Package stores keeps single-use email challenges (verification links and
// password recovery links) in Redis.
//
// A challenge is a hash with a TTL. Only the SHA-256 of its secret is
// stored. Consume checks the secret and deletes the record in one Lua
// script, so a link can be redeemed at most once; wrong secrets count
// toward an attempt limit after which the record is dropped.
package stores
