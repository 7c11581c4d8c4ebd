// Package jwt issues and checks the short-lived access tokens handed out at
// sign-in. Tokens name the user and the session they belong to; the session
// itself stays authoritative in Redis.
package jwt
