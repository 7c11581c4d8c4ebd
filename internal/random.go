package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const (
	idSize     = 16
	secretSize = 32
	tokenSize  = idSize + secretSize
)

// ErrMalformedToken is returned for tokens that do not decode.
var ErrMalformedToken = errors.New("malformed token")

// NewID returns 16 random bytes, base64url encoded without padding.
func NewID() (string, error) {
	var b [idSize]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// NewChallengeToken returns a fresh challenge id, the opaque token that
// carries it to the user, and the hash of the secret part to store.
func NewChallengeToken() (id, token string, secretHash string, err error) {
	var raw [tokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", "", "", err
	}
	id = base64.RawURLEncoding.EncodeToString(raw[:idSize])
	token = base64.RawURLEncoding.EncodeToString(raw[:])
	return id, token, HashSecret(raw[idSize:]), nil
}

// ParseChallengeToken splits a token into its challenge id and secret hash.
func ParseChallengeToken(token string) (id, secretHash string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != tokenSize {
		return "", "", ErrMalformedToken
	}
	return base64.RawURLEncoding.EncodeToString(raw[:idSize]), HashSecret(raw[idSize:]), nil
}

// HashSecret returns the hex SHA-256 of b.
func HashSecret(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashString returns the hex SHA-256 of s. Used to keep raw IPs out of
// stored records.
func HashString(s string) string {
	if s == "" {
		return ""
	}
	return HashSecret([]byte(s))
}
