package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind separates verification and recovery challenges so one cannot be
// redeemed as the other.
type Kind string

const (
	KindEmailVerification Kind = "verify"
	KindPasswordRecovery  Kind = "recover"
)

var (
	ErrChallengeNotFound         = errors.New("challenge not found")
	ErrChallengeSecretMismatch   = errors.New("challenge secret mismatch")
	ErrChallengeAttemptsExceeded = errors.New("challenge attempts exceeded")
	ErrChallengeRedisUnavailable = errors.New("challenge redis unavailable")
)

// consumeChallengeLua checks and deletes a challenge atomically.
// KEYS[1] = record key
// ARGV[1] = expected kind
// ARGV[2] = provided secret hash (hex)
// ARGV[3] = max attempts
//
// Returns the record as a flat field/value array, or one of the errors
// "not_found", "kind_mismatch", "attempts_exceeded", "secret_mismatch".
var consumeChallengeLua = redis.NewScript(`
local rec = redis.call('HMGET', KEYS[1], 'kind', 'hash')
if not rec[1] then
  return {err='not_found'}
end
if rec[1] ~= ARGV[1] then
  return {err='kind_mismatch'}
end
if rec[2] ~= ARGV[2] then
  local attempts = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  if attempts >= tonumber(ARGV[3]) then
    redis.call('DEL', KEYS[1])
    return {err='attempts_exceeded'}
  end
  return {err='secret_mismatch'}
end
local out = redis.call('HGETALL', KEYS[1])
redis.call('DEL', KEYS[1])
return out
`)

// Challenge is a pending email challenge.
type Challenge struct {
	Kind       Kind
	UserID     string
	Email      string
	SecretHash string
	Attempts   int
	CreatedAt  time.Time
}

// ChallengeStore persists challenges under prefix.
type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewChallengeStore(rdb redis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = "mw"
	}
	return &ChallengeStore{redis: rdb, prefix: prefix}
}

func (s *ChallengeStore) key(id string) string {
	return s.prefix + ":challenge:" + id
}

func (s *ChallengeStore) latestKey(kind Kind, userID string) string {
	return s.prefix + ":challenge-latest:" + string(kind) + ":" + userID
}

// Save stores c under id for ttl. Any earlier challenge of the same kind
// for the same user is revoked, so only the newest link works.
func (s *ChallengeStore) Save(ctx context.Context, id string, c Challenge, ttl time.Duration) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	prev, err := s.redis.GetSet(ctx, s.latestKey(c.Kind, c.UserID), id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}

	pipe := s.redis.TxPipeline()
	if prev != "" && prev != id {
		pipe.Del(ctx, s.key(prev))
	}
	pipe.HSet(ctx, s.key(id), map[string]any{
		"kind":     string(c.Kind),
		"uid":      c.UserID,
		"email":    c.Email,
		"hash":     c.SecretHash,
		"attempts": 0,
		"created":  c.CreatedAt.Unix(),
	})
	pipe.Expire(ctx, s.key(id), ttl)
	pipe.Expire(ctx, s.latestKey(c.Kind, c.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}
	return nil
}

// Consume redeems challenge id of the given kind.
func (s *ChallengeStore) Consume(ctx context.Context, kind Kind, id, secretHash string, maxAttempts int) (*Challenge, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	result, err := consumeChallengeLua.Run(ctx, s.redis, []string{s.key(id)}, string(kind), secretHash, maxAttempts).Result()
	if err != nil {
		switch err.Error() {
		case "not_found", "kind_mismatch":
			return nil, ErrChallengeNotFound
		case "attempts_exceeded":
			return nil, ErrChallengeAttemptsExceeded
		case "secret_mismatch":
			return nil, ErrChallengeSecretMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
		}
	}

	fields, ok := result.([]any)
	if !ok || len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrChallengeRedisUnavailable)
	}
	rec := make(map[string]string, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		k, _ := fields[i].(string)
		v, _ := fields[i+1].(string)
		rec[k] = v
	}

	// Lua string comparison is not constant-time.
	if subtle.ConstantTimeCompare([]byte(rec["hash"]), []byte(secretHash)) != 1 {
		return nil, ErrChallengeSecretMismatch
	}

	c := &Challenge{
		Kind:       Kind(rec["kind"]),
		UserID:     rec["uid"],
		Email:      rec["email"],
		SecretHash: rec["hash"],
	}
	c.Attempts, _ = strconv.Atoi(rec["attempts"])
	if created, err := strconv.ParseInt(rec["created"], 10, 64); err == nil {
		c.CreatedAt = time.Unix(created, 0)
	}
	_ = s.redis.Del(ctx, s.latestKey(kind, c.UserID)).Err()
	return c, nil
}
