// Package redisstore keeps submitted reports in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mangrovewatch/mangrove/screens"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("report store: redis unavailable")

// Store implements screens.ReportStore. Reports are JSON strings indexed
// per user in a sorted set scored by creation time; points accumulate in a
// counter.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

var _ screens.ReportStore = (*Store)(nil)

func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "mw"
	}
	return &Store{redis: rdb, prefix: prefix}
}

func (s *Store) key(id string) string        { return s.prefix + ":report:" + id }
func (s *Store) userKey(uid string) string   { return s.prefix + ":ureports:" + uid }
func (s *Store) pointsKey(uid string) string { return s.prefix + ":points:" + uid }

func (s *Store) Save(ctx context.Context, r screens.Report) error {
	if r.ID == "" || r.UserID == "" {
		return errors.New("report store: id and user id are required")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.key(r.ID), data, 0)
	pipe.ZAdd(ctx, s.userKey(r.UserID), redis.Z{Score: float64(r.CreatedAt.UnixMilli()), Member: r.ID})
	pipe.IncrBy(ctx, s.pointsKey(r.UserID), int64(r.Points))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ListByUser returns the newest reports of userID first.
func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]screens.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	ids, err := s.redis.ZRevRange(ctx, s.userKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]screens.Report, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var r screens.Report
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) Points(ctx context.Context, userID string) (int64, error) {
	n, err := s.redis.Get(ctx, s.pointsKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}
