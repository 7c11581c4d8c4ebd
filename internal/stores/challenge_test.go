package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*ChallengeStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewChallengeStore(rdb, "t"), mr
}

func testChallenge() Challenge {
	return Challenge{Kind: KindEmailVerification, UserID: "u-1", Email: "a@b.com", SecretHash: "abc"}
}

func TestConsumeOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "id-1", testChallenge(), time.Hour); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	c, err := s.Consume(ctx, KindEmailVerification, "id-1", "abc", 3)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if c.UserID != "u-1" || c.Email != "a@b.com" {
		t.Fatalf("unexpected challenge %+v", c)
	}
	if _, err := s.Consume(ctx, KindEmailVerification, "id-1", "abc", 3); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("second consume: expected ErrChallengeNotFound, got %v", err)
	}
}

func TestConsumeWrongKind(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, "id-1", testChallenge(), time.Hour)

	if _, err := s.Consume(ctx, KindPasswordRecovery, "id-1", "abc", 3); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
	if _, err := s.Consume(ctx, KindEmailVerification, "id-1", "abc", 3); err != nil {
		t.Fatalf("kind mismatch must not burn the record: %v", err)
	}
}

func TestConsumeAttemptsExceeded(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, "id-1", testChallenge(), time.Hour)

	if _, err := s.Consume(ctx, KindEmailVerification, "id-1", "bad", 2); !errors.Is(err, ErrChallengeSecretMismatch) {
		t.Fatalf("expected ErrChallengeSecretMismatch, got %v", err)
	}
	if _, err := s.Consume(ctx, KindEmailVerification, "id-1", "bad", 2); !errors.Is(err, ErrChallengeAttemptsExceeded) {
		t.Fatalf("expected ErrChallengeAttemptsExceeded, got %v", err)
	}
	if _, err := s.Consume(ctx, KindEmailVerification, "id-1", "abc", 2); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("record should be gone, got %v", err)
	}
}

func TestChallengeExpires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, "id-1", testChallenge(), time.Minute)

	mr.FastForward(2 * time.Minute)
	if _, err := s.Consume(ctx, KindEmailVerification, "id-1", "abc", 3); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}

func TestNewerChallengeRevokesOlder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, "old", testChallenge(), time.Hour)
	_ = s.Save(ctx, "new", testChallenge(), time.Hour)

	if _, err := s.Consume(ctx, KindEmailVerification, "old", "abc", 3); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("old link should be revoked, got %v", err)
	}
	if _, err := s.Consume(ctx, KindEmailVerification, "new", "abc", 3); err != nil {
		t.Fatalf("new link should work: %v", err)
	}
}
