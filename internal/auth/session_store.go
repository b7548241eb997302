package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/juju/clock"
	"github.com/redis/go-redis/v9"
)

// SessionStore records per-user revocation instants. Tokens issued before the
// recorded instant are rejected by the middleware.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	clock  clock.Clock
}

// NewSessionStore builds a store whose markers outlive any token issued
// before them.
func NewSessionStore(client *redis.Client, tokenTTL time.Duration, clk clock.Clock) *SessionStore {
	if clk == nil {
		clk = clock.WallClock
	}
	return &SessionStore{client: client, ttl: tokenTTL, clock: clk}
}

func sessionKey(userID string) string {
	return "session_revoked:" + userID
}

// InvalidateSessions logs the user out of every active session.
func (s *SessionStore) InvalidateSessions(ctx context.Context, userID string) error {
	now := s.clock.Now().UnixMilli()
	return s.client.Set(ctx, sessionKey(userID), now, s.ttl).Err()
}

// RevokedAt returns the latest revocation instant for the user, if any.
func (s *SessionStore) RevokedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}
