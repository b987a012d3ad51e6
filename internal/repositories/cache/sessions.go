package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps one key per live session so revocation is a delete.
type SessionStore struct {
	client redis.UniversalClient
}

func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(jti string) string {
	return "session:" + jti
}

func (s *SessionStore) Save(ctx context.Context, jti, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKey(jti), userID, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Exists reports whether the session is still live.
func (s *SessionStore) Exists(ctx context.Context, jti string) (bool, error) {
	_, err := s.client.Get(ctx, sessionKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return true, nil
}

func (s *SessionStore) Delete(ctx context.Context, jti string) error {
	return s.client.Del(ctx, sessionKey(jti)).Err()
}

// Touch extends a live session, used for idle timeouts.
func (s *SessionStore) Touch(ctx context.Context, jti string, ttl time.Duration) error {
	return s.client.Expire(ctx, sessionKey(jti), ttl).Err()
}
