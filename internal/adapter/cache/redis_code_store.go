package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/valora-admin/internal/repository"
)

const codeKeyPrefix = "admin:otp:"

// RedisCodeStore implements repository.CodeStore backed by Redis. Expiry is
// enforced by Redis itself, so stale codes disappear without any sweeper.
type RedisCodeStore struct {
	client redis.UniversalClient
}

var _ repository.CodeStore = (*RedisCodeStore)(nil)

// NewRedisCodeStore constructs a Redis-backed OTP store.
func NewRedisCodeStore(client redis.UniversalClient) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

// Set stores the code under the email with a TTL, replacing any live code.
func (s *RedisCodeStore) Set(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, codeKeyPrefix+email, code, ttl).Err(); err != nil {
		return fmt.Errorf("persist otp: %w", err)
	}
	return nil
}

// Get returns the live code for the email, or ok=false when absent/expired.
func (s *RedisCodeStore) Get(ctx context.Context, email string) (string, bool, error) {
	code, err := s.client.Get(ctx, codeKeyPrefix+email).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load otp: %w", err)
	}
	return code, true, nil
}

// Del removes the code, if any.
func (s *RedisCodeStore) Del(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, codeKeyPrefix+email).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}
