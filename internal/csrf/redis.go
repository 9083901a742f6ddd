package csrf

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authguard:csrf:"

// RedisStore is a Store shared by every process pointing at the same Redis.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore returns a store over client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL parses a redis:// URL and returns a store over a new client.
func NewRedisStoreFromURL(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

// Put binds token to sessionKey with a ttl expiry.
func (s *RedisStore) Put(ctx context.Context, sessionKey, token string, ttl time.Duration) error {
	return s.client.Set(ctx, redisKeyPrefix+sessionKey, token, ttl).Err()
}

// Get returns the bound token; a missing key is ok false, not an error.
func (s *RedisStore) Get(ctx context.Context, sessionKey string) (string, bool, error) {
	v, err := s.client.Get(ctx, redisKeyPrefix+sessionKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Delete removes the token for sessionKey.
func (s *RedisStore) Delete(ctx context.Context, sessionKey string) error {
	return s.client.Del(ctx, redisKeyPrefix+sessionKey).Err()
}

// Ping checks connectivity for health reporting.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
