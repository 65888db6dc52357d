package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/access-control/internal/domain"
)

const defaultKeyPrefix = "session:ttl:"

type redisValue struct {
	Token          string    `json:"token"`
	TokenExpiresAt time.Time `json:"tokenExpiresAt"`
}

// RedisCache stores entries as keys with a native redis expiry, so the
// countdown survives restarts and is shared between API replicas.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisCache creates a redis-backed cache. An empty prefix selects the default.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix, now: time.Now}
}

func (c *RedisCache) key(userID string) string {
	return c.prefix + userID
}

func (c *RedisCache) Put(ctx context.Context, userID, token string, tokenExpiresAt time.Time, ttl time.Duration) error {
	if userID == "" {
		return errors.New("session: user id required")
	}
	if ttl <= 0 {
		return errors.New("session: ttl must be positive")
	}

	data, err := json.Marshal(redisValue{Token: token, TokenExpiresAt: tokenExpiresAt})
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	return c.client.Set(ctx, c.key(userID), data, ttl).Err()
}

func (c *RedisCache) RemainingTTL(ctx context.Context, userID string) (domain.SessionTTL, error) {
	key := c.key(userID)

	var (
		getCmd *redis.StringCmd
		ttlCmd *redis.DurationCmd
	)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		getCmd = pipe.Get(ctx, key)
		ttlCmd = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.SessionTTL{}, fmt.Errorf("session: read: %w", err)
	}

	raw, err := getCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionTTL{}, ErrNotFound
	}
	if err != nil {
		return domain.SessionTTL{}, fmt.Errorf("session: get: %w", err)
	}

	remaining := ttlCmd.Val()
	if remaining <= 0 {
		// -1 (no expiry) or -2 (gone between commands) are not valid entries.
		return domain.SessionTTL{}, ErrNotFound
	}

	var value redisValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return domain.SessionTTL{}, fmt.Errorf("session: unmarshal: %w", err)
	}

	return domain.SessionTTL{
		UserID:         userID,
		Remaining:      remaining,
		ExpiresAt:      c.now().Add(remaining),
		TokenExpiresAt: value.TokenExpiresAt,
	}, nil
}

func (c *RedisCache) Renew(ctx context.Context, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session: ttl must be positive")
	}
	// PEXPIRE never creates a key, so a missing entry reports false.
	ok, err := c.client.PExpire(ctx, c.key(userID), ttl).Result()
	if err != nil {
		return fmt.Errorf("session: renew: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}
