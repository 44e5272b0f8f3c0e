package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	redisv9 "github.com/redis/go-redis/v9"
)

// RevocationCache remembers logged-out token IDs until the token would have
// expired anyway.
type RevocationCache interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type RedisRevocationCache struct {
	client *redisv9.Client
}

func NewRedisRevocationCache(client *redisv9.Client) *RedisRevocationCache {
	return &RedisRevocationCache{client: client}
}

func (c *RedisRevocationCache) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked token failed: %w", err)
	}
	return nil
}

func (c *RedisRevocationCache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	exists, err := c.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check revoked token failed: %w", err)
	}
	return exists > 0, nil
}

// MemoryRevocationCache is used when no redis address is configured.
type MemoryRevocationCache struct {
	cache *gocache.Cache
}

func NewMemoryRevocationCache() *MemoryRevocationCache {
	return &MemoryRevocationCache{
		cache: gocache.New(gocache.NoExpiration, 10*time.Minute),
	}
}

func (c *MemoryRevocationCache) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.cache.Set(revokedKey(tokenID), struct{}{}, ttl)
	return nil
}

func (c *MemoryRevocationCache) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, found := c.cache.Get(revokedKey(tokenID))
	return found, nil
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("auth:revoked:%s", tokenID)
}
