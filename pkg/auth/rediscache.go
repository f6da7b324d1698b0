package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	redisclient "github.com/resumeflow/resumeflow-core/pkg/clients/redis"
)

// defaultIdentityKeyPrefix namespaces identity cache keys in Redis so
// they do not collide with other cached data in a shared instance.
const defaultIdentityKeyPrefix = "auth:identity:"

// RedisIdentityCache is an [IdentityCache] backed by Redis, letting
// multiple service replicas share token verification results. Values
// are JSON-encoded identities stored under SHA-256 token hashes with a
// server-side TTL, so raw tokens never reach Redis and entries expire
// without a sweeper.
//
// Cache failures are logged and treated as misses: Redis being down
// degrades verification to per-request JWKS checks, it never blocks
// authentication.
type RedisIdentityCache struct {
	client *redisclient.Client
	prefix string
}

// Compile-time assertion that RedisIdentityCache implements IdentityCache.
var _ IdentityCache = (*RedisIdentityCache)(nil)

// NewRedisIdentityCache creates a Redis-backed identity cache on top of
// an existing client. keyPrefix namespaces the cache's keys; if empty,
// "auth:identity:" is used.
func NewRedisIdentityCache(client *redisclient.Client, keyPrefix string) *RedisIdentityCache {
	if keyPrefix == "" {
		keyPrefix = defaultIdentityKeyPrefix
	}
	return &RedisIdentityCache{
		client: client,
		prefix: keyPrefix,
	}
}

func (c *RedisIdentityCache) Get(ctx context.Context, key string) (*VerifiedIdentity, bool) {
	data, err := c.client.Get(ctx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			slog.WarnContext(ctx, "identity cache lookup failed, re-verifying token",
				slog.String("error", err.Error()))
		}
		return nil, false
	}

	var identity VerifiedIdentity
	if err := json.Unmarshal([]byte(data), &identity); err != nil {
		slog.WarnContext(ctx, "identity cache entry is corrupt, re-verifying token",
			slog.String("error", err.Error()))
		return nil, false
	}
	return &identity, true
}

func (c *RedisIdentityCache) Put(ctx context.Context, key string, identity *VerifiedIdentity, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(identity)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode identity for caching",
			slog.String("error", err.Error()))
		return
	}

	if err := c.client.Set(ctx, c.prefix+key, data, ttl); err != nil {
		slog.WarnContext(ctx, "failed to cache verified identity",
			slog.String("error", err.Error()))
	}
}
