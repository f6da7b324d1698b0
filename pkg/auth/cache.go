package auth

import (
	"context"
	"sync"
	"time"
)

// IdentityCache stores verified identities keyed by token hash, so
// repeated requests with the same bearer token skip signature
// verification. Implementations must be safe for concurrent use.
//
// A cache is an optimization, never an authority: a lookup failure is
// treated as a miss and the token is re-verified.
type IdentityCache interface {
	// Get returns the cached identity for key, or (nil, false) when
	// absent or expired.
	Get(ctx context.Context, key string) (*VerifiedIdentity, bool)

	// Put stores the identity under key for at most ttl. A non-positive
	// ttl is ignored.
	Put(ctx context.Context, key string, identity *VerifiedIdentity, ttl time.Duration)
}

// memoryCacheEntry is a cached identity with its expiration time.
type memoryCacheEntry struct {
	identity  *VerifiedIdentity
	expiresAt time.Time
}

// memoryIdentityCache is a bounded in-process [IdentityCache]. When the
// cache is full, expired entries are evicted first; if none are
// expired, the entry closest to expiration is dropped.
type memoryIdentityCache struct {
	mu      sync.Mutex
	entries map[string]*memoryCacheEntry
	maxSize int
}

// NewMemoryIdentityCache creates an in-memory identity cache holding at
// most maxSize entries. It is the default cache for [KeycloakVerifier]
// and suits single-replica deployments; use [RedisIdentityCache] to
// share verification results across replicas.
func NewMemoryIdentityCache(maxSize int) IdentityCache {
	return &memoryIdentityCache{
		entries: make(map[string]*memoryCacheEntry),
		maxSize: maxSize,
	}
}

func (c *memoryIdentityCache) Get(_ context.Context, key string) (*VerifiedIdentity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.identity, true
}

func (c *memoryIdentityCache) Put(_ context.Context, key string, identity *VerifiedIdentity, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = &memoryCacheEntry{
		identity:  identity,
		expiresAt: time.Now().Add(ttl),
	}
}

// evictLocked makes room for one new entry. Expired entries go first;
// if the cache is still full, the entry closest to expiration is
// removed. Callers must hold the mutex.
func (c *memoryIdentityCache) evictLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) < c.maxSize {
		return
	}

	var oldestKey string
	var oldestExpiry time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldestExpiry) {
			oldestKey = key
			oldestExpiry = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
