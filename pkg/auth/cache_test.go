package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdentityCache_PutGet(t *testing.T) {
	t.Parallel()
	cache := NewMemoryIdentityCache(10)
	ctx := context.Background()

	identity := &VerifiedIdentity{Subject: "user-1", Username: "jdoe"}
	cache.Put(ctx, "hash-1", identity, time.Minute)

	got, ok := cache.Get(ctx, "hash-1")
	require.True(t, ok)
	assert.Equal(t, "user-1", got.Subject)
	assert.Equal(t, "jdoe", got.Username)
}

func TestMemoryIdentityCache_Miss(t *testing.T) {
	t.Parallel()
	cache := NewMemoryIdentityCache(10)

	got, ok := cache.Get(context.Background(), "absent")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMemoryIdentityCache_Expiry(t *testing.T) {
	t.Parallel()
	cache := NewMemoryIdentityCache(10)
	ctx := context.Background()

	cache.Put(ctx, "hash-1", &VerifiedIdentity{Subject: "user-1"}, 10*time.Millisecond)

	_, ok := cache.Get(ctx, "hash-1")
	require.True(t, ok, "entry should be present before expiry")

	time.Sleep(20 * time.Millisecond)

	_, ok = cache.Get(ctx, "hash-1")
	assert.False(t, ok, "entry should be gone after expiry")
}

func TestMemoryIdentityCache_NonPositiveTTLIgnored(t *testing.T) {
	t.Parallel()
	cache := NewMemoryIdentityCache(10)
	ctx := context.Background()

	cache.Put(ctx, "hash-1", &VerifiedIdentity{Subject: "user-1"}, 0)
	cache.Put(ctx, "hash-2", &VerifiedIdentity{Subject: "user-2"}, -time.Second)

	_, ok := cache.Get(ctx, "hash-1")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "hash-2")
	assert.False(t, ok)
}

func TestMemoryIdentityCache_Overwrite(t *testing.T) {
	t.Parallel()
	cache := NewMemoryIdentityCache(10)
	ctx := context.Background()

	cache.Put(ctx, "hash-1", &VerifiedIdentity{Subject: "user-1"}, time.Minute)
	cache.Put(ctx, "hash-1", &VerifiedIdentity{Subject: "user-1", Username: "updated"}, time.Minute)

	got, ok := cache.Get(ctx, "hash-1")
	require.True(t, ok)
	assert.Equal(t, "updated", got.Username)
}

func TestMemoryIdentityCache_EvictsAtMaxSize(t *testing.T) {
	t.Parallel()
	cache := NewMemoryIdentityCache(3)
	ctx := context.Background()

	// Fill the cache; the first entry expires soonest.
	cache.Put(ctx, "hash-0", &VerifiedIdentity{Subject: "user-0"}, time.Minute)
	for i := 1; i < 3; i++ {
		cache.Put(ctx, fmt.Sprintf("hash-%d", i),
			&VerifiedIdentity{Subject: fmt.Sprintf("user-%d", i)}, time.Hour)
	}

	// Inserting a fourth entry evicts the one closest to expiration.
	cache.Put(ctx, "hash-3", &VerifiedIdentity{Subject: "user-3"}, time.Hour)

	_, ok := cache.Get(ctx, "hash-0")
	assert.False(t, ok, "entry closest to expiry should have been evicted")

	for i := 1; i <= 3; i++ {
		_, ok := cache.Get(ctx, fmt.Sprintf("hash-%d", i))
		assert.True(t, ok, "entry hash-%d should survive eviction", i)
	}
}

func TestMemoryIdentityCache_EvictsExpiredFirst(t *testing.T) {
	t.Parallel()
	cache := NewMemoryIdentityCache(2)
	ctx := context.Background()

	cache.Put(ctx, "expired", &VerifiedIdentity{Subject: "old"}, time.Millisecond)
	cache.Put(ctx, "live", &VerifiedIdentity{Subject: "live"}, time.Hour)
	time.Sleep(5 * time.Millisecond)

	cache.Put(ctx, "new", &VerifiedIdentity{Subject: "new"}, time.Hour)

	_, ok := cache.Get(ctx, "live")
	assert.True(t, ok, "live entry should survive when an expired one could be evicted")
	_, ok = cache.Get(ctx, "new")
	assert.True(t, ok)
}

func TestMemoryIdentityCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	cache := NewMemoryIdentityCache(100)
	ctx := context.Background()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("hash-%d-%d", g, i%10)
				cache.Put(ctx, key, &VerifiedIdentity{Subject: key}, time.Minute)
				cache.Get(ctx, key)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
