package claimcache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
)

// DefaultMemorySize bounds the in-process backend's entry count.
const DefaultMemorySize = 10000

// MemoryBackend is an in-process LRU claims store with TTL expiry, used when
// no Redis is configured (single-instance deployments, tests). Snapshots are
// stored by reference and must be treated as read-only by callers.
type MemoryBackend struct {
	lru *expirable.LRU[authz.UserID, *authz.Claims]
}

// NewMemoryBackend creates an in-process backend. Non-positive size or ttl
// fall back to the defaults.
func NewMemoryBackend(size int, ttl time.Duration) *MemoryBackend {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryBackend{
		lru: expirable.NewLRU[authz.UserID, *authz.Claims](size, nil, ttl),
	}
}

// Get retrieves a cached snapshot, returning (nil, nil) on a miss.
func (b *MemoryBackend) Get(ctx context.Context, userID authz.UserID) (*authz.Claims, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("memory backend get: %w", err)
	}
	claims, ok := b.lru.Get(userID)
	if !ok {
		return nil, nil
	}
	return claims, nil
}

// Set stores a snapshot.
func (b *MemoryBackend) Set(ctx context.Context, claims *authz.Claims) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory backend set: %w", err)
	}
	b.lru.Add(claims.UserID, claims)
	return nil
}

// Delete removes the snapshots for the given users.
func (b *MemoryBackend) Delete(ctx context.Context, userIDs ...authz.UserID) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("memory backend delete: %w", err)
	}
	for _, userID := range userIDs {
		b.lru.Remove(userID)
	}
	return nil
}

// Len returns the number of cached snapshots.
func (b *MemoryBackend) Len() int {
	return b.lru.Len()
}
