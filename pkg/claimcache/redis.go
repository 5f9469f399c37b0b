package claimcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/gatekeeper/pkg/authz"
)

// DefaultTTL is the safety-net expiry for cached claims. Correctness comes
// from explicit invalidation on every permission-affecting write; the TTL
// only heals entries whose invalidation was missed, e.g. after a crash
// between commit and invalidate.
const DefaultTTL = 24 * time.Hour

// RedisBackend stores claims snapshots in Redis as JSON.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBackend creates a Redis-backed claims store. A non-positive ttl
// falls back to DefaultTTL.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisBackend{client: client, ttl: ttl}
}

func claimsKey(userID authz.UserID) string {
	return fmt.Sprintf("claims:%d", userID)
}

// Get retrieves a cached snapshot, returning (nil, nil) on a miss.
func (b *RedisBackend) Get(ctx context.Context, userID authz.UserID) (*authz.Claims, error) {
	data, err := b.client.Get(ctx, claimsKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var claims authz.Claims
	if err := json.Unmarshal([]byte(data), &claims); err != nil {
		// Corrupt entry: drop it and report a miss.
		b.client.Del(ctx, claimsKey(userID))
		return nil, fmt.Errorf("failed to unmarshal cached claims: %w", err)
	}
	return &claims, nil
}

// Set stores a snapshot with the safety-net TTL.
func (b *RedisBackend) Set(ctx context.Context, claims *authz.Claims) error {
	data, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("failed to marshal claims: %w", err)
	}
	return b.client.Set(ctx, claimsKey(claims.UserID), data, b.ttl).Err()
}

// Delete removes the snapshots for the given users.
func (b *RedisBackend) Delete(ctx context.Context, userIDs ...authz.UserID) error {
	keys := make([]string, len(userIDs))
	for i, userID := range userIDs {
		keys[i] = claimsKey(userID)
	}
	return b.client.Del(ctx, keys...).Err()
}

// Ping checks Redis connectivity.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
