// Package claimcache caches claims snapshots per user in front of the
// resolver.
//
// Get is cache-through: a hit returns the stored snapshot without touching
// the stores; a miss resolves, stores, and returns. Concurrent misses for
// the same user are collapsed into a single resolution.
//
// Correctness comes from explicit invalidation: every write that can change
// a user's effective permissions calls Invalidate (or InvalidateMany) after
// the write commits. The backend TTL is only a safety net for missed
// invalidations.
//
// Backend errors never fail a permission check. When the backend is slow or
// down, Get logs, counts the error, and resolves directly. Invalidate, in
// contrast, returns backend errors so the writing caller can retry.
//
// Two backends ship with the package: RedisBackend for shared deployments
// and MemoryBackend (expirable LRU) for single-instance use and tests.
package claimcache
