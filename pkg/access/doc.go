// Package access composes claims, membership, and organization adapters
// into the coarse "may this user touch this organization at all" checks
// that run before finer per-resource permission checks.
package access
