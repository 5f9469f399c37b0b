// Package audit records an immutable trail of authorization mutations:
// role lifecycle changes, assignments, membership changes, and claims
// invalidations. Events are written fire-and-forget from the request path;
// the trail is queryable and exportable for compliance review.
package audit
