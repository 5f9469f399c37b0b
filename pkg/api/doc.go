// Package api exposes the authorization engine over HTTP: permission
// checks, claims introspection, role management, and organization
// membership. Authentication is upstream; the acting user arrives in the
// X-Actor-ID header.
package api
