// Package catalog defines the closed set of permission keys known to the
// authorization engine, and the grant syntax roles use to reference them.
//
// A permission key has the form "group:action", e.g. "projects:create".
// A grant is either an exact key, a group wildcard ("projects:*"), or the
// global wildcard ("*"). Wildcard expansion happens at check time via
// Grant.Covers; grants are never pre-expanded.
//
// The catalog is loaded once at startup, either from the built-in defaults
// (Default) or from a YAML file (LoadFile), and is immutable afterwards.
// WatchFile can reload the file edition on change.
//
// External input becomes a Key only through Catalog.ParseKey, so code past
// that boundary can treat keys as valid.
package catalog
