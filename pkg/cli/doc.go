// Package cli implements the gatekeeperctl commands: permission checks,
// claims inspection, and role assignment against a running gatekeeper
// server.
package cli
