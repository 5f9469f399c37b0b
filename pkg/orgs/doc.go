// Package orgs decouples the authorization engine from the applications
// that own organizations. Each organization type (company, project, team)
// registers an Adapter; the engine asks adapters about existence and
// membership and never touches the owning tables itself.
package orgs
