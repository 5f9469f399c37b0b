// Package engine assembles the authorization core into one object: role
// and membership stores, the claims cache, the organization adapter
// registry, and the access helpers built on top of them.
package engine
