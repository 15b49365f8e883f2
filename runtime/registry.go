// Package runtime hosts the in-memory relay engine: the connection registry,
// the assignment table, the matching and routing logic, and the lifecycle
// manager that owns them. It orchestrates the system without containing
// transport or persistence concerns.
package runtime

import (
	"support-relay/contract"
	"support-relay/domain"
)

// Registry maps live connections to verified identities and their sinks.
// It is owned by the Lifecycle manager and must only be touched inside the
// lifecycle's exclusion boundary; it carries no lock of its own so that the
// seeker-uniqueness invariant shared with the AssignmentTable can never be
// checked-then-acted-upon non-atomically.
type Registry struct {
	identities map[domain.ConnectionID]domain.Identity
	byUser     map[string]domain.ConnectionID
	sinks      map[domain.ConnectionID]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[domain.ConnectionID]domain.Identity),
		byUser:     make(map[string]domain.ConnectionID),
		sinks:      make(map[domain.ConnectionID]contract.EventSink),
	}
}

// Track records a freshly accepted, still unidentified connection.
func (r *Registry) Track(conn domain.ConnectionID, sink contract.EventSink) {
	r.sinks[conn] = sink
}

// Tracked reports whether the connection is currently open.
func (r *Registry) Tracked(conn domain.ConnectionID) bool {
	_, ok := r.sinks[conn]
	return ok
}

// Bind associates a verified identity with a connection. It is idempotent and
// overwrites: a later identify for the same user re-points the user index to
// the new connection, leaving the earlier connection's mapping stale rather
// than force-closing it.
func (r *Registry) Bind(conn domain.ConnectionID, identity domain.Identity) {
	if prev, ok := r.identities[conn]; ok && prev.UserID != identity.UserID {
		if current, ok := r.byUser[prev.UserID]; ok && current == conn {
			delete(r.byUser, prev.UserID)
		}
	}
	r.identities[conn] = identity
	r.byUser[identity.UserID] = conn
}

// Unbind removes the connection and returns the identity that was bound,
// ok=false when the connection was never identified. The user index is only
// cleared when it still points at this connection, so a stale handle closing
// late cannot evict the replacement binding.
func (r *Registry) Unbind(conn domain.ConnectionID) (domain.Identity, bool) {
	delete(r.sinks, conn)

	identity, ok := r.identities[conn]
	if !ok {
		return domain.Identity{}, false
	}
	delete(r.identities, conn)

	if current, ok := r.byUser[identity.UserID]; ok && current == conn {
		delete(r.byUser, identity.UserID)
	}
	return identity, true
}

// IdentityOf returns the identity bound to a connection, if any.
func (r *Registry) IdentityOf(conn domain.ConnectionID) (domain.Identity, bool) {
	identity, ok := r.identities[conn]
	return identity, ok
}

// ConnectionOf returns the live connection currently bound to a user.
func (r *Registry) ConnectionOf(userID string) (domain.ConnectionID, bool) {
	conn, ok := r.byUser[userID]
	return conn, ok
}

// SinkOf returns the outbound sink of a connection.
func (r *Registry) SinkOf(conn domain.ConnectionID) (contract.EventSink, bool) {
	sink, ok := r.sinks[conn]
	return sink, ok
}

// SinkForUser resolves a user to the sink of its live connection.
// ok=false means the user has no live connection: the caller drops.
func (r *Registry) SinkForUser(userID string) (contract.EventSink, bool) {
	conn, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	sink, ok := r.sinks[conn]
	return sink, ok
}

// Size returns the number of open connections.
func (r *Registry) Size() int {
	return len(r.sinks)
}

// Identified returns the number of connections with a bound identity.
func (r *Registry) Identified() int {
	return len(r.identities)
}
