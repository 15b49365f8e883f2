// Package domain contains core concepts of the support relay.
// This file defines identities and connection handles.
// No runtime, network, or UI logic should be added here.
package domain

// ConnectionID is the opaque handle of one live transport link,
// assigned by the transport layer on accept.
type ConnectionID string

// Role distinguishes the two populations the relay connects.
type Role string

const (
	// RoleSeeker is a help-requester, optionally anonymous towards the responder.
	RoleSeeker Role = "seeker"
	// RoleResponder is a staff member handling seeker conversations.
	RoleResponder Role = "responder"
)

// Valid reports whether the role is one of the two known populations.
func (r Role) Valid() bool {
	return r == RoleSeeker || r == RoleResponder
}

// Identity is the verified (userId, role) pair cached by the relay for routing.
// It is immutable once bound to a connection; the relay never verifies
// credentials itself.
type Identity struct {
	UserID string
	Role   Role
}
