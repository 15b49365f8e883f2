// Package event defines the outbound notifications the relay pushes to
// connected clients. Delivery is best-effort: a notification is forwarded
// if a live destination exists at the instant of routing, never queued.
package event

import (
	"time"

	"github.com/google/uuid"

	"support-relay/domain"
)

// Notification is pushed to exactly one connection's sink.
type Notification interface {
	Kind() string
}

// PairingAssigned tells one side of a fresh pairing who its counterpart is.
// The seeker receives ResponderID; the responder receives SeekerID together
// with the Anonymous flag, which tells it not to display the seeker's name.
type PairingAssigned struct {
	ResponderID string
	SeekerID    string
	Anonymous   bool
}

func (PairingAssigned) Kind() string { return "pairingAssigned" }

// PairingFailed is reported to the requester only; the assignment table
// is untouched when it fires.
type PairingFailed struct {
	Reason string
}

func (PairingFailed) Kind() string { return "pairingFailed" }

// MessageReceived carries one relayed chat message to its destination.
type MessageReceived struct {
	ID         uuid.UUID
	SenderRole domain.Role
	SeekerID   string
	Text       string
	At         time.Time
}

func (MessageReceived) Kind() string { return "message" }

// CounterpartDisconnected tells a live party that its conversation ended,
// either because the other side disconnected or because the chat was
// explicitly closed.
type CounterpartDisconnected struct {
	SeekerID string
}

func (CounterpartDisconnected) Kind() string { return "counterpartDisconnected" }
