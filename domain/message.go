// Package domain contains core concepts of the support relay.
// This file defines Message events and related rules.
// Messages are immutable once created.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one chat message travelling through the relay.
// SeekerID names the conversation: it is the sender for a seeker message
// and the destination for a responder message.
type Message struct {
	ID         uuid.UUID
	SenderRole Role
	SenderID   string
	SeekerID   string
	Text       string
	CreatedAt  time.Time
}
