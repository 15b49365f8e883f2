package domain

import "time"

// Command is one inbound transport event addressed to the relay core.
// Every command carries the connection it arrived on; the relay resolves
// the sender's identity from its registry, never from the wire.
type Command interface {
	Connection() ConnectionID
}

// IdentifyCommand binds a verified identity to a connection.
// Verification happens in the transport layer before the command is built.
type IdentifyCommand struct {
	Conn     ConnectionID
	Identity Identity
}

func (c IdentifyCommand) Connection() ConnectionID { return c.Conn }

// RequestPairingCommand asks for a responder to be assigned to the seeker
// bound to the connection.
type RequestPairingCommand struct {
	Conn      ConnectionID
	Anonymous bool
}

func (c RequestPairingCommand) Connection() ConnectionID { return c.Conn }

// SendMessageCommand relays one chat message within the conversation
// identified by SeekerID.
type SendMessageCommand struct {
	Conn      ConnectionID
	SeekerID  string
	Text      string
	CreatedAt time.Time
}

func (c SendMessageCommand) Connection() ConnectionID { return c.Conn }

// EndChatCommand explicitly ends the conversation of SeekerID.
type EndChatCommand struct {
	Conn     ConnectionID
	SeekerID string
}

func (c EndChatCommand) Connection() ConnectionID { return c.Conn }
