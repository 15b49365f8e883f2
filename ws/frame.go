// Package ws is the transport surface of the relay: the websocket endpoint
// carrying the live event stream, plus the small HTTP API around it
// (accounts, transcripts, stats). Wire frames are JSON; their exact shape is
// a transport concern and never leaks into the relay core.
package ws

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"support-relay/domain"
	"support-relay/domain/event"
	"support-relay/errors"
)

var validate = validator.New()

// Frame type tags, inbound and outbound.
const (
	TypeIdentify       = "identify"
	TypeRequestPairing = "requestPairing"
	TypeSendMessage    = "sendMessage"
	TypeEndChat        = "endChat"

	TypePairingAssigned         = "pairingAssigned"
	TypePairingFailed           = "pairingFailed"
	TypeMessage                 = "message"
	TypeCounterpartDisconnected = "counterpartDisconnected"
)

// InboundFrame is one client event. A single flat shape keeps decoding
// trivial; which fields are required depends on Type and is enforced by
// Validate before anything reaches the relay.
type InboundFrame struct {
	Type      string `json:"type" validate:"required,oneof=identify requestPairing sendMessage endChat"`
	Token     string `json:"token,omitempty"`
	SeekerID  string `json:"seekerId,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Validate rejects malformed frames so they can be dropped at the transport
// edge, before any relay state is touched.
func (f InboundFrame) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	switch f.Type {
	case TypeIdentify:
		if f.Token == "" {
			return fmt.Errorf("%w: identify requires a token", errors.ErrMalformedEvent)
		}
	case TypeSendMessage:
		if f.Text == "" {
			return fmt.Errorf("%w: sendMessage requires text", errors.ErrMalformedEvent)
		}
	}
	return nil
}

// OutboundFrame mirrors the relay's notification taxonomy on the wire.
type OutboundFrame struct {
	Type        string    `json:"type"`
	ResponderID string    `json:"responderId,omitempty"`
	SeekerID    string    `json:"seekerId,omitempty"`
	Anonymous   bool      `json:"anonymous,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	MessageID   string    `json:"messageId,omitempty"`
	SenderRole  string    `json:"senderRole,omitempty"`
	Text        string    `json:"text,omitempty"`
	At          time.Time `json:"at,omitzero"`
}

func toFrame(n event.Notification) OutboundFrame {
	switch e := n.(type) {
	case event.PairingAssigned:
		return OutboundFrame{
			Type:        TypePairingAssigned,
			ResponderID: e.ResponderID,
			SeekerID:    e.SeekerID,
			Anonymous:   e.Anonymous,
		}
	case event.PairingFailed:
		return OutboundFrame{Type: TypePairingFailed, Reason: e.Reason}
	case event.MessageReceived:
		return OutboundFrame{
			Type:       TypeMessage,
			MessageID:  e.ID.String(),
			SenderRole: string(e.SenderRole),
			SeekerID:   e.SeekerID,
			Text:       e.Text,
			At:         e.At,
		}
	case event.CounterpartDisconnected:
		return OutboundFrame{Type: TypeCounterpartDisconnected, SeekerID: e.SeekerID}
	default:
		return OutboundFrame{Type: n.Kind()}
	}
}

// toCommand translates a validated frame into the relay command it stands
// for. Identify frames are handled separately because verification must
// happen before the command is built.
func toCommand(conn domain.ConnectionID, f InboundFrame) domain.Command {
	switch f.Type {
	case TypeRequestPairing:
		return domain.RequestPairingCommand{Conn: conn, Anonymous: f.Anonymous}
	case TypeSendMessage:
		return domain.SendMessageCommand{
			Conn:      conn,
			SeekerID:  f.SeekerID,
			Text:      f.Text,
			CreatedAt: time.Now().UTC(),
		}
	case TypeEndChat:
		return domain.EndChatCommand{Conn: conn, SeekerID: f.SeekerID}
	default:
		return nil
	}
}

func newConnectionID() domain.ConnectionID {
	return domain.ConnectionID(uuid.NewString())
}
