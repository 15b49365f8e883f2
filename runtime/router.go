package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"support-relay/contract"
	"support-relay/domain"
	"support-relay/domain/event"
	"support-relay/observability"
)

// Router forwards one inbound chat message to the single correct destination
// connection. Delivery is best-effort, at-most-once: a message whose target
// has no live connection is dropped, counted, and never queued or surfaced
// back to the sender as an error.
//
// Route must run inside the Lifecycle exclusion boundary so that the
// destination lookup and the forward observe one consistent snapshot; a
// racing disconnect must yield a counted drop, never a silent delivery to a
// dead handle.
type Router struct {
	log      *slog.Logger
	registry *Registry
	table    *AssignmentTable
	recorder contract.ConversationRecorder
	monitor  *observability.Monitor
}

func NewRouter(log *slog.Logger, registry *Registry, table *AssignmentTable,
	recorder contract.ConversationRecorder, monitor *observability.Monitor) *Router {
	return &Router{
		log:      log,
		registry: registry,
		table:    table,
		recorder: recorder,
		monitor:  monitor,
	}
}

// Route resolves the destination and forwards the message.
// Seeker messages go to the responder holding the seeker in the assignment
// table; responder messages go straight to the seeker's live connection.
func (r *Router) Route(ctx context.Context, msg domain.Message) {
	var sink contract.EventSink
	var live bool

	switch msg.SenderRole {
	case domain.RoleSeeker:
		responderID, held := r.table.HolderOf(msg.SeekerID)
		if !held {
			r.drop(msg, "seeker has no active pairing")
			return
		}
		sink, live = r.registry.SinkForUser(responderID)
	case domain.RoleResponder:
		sink, live = r.registry.SinkForUser(msg.SeekerID)
	default:
		r.drop(msg, "unknown sender role")
		return
	}

	if !live {
		r.drop(msg, "destination not live")
		return
	}

	if err := sink.Consume(ctx, toNotification(msg)); err != nil {
		r.drop(msg, err.Error())
		return
	}
	r.monitor.IncrMessagesRelayed()

	// Persistence is a side effect of a successful forward, never a gate on it.
	if r.recorder != nil {
		r.recorder.Record(msg)
	}
}

func (r *Router) drop(msg domain.Message, reason string) {
	r.monitor.IncrMessagesDropped()
	r.log.Debug(fmt.Sprintf("Dropping message for seeker %s: %s", msg.SeekerID, reason),
		"sender_role", string(msg.SenderRole))
}

func toNotification(msg domain.Message) event.MessageReceived {
	id := msg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return event.MessageReceived{
		ID:         id,
		SenderRole: msg.SenderRole,
		SeekerID:   msg.SeekerID,
		Text:       msg.Text,
		At:         at,
	}
}
