package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"support-relay/contract"
	"support-relay/domain"
	"support-relay/domain/event"
	"support-relay/observability"
)

// Ensure *Lifecycle satisfies the interfaces the transport and the dispatch
// worker program against.
var (
	_ contract.IRelay         = (*Lifecycle)(nil)
	_ contract.CommandHandler = (*Lifecycle)(nil)
)

// Lifecycle reacts to connect, identify, and disconnect events and keeps the
// Registry and the AssignmentTable consistent. It is the single ownership
// boundary for both structures: every mutation and every lookup-and-forward
// step runs under one mutex, so the shared invariants (one conversation per
// seeker, entries only for live responders) are never checked and acted upon
// non-atomically.
//
// Transport events are funneled through a buffered command channel consumed
// by a single dispatch worker; per-connection FIFO holds because each
// connection's read loop enqueues in arrival order. Connect and Disconnect
// are invoked synchronously by the transport so that a socket teardown can
// never be lost to a full queue.
type Lifecycle struct {
	mu       sync.Mutex
	log      *slog.Logger
	registry *Registry
	table    *AssignmentTable
	matcher  *Matcher
	router   *Router
	monitor  *observability.Monitor
	censor   func(string) string
	commands chan domain.Command
}

func NewLifecycle(log *slog.Logger, registry *Registry, table *AssignmentTable,
	router *Router, monitor *observability.Monitor, bufferSize int) *Lifecycle {
	return &Lifecycle{
		log:      log,
		registry: registry,
		table:    table,
		matcher:  NewMatcher(table),
		router:   router,
		monitor:  monitor,
		commands: make(chan domain.Command, bufferSize),
	}
}

// SetCensor installs a text masking pass applied to every relayed message
// before routing and persistence. A nil censor disables masking.
func (l *Lifecycle) SetCensor(fn func(string) string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.censor = fn
}

// Commands exposes the inbound queue to the dispatch worker.
func (l *Lifecycle) Commands() <-chan domain.Command {
	return l.commands
}

// Dispatch enqueues a transport event without blocking the read loop.
// A full queue drops the command, mirroring the best-effort contract.
func (l *Lifecycle) Dispatch(cmd domain.Command) {
	select {
	case l.commands <- cmd:
	default:
		l.log.Warn(fmt.Sprintf("Command queue full, dropping event from connection %s", cmd.Connection()))
	}
}

// Connect registers a freshly accepted, still unidentified connection.
func (l *Lifecycle) Connect(conn domain.ConnectionID, sink contract.EventSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registry.Track(conn, sink)
	l.monitor.IncrConnections()
	l.log.Debug(fmt.Sprintf("New connection %s", conn))
}

// Disconnect unwinds everything a closing connection left behind. It is
// idempotent: a second disconnect for an already closed connection is a no-op,
// and a stale handle (its user re-identified elsewhere) only clears its own
// mapping without touching the replacement binding or the assignment table.
func (l *Lifecycle) Disconnect(conn domain.ConnectionID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	identity, bound := l.registry.IdentityOf(conn)
	if !bound && !l.registry.Tracked(conn) {
		return
	}

	ownsBinding := false
	if bound {
		if current, ok := l.registry.ConnectionOf(identity.UserID); ok && current == conn {
			ownsBinding = true
		}
	}

	l.registry.Unbind(conn)
	l.log.Debug(fmt.Sprintf("Connection %s closed", conn))

	if !bound || !ownsBinding {
		return
	}

	l.unwind(identity)
}

// unwind releases everything an identity holds in the assignment table.
// Responder entries only exist while their user is identified on a live
// connection, so every path that ends an identity's tenure (disconnect,
// re-identify as someone else) must funnel through here.
func (l *Lifecycle) unwind(identity domain.Identity) {
	switch identity.Role {
	case domain.RoleResponder:
		for _, seekerID := range l.table.RemoveResponder(identity.UserID) {
			l.notifyUser(seekerID, event.CounterpartDisconnected{SeekerID: seekerID})
		}
	case domain.RoleSeeker:
		// The seeker initiated the teardown; releasing the pairing is enough.
		l.matcher.EndPairing(identity.UserID)
	}
}

// Handle processes one inbound command to completion against the shared
// state. It runs on the dispatch worker goroutine.
func (l *Lifecycle) Handle(ctx context.Context, cmd domain.Command) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.registry.Tracked(cmd.Connection()) {
		// The connection raced its own teardown; late events are dropped.
		l.log.Debug(fmt.Sprintf("Ignoring event for closed connection %s", cmd.Connection()))
		return
	}

	switch c := cmd.(type) {
	case domain.IdentifyCommand:
		l.handleIdentify(c)
	case domain.RequestPairingCommand:
		l.handlePairing(ctx, c)
	case domain.SendMessageCommand:
		l.handleMessage(ctx, c)
	case domain.EndChatCommand:
		l.handleEndChat(ctx, c)
	default:
		l.log.Warn(fmt.Sprintf("Unknown command %T", cmd))
	}
}

func (l *Lifecycle) handleIdentify(c domain.IdentifyCommand) {
	// Malformed identities are rejected here so the registry never sees them.
	if c.Identity.UserID == "" || !c.Identity.Role.Valid() {
		l.log.Warn("Ignoring malformed identify event", "connection", string(c.Conn))
		return
	}

	// Re-identifying as a different user ends the previous identity's tenure
	// on this connection: its assignment state must not outlive it.
	if prev, ok := l.registry.IdentityOf(c.Conn); ok && prev.UserID != c.Identity.UserID {
		if current, ok := l.registry.ConnectionOf(prev.UserID); ok && current == c.Conn {
			l.unwind(prev)
		}
	}

	l.registry.Bind(c.Conn, c.Identity)
	if c.Identity.Role == domain.RoleResponder {
		l.table.AddResponder(c.Identity.UserID)
	}
	l.log.Info(fmt.Sprintf("User %s identified as %s", c.Identity.UserID, c.Identity.Role))
}

func (l *Lifecycle) handlePairing(ctx context.Context, c domain.RequestPairingCommand) {
	identity, ok := l.registry.IdentityOf(c.Conn)
	if !ok || identity.Role != domain.RoleSeeker {
		l.log.Warn("Ignoring pairing request from non-seeker connection", "connection", string(c.Conn))
		return
	}

	responderID, err := l.matcher.RequestPairing(identity.UserID)
	if err != nil {
		l.monitor.IncrPairingsRefused()
		l.notifyConn(ctx, c.Conn, event.PairingFailed{Reason: err.Error()})
		return
	}

	l.monitor.IncrPairingsCreated()
	l.log.Info(fmt.Sprintf("Seeker %s assigned to responder %s", identity.UserID, responderID))

	l.notifyConn(ctx, c.Conn, event.PairingAssigned{ResponderID: responderID, Anonymous: c.Anonymous})
	l.notifyUser(responderID, event.PairingAssigned{SeekerID: identity.UserID, Anonymous: c.Anonymous})
}

func (l *Lifecycle) handleMessage(ctx context.Context, c domain.SendMessageCommand) {
	identity, ok := l.registry.IdentityOf(c.Conn)
	if !ok {
		l.log.Debug("Dropping message from unidentified connection", "connection", string(c.Conn))
		return
	}

	// A seeker can only write inside its own conversation.
	seekerID := c.SeekerID
	if identity.Role == domain.RoleSeeker {
		seekerID = identity.UserID
	}
	if seekerID == "" {
		l.log.Warn("Ignoring malformed message event", "connection", string(c.Conn))
		return
	}

	text := c.Text
	if l.censor != nil {
		text = l.censor(text)
	}

	l.router.Route(ctx, domain.Message{
		SenderRole: identity.Role,
		SenderID:   identity.UserID,
		SeekerID:   seekerID,
		Text:       text,
		CreatedAt:  c.CreatedAt,
	})
}

func (l *Lifecycle) handleEndChat(ctx context.Context, c domain.EndChatCommand) {
	identity, ok := l.registry.IdentityOf(c.Conn)
	if !ok {
		return
	}

	seekerID := c.SeekerID
	if identity.Role == domain.RoleSeeker {
		seekerID = identity.UserID
	}

	responderID, released := l.matcher.EndPairing(seekerID)
	if !released {
		return
	}
	l.log.Info(fmt.Sprintf("Conversation of seeker %s ended", seekerID))

	ended := event.CounterpartDisconnected{SeekerID: seekerID}
	l.notifyUser(seekerID, ended)
	l.notifyUser(responderID, ended)
}

// notifyUser forwards a notification to the user's live connection, if any.
// Callers hold l.mu; a missing or saturated sink means a counted drop.
func (l *Lifecycle) notifyUser(userID string, n event.Notification) {
	sink, ok := l.registry.SinkForUser(userID)
	if !ok {
		l.monitor.IncrMessagesDropped()
		return
	}
	if err := sink.Consume(context.Background(), n); err != nil {
		l.monitor.IncrMessagesDropped()
	}
}

func (l *Lifecycle) notifyConn(ctx context.Context, conn domain.ConnectionID, n event.Notification) {
	sink, ok := l.registry.SinkOf(conn)
	if !ok {
		return
	}
	if err := sink.Consume(ctx, n); err != nil {
		l.monitor.IncrMessagesDropped()
	}
}

// Gauges reports the instantaneous state for the monitoring refresh loop.
func (l *Lifecycle) Gauges() observability.Gauges {
	l.mu.Lock()
	defer l.mu.Unlock()
	return observability.Gauges{
		ConnectionsOpen:  l.registry.Size(),
		Identified:       l.registry.Identified(),
		RespondersOnline: l.table.Len(),
		ActivePairings:   l.table.Pairings(),
	}
}

// AssignmentSnapshot exposes the current pairings for the operator console.
func (l *Lifecycle) AssignmentSnapshot() map[string][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.table.Snapshot()
}
