package runtime

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"support-relay/domain"
	"support-relay/domain/event"
	"support-relay/observability"
)

type relayFixture struct {
	lifecycle *Lifecycle
	sinks     map[domain.ConnectionID]*stubSink
}

func newRelayFixture() *relayFixture {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	monitor := observability.NewMonitor(log)
	registry := NewRegistry()
	table := NewAssignmentTable()
	router := NewRouter(log, registry, table, nil, monitor)
	return &relayFixture{
		lifecycle: NewLifecycle(log, registry, table, router, monitor, 16),
		sinks:     make(map[domain.ConnectionID]*stubSink),
	}
}

func (f *relayFixture) connect(conn domain.ConnectionID) *stubSink {
	sink := &stubSink{}
	f.sinks[conn] = sink
	f.lifecycle.Connect(conn, sink)
	return sink
}

func (f *relayFixture) identify(conn domain.ConnectionID, userID string, role domain.Role) {
	f.lifecycle.Handle(context.Background(), domain.IdentifyCommand{
		Conn:     conn,
		Identity: domain.Identity{UserID: userID, Role: role},
	})
}

func (f *relayFixture) handle(cmd domain.Command) {
	f.lifecycle.Handle(context.Background(), cmd)
}

func TestLifecycle_Pairing_Notifies_Both_Sides(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()

	// Given an identified responder and seeker
	responderSink := f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)
	seekerSink := f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)

	// When the seeker requests an anonymous pairing
	f.handle(domain.RequestPairingCommand{Conn: "conn-s", Anonymous: true})

	// Then the seeker learns its responder
	req.Len(seekerSink.events, 1)
	assigned, ok := seekerSink.events[0].(event.PairingAssigned)
	req.True(ok)
	req.Equal("R1", assigned.ResponderID)
	req.True(assigned.Anonymous)

	// And the responder learns its seeker with the same anonymity flag
	req.Len(responderSink.events, 1)
	assigned = responderSink.events[0].(event.PairingAssigned)
	req.Equal("S1", assigned.SeekerID)
	req.True(assigned.Anonymous)
}

func TestLifecycle_Duplicate_Pairing_Request_Fails(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()
	f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)
	seekerSink := f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)

	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})
	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	// The second request yields a failure notice, the first pairing survives
	req.Len(seekerSink.events, 2)
	_, ok := seekerSink.events[0].(event.PairingAssigned)
	req.True(ok)
	failed, ok := seekerSink.events[1].(event.PairingFailed)
	req.True(ok)
	req.NotEmpty(failed.Reason)
	req.Equal(map[string][]string{"R1": {"S1"}}, f.lifecycle.AssignmentSnapshot())
}

func TestLifecycle_No_Responder_Online(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()
	seekerSink := f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)

	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	req.Len(seekerSink.events, 1)
	_, ok := seekerSink.events[0].(event.PairingFailed)
	req.True(ok)
}

func TestLifecycle_Responder_Disconnect_Notifies_Its_Seekers(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()

	f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)

	sinkS1 := f.connect("conn-s1")
	f.identify("conn-s1", "S1", domain.RoleSeeker)
	f.handle(domain.RequestPairingCommand{Conn: "conn-s1"})

	sinkS2 := f.connect("conn-s2")
	f.identify("conn-s2", "S2", domain.RoleSeeker)
	f.handle(domain.RequestPairingCommand{Conn: "conn-s2"})

	// When the responder's connection closes
	f.lifecycle.Disconnect("conn-r")

	// Then every seeker it held is told its conversation ended
	req.Len(sinkS1.events, 2)
	ended, ok := sinkS1.events[1].(event.CounterpartDisconnected)
	req.True(ok)
	req.Equal("S1", ended.SeekerID)

	req.Len(sinkS2.events, 2)
	ended, ok = sinkS2.events[1].(event.CounterpartDisconnected)
	req.True(ok)
	req.Equal("S2", ended.SeekerID)

	// And its assignment entry is fully gone
	req.Empty(f.lifecycle.AssignmentSnapshot())
}

func TestLifecycle_Seeker_Disconnect_Releases_Silently(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()

	responderSink := f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)
	f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)
	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	f.lifecycle.Disconnect("conn-s")

	// The pairing is released, the responder keeps an empty entry and gets
	// no disconnect notice beyond the original assignment
	req.Equal(map[string][]string{"R1": {}}, f.lifecycle.AssignmentSnapshot())
	req.Len(responderSink.events, 1)
	_, ok := responderSink.events[0].(event.PairingAssigned)
	req.True(ok)
}

func TestLifecycle_Disconnect_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()
	f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)

	f.lifecycle.Disconnect("conn-s")
	f.lifecycle.Disconnect("conn-s")

	gauges := f.lifecycle.Gauges()
	req.Equal(0, gauges.ConnectionsOpen)
	req.Equal(0, gauges.Identified)
}

func TestLifecycle_Stale_Handle_Disconnect_Keeps_Replacement(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()

	// Given a responder identified twice, once per connection
	f.connect("conn-old")
	f.identify("conn-old", "R1", domain.RoleResponder)
	f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)
	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	f.connect("conn-new")
	f.identify("conn-new", "R1", domain.RoleResponder)

	// When the stale handle finally closes
	f.lifecycle.Disconnect("conn-old")

	// Then the live binding and the pairing survive
	req.Equal(map[string][]string{"R1": {"S1"}}, f.lifecycle.AssignmentSnapshot())
}

func TestLifecycle_Reidentify_As_Different_Responder_Releases_Previous_Entry(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()

	// Given responder R1 holding a paired seeker
	f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)
	seekerSink := f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)
	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	// When the same connection identifies again as a different responder
	f.identify("conn-r", "R2", domain.RoleResponder)

	// Then R1's entry is gone, its seeker is notified and free to pair again
	req.Equal(map[string][]string{"R2": {}}, f.lifecycle.AssignmentSnapshot())
	req.Len(seekerSink.events, 2)
	ended, ok := seekerSink.events[1].(event.CounterpartDisconnected)
	req.True(ok)
	req.Equal("S1", ended.SeekerID)

	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})
	req.Equal(map[string][]string{"R2": {"S1"}}, f.lifecycle.AssignmentSnapshot())

	// And the eventual disconnect removes the replacement identity's entry
	f.lifecycle.Disconnect("conn-r")
	req.Empty(f.lifecycle.AssignmentSnapshot())
}

func TestLifecycle_Reidentify_As_Different_Seeker_Releases_Pairing(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()

	f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)
	f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)
	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	// When the seeker's connection identifies again as another seeker
	f.identify("conn-s", "S2", domain.RoleSeeker)

	// Then S1's pairing is released, never stuck against an absent user
	req.Equal(map[string][]string{"R1": {}}, f.lifecycle.AssignmentSnapshot())
}

func TestLifecycle_Reidentify_Same_User_Keeps_State(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()

	f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)
	f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)
	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	// A token refresh for the same user must not disturb the pairing
	f.identify("conn-r", "R1", domain.RoleResponder)

	req.Equal(map[string][]string{"R1": {"S1"}}, f.lifecycle.AssignmentSnapshot())
}

func TestLifecycle_Message_From_Seeker_Forced_Into_Own_Conversation(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()

	responderSink := f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)
	f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)
	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	// When the seeker claims another seeker's conversation id
	f.handle(domain.SendMessageCommand{Conn: "conn-s", SeekerID: "S2", Text: "hi"})

	// Then the message is routed inside its own conversation regardless
	req.Len(responderSink.events, 2)
	received, ok := responderSink.events[1].(event.MessageReceived)
	req.True(ok)
	req.Equal("S1", received.SeekerID)
}

func TestLifecycle_Censor_Masks_Before_Routing(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()
	f.lifecycle.SetCensor(func(s string) string { return strings.ReplaceAll(s, "idiot", "*****") })

	responderSink := f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)
	f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)
	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	f.handle(domain.SendMessageCommand{Conn: "conn-s", Text: "you idiot"})

	received := responderSink.events[1].(event.MessageReceived)
	req.Equal("you *****", received.Text)
}

func TestLifecycle_EndChat_Notifies_Both_Parties(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()

	responderSink := f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)
	seekerSink := f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)
	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	f.handle(domain.EndChatCommand{Conn: "conn-s"})

	req.Len(seekerSink.events, 2)
	_, ok := seekerSink.events[1].(event.CounterpartDisconnected)
	req.True(ok)
	req.Len(responderSink.events, 2)
	_, ok = responderSink.events[1].(event.CounterpartDisconnected)
	req.True(ok)
	req.Equal(map[string][]string{"R1": {}}, f.lifecycle.AssignmentSnapshot())
}

func TestLifecycle_Ignores_Events_After_Disconnect(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()
	f.connect("conn-r")
	f.identify("conn-r", "R1", domain.RoleResponder)
	seekerSink := f.connect("conn-s")
	f.identify("conn-s", "S1", domain.RoleSeeker)

	f.lifecycle.Disconnect("conn-s")
	f.handle(domain.RequestPairingCommand{Conn: "conn-s"})

	req.Empty(seekerSink.events)
	req.Empty(f.lifecycle.AssignmentSnapshot()["R1"])
}

func TestLifecycle_Rejects_Malformed_Identify(t *testing.T) {
	req := require.New(t)
	f := newRelayFixture()
	f.connect("conn-1")

	f.identify("conn-1", "", domain.RoleSeeker)
	f.identify("conn-1", "U1", domain.Role("admin"))

	req.Equal(0, f.lifecycle.Gauges().Identified)
}
