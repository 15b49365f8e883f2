package runtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-relay/domain"
	"support-relay/domain/event"
	"support-relay/observability"
)

type stubRecorder struct {
	recorded []domain.Message
}

func (r *stubRecorder) Record(msg domain.Message) {
	r.recorded = append(r.recorded, msg)
}

func newTestRouter(recorder *stubRecorder) (*Router, *Registry, *AssignmentTable) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := NewRegistry()
	table := NewAssignmentTable()
	return NewRouter(log, registry, table, recorder, observability.NewMonitor(log)), registry, table
}

func TestRouter_Seeker_Message_Reaches_Holder(t *testing.T) {
	req := require.New(t)
	recorder := &stubRecorder{}
	router, registry, table := newTestRouter(recorder)

	// Given S1 paired with R1, both live
	responderSink := &stubSink{}
	registry.Track("conn-r", responderSink)
	registry.Bind("conn-r", domain.Identity{UserID: "R1", Role: domain.RoleResponder})
	table.AddResponder("R1")
	table.Assign("R1", "S1")

	// When S1 sends a message
	router.Route(context.Background(), domain.Message{
		SenderRole: domain.RoleSeeker,
		SenderID:   "S1",
		SeekerID:   "S1",
		Text:       "hello",
		CreatedAt:  time.Now().UTC(),
	})

	// Then the responder's sink receives it and the transcript records it
	req.Len(responderSink.events, 1)
	received, ok := responderSink.events[0].(event.MessageReceived)
	req.True(ok)
	req.Equal("hello", received.Text)
	req.Equal(domain.RoleSeeker, received.SenderRole)
	req.Equal("S1", received.SeekerID)
	req.Len(recorder.recorded, 1)
}

func TestRouter_Responder_Message_Reaches_Seeker(t *testing.T) {
	req := require.New(t)
	recorder := &stubRecorder{}
	router, registry, _ := newTestRouter(recorder)

	seekerSink := &stubSink{}
	registry.Track("conn-s", seekerSink)
	registry.Bind("conn-s", domain.Identity{UserID: "S1", Role: domain.RoleSeeker})

	router.Route(context.Background(), domain.Message{
		SenderRole: domain.RoleResponder,
		SenderID:   "R1",
		SeekerID:   "S1",
		Text:       "how can I help?",
	})

	req.Len(seekerSink.events, 1)
	received := seekerSink.events[0].(event.MessageReceived)
	req.Equal("how can I help?", received.Text)
	// Missing id and timestamp are filled at routing time
	req.NotEmpty(received.ID)
	req.False(received.At.IsZero())
}

func TestRouter_Drops_When_Destination_Not_Live(t *testing.T) {
	req := require.New(t)
	recorder := &stubRecorder{}
	router, _, table := newTestRouter(recorder)

	// Given a pairing whose responder has no live connection
	table.AddResponder("R1")
	table.Assign("R1", "S1")

	router.Route(context.Background(), domain.Message{
		SenderRole: domain.RoleSeeker,
		SenderID:   "S1",
		SeekerID:   "S1",
		Text:       "anyone?",
	})

	// Then nothing is recorded: a dropped message never reaches the transcript
	req.Empty(recorder.recorded)
}

func TestRouter_Drops_Unpaired_Seeker_Message(t *testing.T) {
	req := require.New(t)
	recorder := &stubRecorder{}
	router, registry, _ := newTestRouter(recorder)

	responderSink := &stubSink{}
	registry.Track("conn-r", responderSink)
	registry.Bind("conn-r", domain.Identity{UserID: "R1", Role: domain.RoleResponder})

	router.Route(context.Background(), domain.Message{
		SenderRole: domain.RoleSeeker,
		SenderID:   "S1",
		SeekerID:   "S1",
		Text:       "hello?",
	})

	req.Empty(responderSink.events)
	req.Empty(recorder.recorded)
}
