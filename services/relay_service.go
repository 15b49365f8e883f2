package services

import (
	"support-relay/contract"
	"support-relay/domain"
	"support-relay/repositories"
	"support-relay/runtime"
)

type IRelayService interface {
	Connect(conn domain.ConnectionID, sink contract.EventSink)
	Disconnect(conn domain.ConnectionID)
	Dispatch(cmd domain.Command)
	Transcript(seekerID string, cursor *string) ([]repositories.StoredMessage, *string, error)
	AssignmentSnapshot() map[string][]string
}

// RelayService is the thin seam between the transport layer and the relay
// core; it adds conversation-history reads on top of the live event surface.
type RelayService struct {
	lifecycle     *runtime.Lifecycle
	conversations repositories.IConversationRepository
}

func NewRelayService(lifecycle *runtime.Lifecycle,
	conversations repositories.IConversationRepository) *RelayService {
	return &RelayService{lifecycle: lifecycle, conversations: conversations}
}

func (s *RelayService) Connect(conn domain.ConnectionID, sink contract.EventSink) {
	s.lifecycle.Connect(conn, sink)
}

func (s *RelayService) Disconnect(conn domain.ConnectionID) {
	s.lifecycle.Disconnect(conn)
}

func (s *RelayService) Dispatch(cmd domain.Command) {
	s.lifecycle.Dispatch(cmd)
}

func (s *RelayService) Transcript(seekerID string, cursor *string) ([]repositories.StoredMessage, *string, error) {
	return s.conversations.Transcript(seekerID, cursor)
}

func (s *RelayService) AssignmentSnapshot() map[string][]string {
	return s.lifecycle.AssignmentSnapshot()
}
