//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"support-relay/domain"
	"support-relay/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one connection's outbound channel. Consume must never block
// the caller: the relay invokes it while holding its state lock.
type EventSink interface {
	Consume(ctx context.Context, n event.Notification) error
}

// CommandHandler processes one inbound command to completion against the
// shared relay state before the next one begins.
type CommandHandler interface {
	Handle(ctx context.Context, cmd domain.Command)
}

// IdentityVerifier resolves presented credentials to a verified identity.
// It is always invoked before an identify command is built, never inside
// the relay's state boundary.
type IdentityVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// ConversationRecorder durably records a relayed message. It is invoked as a
// fire-and-forget side effect after a successful forward; a recorder failure
// must not block or fail the live delivery.
type ConversationRecorder interface {
	Record(msg domain.Message)
}

// TranscriptStore is the durable side of conversation persistence,
// implemented by the repository layer and drained by the recorder worker.
type TranscriptStore interface {
	StoreMessage(msg domain.Message) error
}

type IRelay interface {
	Connect(conn domain.ConnectionID, sink EventSink)
	Disconnect(conn domain.ConnectionID)
	Dispatch(cmd domain.Command)
}
