package workers

import (
	"context"
	"log/slog"

	"support-relay/contract"
	"support-relay/domain"
	"support-relay/observability"
)

var (
	_ contract.Worker               = (*RecorderWorker)(nil)
	_ contract.ConversationRecorder = (*RecorderQueue)(nil)
)

// RecorderQueue is the fire-and-forget producer side of transcript
// persistence. Record never blocks: the router calls it while holding the
// relay lock, so a saturated queue drops and counts instead of stalling a
// live forward.
type RecorderQueue struct {
	messages chan domain.Message
	monitor  *observability.Monitor
}

func NewRecorderQueue(bufferSize int, monitor *observability.Monitor) *RecorderQueue {
	return &RecorderQueue{
		messages: make(chan domain.Message, bufferSize),
		monitor:  monitor,
	}
}

func (q *RecorderQueue) Record(msg domain.Message) {
	select {
	case q.messages <- msg:
	default:
		q.monitor.IncrTranscriptDrops()
	}
}

// RecorderWorker drains the queue into the durable store. Store failures are
// logged and counted; they never propagate back to the relay.
type RecorderWorker struct {
	queue *RecorderQueue
	store contract.TranscriptStore
	log   *slog.Logger
}

func NewRecorderWorker(queue *RecorderQueue, store contract.TranscriptStore,
	log *slog.Logger) *RecorderWorker {
	return &RecorderWorker{queue: queue, store: store, log: log}
}

func (w *RecorderWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping recorder worker")
			return ctx.Err()
		case msg := <-w.queue.messages:
			if err := w.store.StoreMessage(msg); err != nil {
				w.queue.monitor.IncrTranscriptDrops()
				w.log.Error("Failed to persist message",
					"seeker_id", msg.SeekerID, "error", err)
			}
		}
	}
}
