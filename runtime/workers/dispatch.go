package workers

import (
	"context"
	"log/slog"

	"support-relay/contract"
	"support-relay/domain"
)

// Static assertion: the dispatch worker must be supervisable.
var _ contract.Worker = (*DispatchWorker)(nil)

// DispatchWorker is the single event-processing stream of the relay: it
// drains the inbound command queue and hands each command to the handler,
// one at a time, to completion. Exactly one instance must run; the handler's
// own lock covers the synchronous Connect/Disconnect paths, but command
// ordering comes from here.
type DispatchWorker struct {
	commands <-chan domain.Command
	handler  contract.CommandHandler
	log      *slog.Logger
}

func NewDispatchWorker(commands <-chan domain.Command,
	handler contract.CommandHandler, log *slog.Logger) *DispatchWorker {
	return &DispatchWorker{commands: commands, handler: handler, log: log}
}

func (w *DispatchWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping dispatch worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Command channel closed")
				return nil
			}
			w.handler.Handle(ctx, cmd)
		}
	}
}
