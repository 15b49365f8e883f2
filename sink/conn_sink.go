// Package sink provides the per-connection outbound channel between the
// relay core and the transport write loop.
package sink

import (
	"context"
	"fmt"

	"support-relay/domain/event"
)

// ErrSaturated reports a full outbound buffer; the caller counts the drop.
var ErrSaturated = fmt.Errorf("connection sink saturated")

// ConnSink buffers notifications for one connection. The transport's write
// loop owns the receiving side; the relay never blocks on a slow client.
type ConnSink struct {
	Events chan event.Notification
}

func NewConnSink(bufferSize int) *ConnSink {
	return &ConnSink{Events: make(chan event.Notification, bufferSize)}
}

// Consume is called by the relay while holding its state lock, so it must
// return immediately: deliver, observe cancellation, or drop.
func (s *ConnSink) Consume(ctx context.Context, n event.Notification) error {
	select {
	case s.Events <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrSaturated
	}
}
