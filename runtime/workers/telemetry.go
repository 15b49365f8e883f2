package workers

import (
	"context"
	"time"

	"support-relay/contract"
	"support-relay/observability"
)

var _ contract.Worker = (*TelemetryWorker)(nil)

// TelemetryWorker keeps the monitoring snapshot fresh while the process runs.
type TelemetryWorker struct {
	monitor  *observability.Monitor
	interval time.Duration
}

func NewTelemetryWorker(monitor *observability.Monitor, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{monitor: monitor, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	return w.monitor.Listen(ctx, w.interval)
}
