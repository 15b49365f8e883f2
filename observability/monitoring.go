// Package observability aggregates relay telemetry: traffic counters kept on
// atomics, gauges pulled from the lifecycle, and process-level metrics.
package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// RelayStats aggregates all metrics exposed to operators.
type RelayStats struct {
	// Live gauges pulled from the lifecycle boundary.
	ConnectionsOpen  int `json:"connections_open"`
	Identified       int `json:"identified"`
	RespondersOnline int `json:"responders_online"`
	ActivePairings   int `json:"active_pairings"`

	// Cumulative traffic counters.
	ConnectionsTotal uint64 `json:"connections_total"`
	PairingsCreated  uint64 `json:"pairings_created"`
	PairingsRefused  uint64 `json:"pairings_refused"`
	MessagesRelayed  uint64 `json:"messages_relayed"`
	MessagesDropped  uint64 `json:"messages_dropped"`
	TranscriptDrops  uint64 `json:"transcript_drops"`

	// Process metrics.
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	RssMb      uint64  `json:"rss_mb"`
	CpuPercent float64 `json:"cpu_percent"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Gauges is the instantaneous view the lifecycle exposes to the monitor.
type Gauges struct {
	ConnectionsOpen  int
	Identified       int
	RespondersOnline int
	ActivePairings   int
}

// GaugeProvider is polled on every refresh; it must be cheap and must not
// be called while holding the monitor's own lock ordering concerns upward.
type GaugeProvider func() Gauges

// Monitor collects real-time telemetry for the relay process.
type Monitor struct {
	log    *slog.Logger
	mu     sync.RWMutex
	latest RelayStats
	gauges GaugeProvider
	proc   *process.Process

	// Atomic counters, incremented from inside the relay hot path.
	connectionsTotal uint64
	pairingsCreated  uint64
	pairingsRefused  uint64
	messagesRelayed  uint64
	messagesDropped  uint64
	transcriptDrops  uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	// Process metrics are best-effort: a nil handle only blanks RSS/CPU.
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process metrics unavailable", "error", err)
		proc = nil
	}
	return &Monitor{log: log, proc: proc}
}

// SetGaugeProvider wires the lifecycle's snapshot into the refresh loop.
func (m *Monitor) SetGaugeProvider(fn GaugeProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges = fn
}

func (m *Monitor) IncrConnections()     { atomic.AddUint64(&m.connectionsTotal, 1) }
func (m *Monitor) IncrPairingsCreated() { atomic.AddUint64(&m.pairingsCreated, 1) }
func (m *Monitor) IncrPairingsRefused() { atomic.AddUint64(&m.pairingsRefused, 1) }
func (m *Monitor) IncrMessagesRelayed() { atomic.AddUint64(&m.messagesRelayed, 1) }
func (m *Monitor) IncrMessagesDropped() { atomic.AddUint64(&m.messagesDropped, 1) }
func (m *Monitor) IncrTranscriptDrops() { atomic.AddUint64(&m.transcriptDrops, 1) }

// Listen refreshes the aggregated snapshot on a fixed interval until the
// context is cancelled. It is meant to run under the supervisor.
func (m *Monitor) Listen(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("Monitoring stopped")
			return nil
		case <-ticker.C:
			m.refresh()
		}
	}
}

func (m *Monitor) refresh() {
	stats := RelayStats{
		ConnectionsTotal: atomic.LoadUint64(&m.connectionsTotal),
		PairingsCreated:  atomic.LoadUint64(&m.pairingsCreated),
		PairingsRefused:  atomic.LoadUint64(&m.pairingsRefused),
		MessagesRelayed:  atomic.LoadUint64(&m.messagesRelayed),
		MessagesDropped:  atomic.LoadUint64(&m.messagesDropped),
		TranscriptDrops:  atomic.LoadUint64(&m.transcriptDrops),
		UpdatedAt:        time.Now().UTC(),
	}

	m.mu.RLock()
	gauges := m.gauges
	m.mu.RUnlock()
	if gauges != nil {
		g := gauges()
		stats.ConnectionsOpen = g.ConnectionsOpen
		stats.Identified = g.Identified
		stats.RespondersOnline = g.RespondersOnline
		stats.ActivePairings = g.ActivePairings
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.AllocMemMb = ms.Alloc / 1024 / 1024
	stats.NumGC = ms.NumGC

	if m.proc != nil {
		if memInfo, err := m.proc.MemoryInfo(); err == nil {
			stats.RssMb = memInfo.RSS / 1024 / 1024
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats.CpuPercent = cpu
		}
	}

	m.mu.Lock()
	m.latest = stats
	m.mu.Unlock()

	m.log.Debug("Stats refreshed",
		"connections_open", stats.ConnectionsOpen,
		"active_pairings", stats.ActivePairings,
		"messages_relayed", stats.MessagesRelayed,
		"messages_dropped", stats.MessagesDropped,
		"mem_mb", stats.AllocMemMb,
	)
}

// GetLatest returns the last refreshed snapshot.
func (m *Monitor) GetLatest() RelayStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}
