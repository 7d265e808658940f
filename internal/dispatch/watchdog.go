package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/logdeck/internal/metrics"
)

const (
	DefaultLivenessInterval = time.Second
	DefaultStallMultiple    = 2.0
)

// WatchdogStats summarizes observed stalls.
type WatchdogStats struct {
	Stalled    bool          `json:"stalled"`
	Stalls     uint64        `json:"stalls"`
	Recoveries uint64        `json:"recoveries"`
	LastStall  time.Duration `json:"last_stall"`
	LastCheck  time.Time     `json:"last_check"`
}

// Host is an event loop that can run a probe on its own goroutine. Post
// must not block; it reports false when the probe could not be queued.
type Host interface {
	Post(fn func()) bool
}

// Watchdog detects when a monitored loop stops servicing its periodic
// checks on time. Each tick posts a probe to the host loop; the probe runs
// Check when the loop gets to it. A gap between checks longer than
// StallMultiple×Interval is recorded as a stall and the next on-time check
// records the recovery. It only reports, it never intervenes.
type Watchdog struct {
	interval time.Duration
	limit    time.Duration
	now      func() time.Time
	logger   *slog.Logger
	metrics  metrics.Sink

	hostMu sync.Mutex
	host   Host

	mu    sync.Mutex
	stats WatchdogStats
}

// NewWatchdog returns a watchdog probing every interval. Non-positive
// arguments use the defaults.
func NewWatchdog(interval time.Duration, stallMultiple float64, logger *slog.Logger, sink metrics.Sink) *Watchdog {
	if interval <= 0 {
		interval = DefaultLivenessInterval
	}
	if stallMultiple <= 1 {
		stallMultiple = DefaultStallMultiple
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		interval: interval,
		limit:    time.Duration(float64(interval) * stallMultiple),
		now:      time.Now,
		logger:   logger,
		metrics:  metrics.OrNop(sink),
	}
}

// Monitor routes probes through host. Without a host, probes run on the
// watchdog's own goroutine and only whole-process pauses are detected.
func (w *Watchdog) Monitor(host Host) {
	w.hostMu.Lock()
	w.host = host
	w.hostMu.Unlock()
}

// Check records a probe taken at now and reports whether the gap since the
// previous probe was a stall.
func (w *Watchdog) Check(now time.Time) bool {
	w.mu.Lock()
	prev := w.stats.LastCheck
	w.stats.LastCheck = now
	if prev.IsZero() {
		w.mu.Unlock()
		return false
	}

	gap := now.Sub(prev)
	if gap > w.limit {
		w.stats.Stalled = true
		w.stats.Stalls++
		w.stats.LastStall = gap
		w.mu.Unlock()

		w.metrics.Count(metrics.Stalls, 1)
		w.metrics.Observe(metrics.StallDuration, gap)
		w.logger.Warn("event loop stalled", "gap", gap, "expected", w.interval)
		return true
	}

	recovered := w.stats.Stalled
	w.stats.Stalled = false
	if recovered {
		w.stats.Recoveries++
	}
	w.mu.Unlock()

	if recovered {
		w.metrics.Count(metrics.Recoveries, 1)
		w.logger.Info("event loop recovered", "gap", gap)
	}
	return false
}

// Run probes on the configured interval until ctx is cancelled. A panic
// inside a probe is logged and probing continues on the next tick. While the
// host has not run the previous probe, no new one is posted.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.post()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.post()
		}
	}
}

func (w *Watchdog) post() {
	w.hostMu.Lock()
	host := w.host
	w.hostMu.Unlock()
	if host == nil {
		w.probe()
		return
	}
	host.Post(w.probe)
}

func (w *Watchdog) probe() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("liveness check panicked", "panic", r)
		}
	}()
	w.Check(w.now())
}

// Stats returns the current stall counters.
func (w *Watchdog) Stats() WatchdogStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
