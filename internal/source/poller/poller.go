package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/logdeck/internal/metrics"
	"github.com/five82/logdeck/internal/source"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultLimit        = 1000
	maxBackoff          = 30 * time.Second
)

// Poller periodically fetches new events from an HTTP endpoint and enqueues
// them. Consecutive failures back off exponentially up to maxBackoff.
type Poller struct {
	name     string
	fetcher  Fetcher
	interval time.Duration
	limit    int
	gate     *source.Gate
	logger   *slog.Logger
	metrics  metrics.Sink
	life     source.Lifecycle

	cursor uint64
}

var _ source.Producer = (*Poller)(nil)

// New creates a poller that forwards to sink. A non-positive interval uses
// the default of two seconds.
func New(name string, fetcher Fetcher, interval time.Duration, sink source.Enqueuer, logger *slog.Logger, m metrics.Sink) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		name:     name,
		fetcher:  fetcher,
		interval: interval,
		limit:    defaultLimit,
		gate:     source.NewGate(sink, name),
		logger:   logger,
		metrics:  metrics.OrNop(m),
	}
}

// Name identifies the poller.
func (p *Poller) Name() string { return p.name }

// Start launches the poll loop and returns immediately.
func (p *Poller) Start(ctx context.Context) error {
	return p.life.Go(ctx, p.run)
}

// Stop halts polling. No events are enqueued after it returns.
func (p *Poller) Stop() {
	p.gate.Close()
	p.life.Stop()
}

func (p *Poller) run(ctx context.Context) {
	failures := 0
	for {
		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			p.metrics.Count(metrics.ProducerErrors, 1)
			p.logger.Warn("poll failed", "producer", p.name, "failures", failures, "error", err)
		} else {
			failures = 0
		}

		timer := time.NewTimer(calculateBackoff(failures, p.interval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	batch, err := p.fetcher.Fetch(ctx, Query{Since: p.cursor, Limit: p.limit})
	if err != nil {
		return err
	}
	if batch.Malformed > 0 {
		p.metrics.Count(metrics.ProducerDecodeErrs, batch.Malformed)
		p.logger.Debug("skipped malformed events", "producer", p.name, "count", batch.Malformed)
	}
	if batch.Next > 0 {
		p.cursor = batch.Next
	}
	p.gate.Enqueue(batch.Events)
	return nil
}

// calculateBackoff returns the wait before the next poll: the base interval
// doubled once per consecutive failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	wait := base
	for i := 0; i < failures; i++ {
		wait *= 2
		if wait >= maxBackoff {
			return maxBackoff
		}
	}
	return wait
}
