package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/metrics"
)

const (
	DefaultQueueCap      = 50000
	DefaultBatchSize     = 1000
	DefaultFlushInterval = 100 * time.Millisecond
	DefaultSlowDelivery  = 150 * time.Millisecond

	readyBuffer = 64
)

// Destination receives batches of events. The event store and every remote
// display surface are destinations.
type Destination interface {
	Deliver(events []logevent.LogEvent) error
}

// DestinationFunc adapts a function to Destination.
type DestinationFunc func(events []logevent.LogEvent) error

// Deliver calls f(events).
func (f DestinationFunc) Deliver(events []logevent.LogEvent) error {
	return f(events)
}

// Options tune the dispatcher. Zero values use the defaults.
type Options struct {
	QueueCap      int
	BatchSize     int
	FlushInterval time.Duration
	SlowDelivery  time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueCap <= 0 {
		o.QueueCap = DefaultQueueCap
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	if o.SlowDelivery <= 0 {
		o.SlowDelivery = DefaultSlowDelivery
	}
	return o
}

// DestinationStats describes one destination.
type DestinationStats struct {
	Name      string `json:"name"`
	Pending   int    `json:"pending"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
	Slow      uint64 `json:"slow"`
}

// Stats is a point-in-time view of the dispatcher.
type Stats struct {
	QueueLen     int                `json:"queue_len"`
	QueueCap     int                `json:"queue_cap"`
	Enqueued     uint64             `json:"enqueued"`
	Dropped      uint64             `json:"dropped"`
	Destinations []DestinationStats `json:"destinations"`
}

type destination struct {
	name      string
	dst       Destination
	cursor    uint64 // sequence number of the next event to deliver
	delivered uint64
	failed    uint64
	slow      uint64
}

// Dispatcher buffers events from any number of producers in one bounded
// queue and hands them to every registered destination in batches.
//
// Each destination has its own cursor over the queue, so every destination
// sees the full event stream. Entries are released once all destinations
// have passed them, or dropped oldest-first when the queue overflows.
type Dispatcher struct {
	opts    Options
	logger  *slog.Logger
	metrics metrics.Sink

	mu       sync.Mutex
	queue    []logevent.LogEvent
	base     uint64 // sequence number of queue[0]
	enqueued uint64
	dropped  uint64
	dests    []*destination

	flushMu sync.Mutex
	ready   chan string
	probes  chan func()
}

// New creates a dispatcher with no destinations.
func New(opts Options, logger *slog.Logger, sink metrics.Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		opts:    opts.withDefaults(),
		logger:  logger,
		metrics: metrics.OrNop(sink),
		ready:   make(chan string, readyBuffer),
		probes:  make(chan func(), 1),
	}
}

// Enqueue appends events to the queue. It never blocks on destinations and
// never fails; when the queue exceeds its cap the oldest entries are dropped.
// Safe for concurrent use by any number of producers.
func (d *Dispatcher) Enqueue(events []logevent.LogEvent) {
	if len(events) == 0 {
		return
	}
	d.mu.Lock()
	d.queue = append(d.queue, events...)
	d.enqueued += uint64(len(events))
	over := len(d.queue) - d.opts.QueueCap
	if over > 0 {
		d.queue = d.queue[over:]
		d.base += uint64(over)
		d.dropped += uint64(over)
		for _, dest := range d.dests {
			if dest.cursor < d.base {
				dest.cursor = d.base
			}
		}
	}
	depth := len(d.queue)
	d.mu.Unlock()

	d.metrics.Count(metrics.EventsEnqueued, len(events))
	if over > 0 {
		d.metrics.Count(metrics.EventsDropped, over)
	}
	d.metrics.Gauge(metrics.QueueDepth, float64(depth))
}

// AddDestination registers dst under name. The destination starts with every
// event still queued. Adding a name twice is an error.
func (d *Dispatcher) AddDestination(name string, dst Destination) error {
	if dst == nil {
		return fmt.Errorf("add destination %q: nil destination", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.find(name) >= 0 {
		return fmt.Errorf("add destination %q: already registered", name)
	}
	d.dests = append(d.dests, &destination{name: name, dst: dst, cursor: d.base})
	return nil
}

// RemoveDestination unregisters name. Unknown names are ignored.
func (d *Dispatcher) RemoveDestination(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.find(name); i >= 0 {
		d.dests = slices.Delete(d.dests, i, i+1)
		d.compact()
	}
}

// Ready requests an immediate flush of the named destination from Run.
// It never blocks; if a request is already pending it is dropped.
func (d *Dispatcher) Ready(name string) {
	select {
	case d.ready <- name:
	default:
	}
}

// Post queues fn to run on the Run goroutine between flushes. It never
// blocks and reports false while an earlier fn is still waiting.
func (d *Dispatcher) Post(fn func()) bool {
	select {
	case d.probes <- fn:
		return true
	default:
		return false
	}
}

// Flush delivers up to BatchSize queued events to every destination, in
// queue order. A destination that fails or panics is skipped; the others
// still receive their batch.
func (d *Dispatcher) Flush() {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	names := make([]string, len(d.dests))
	for i, dest := range d.dests {
		names[i] = dest.name
	}
	d.mu.Unlock()

	for _, name := range names {
		d.flushDestination(name)
	}
}

// FlushDestination delivers one batch to the named destination only.
func (d *Dispatcher) FlushDestination(name string) {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()
	d.flushDestination(name)
}

func (d *Dispatcher) flushDestination(name string) {
	d.mu.Lock()
	i := d.find(name)
	if i < 0 {
		d.mu.Unlock()
		return
	}
	dest := d.dests[i]
	start := int(dest.cursor - d.base)
	end := min(start+d.opts.BatchSize, len(d.queue))
	if start >= end {
		d.mu.Unlock()
		return
	}
	batch := slices.Clone(d.queue[start:end])
	dest.cursor += uint64(len(batch))
	d.compact()
	depth := len(d.queue)
	d.mu.Unlock()

	d.metrics.Gauge(metrics.QueueDepth, float64(depth))

	started := time.Now()
	err := deliver(dest.dst, batch)
	elapsed := time.Since(started)
	d.metrics.Observe(metrics.FlushDuration, elapsed)

	slow := elapsed > d.opts.SlowDelivery
	if slow {
		d.metrics.Count(metrics.SlowDeliveries, 1)
		d.logger.Warn("slow delivery",
			"destination", name,
			"events", len(batch),
			"elapsed", elapsed,
			"threshold", d.opts.SlowDelivery,
		)
	}
	if err != nil {
		d.metrics.Count(metrics.DeliveryFailures, 1)
		d.logger.Warn("delivery failed", "destination", name, "events", len(batch), "error", err)
	} else {
		d.metrics.Count(metrics.EventsDelivered, len(batch))
	}

	d.mu.Lock()
	if err != nil {
		dest.failed++
	} else {
		dest.delivered += uint64(len(batch))
	}
	if slow {
		dest.slow++
	}
	d.mu.Unlock()
}

// Run flushes on the configured interval and on Ready requests until ctx is
// cancelled, then performs one last flush. Functions given to Post run here
// too, so a delivery that blocks Run also delays them.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Flush()
			return nil
		case <-ticker.C:
			d.Flush()
		case name := <-d.ready:
			d.FlushDestination(name)
		case fn := <-d.probes:
			fn()
		}
	}
}

// Stats returns queue and per-destination counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := Stats{
		QueueLen:     len(d.queue),
		QueueCap:     d.opts.QueueCap,
		Enqueued:     d.enqueued,
		Dropped:      d.dropped,
		Destinations: make([]DestinationStats, len(d.dests)),
	}
	tail := d.base + uint64(len(d.queue))
	for i, dest := range d.dests {
		st.Destinations[i] = DestinationStats{
			Name:      dest.name,
			Pending:   int(tail - dest.cursor),
			Delivered: dest.delivered,
			Failed:    dest.failed,
			Slow:      dest.slow,
		}
	}
	return st
}

func (d *Dispatcher) find(name string) int {
	return slices.IndexFunc(d.dests, func(dest *destination) bool { return dest.name == name })
}

// compact releases queue entries every destination has already received.
// With no destinations the queue is kept for whoever registers next.
// Callers hold d.mu.
func (d *Dispatcher) compact() {
	if len(d.dests) == 0 {
		return
	}
	lowest := d.dests[0].cursor
	for _, dest := range d.dests[1:] {
		lowest = min(lowest, dest.cursor)
	}
	n := int(lowest - d.base)
	if n <= 0 {
		return
	}
	d.queue = d.queue[n:]
	d.base = lowest
}

func deliver(dst Destination, batch []logevent.LogEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("destination panicked: %v", r)
		}
	}()
	return dst.Deliver(batch)
}
