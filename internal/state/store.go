package state

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/metrics"
	"github.com/five82/logdeck/internal/observer"
)

const (
	DefaultMaxEntries    = 100000
	DefaultTrimThreshold = 0.95
	DefaultTrimTarget    = 0.9

	// MinMaxEntries is the smallest cap that leaves room for one event
	// after a trim.
	MinMaxEntries = 2
)

// Options bound the store.
type Options struct {
	MaxEntries    int     // hard cap on stored events
	TrimThreshold float64 // fraction of MaxEntries that triggers a proactive trim
	TrimTarget    float64 // fraction of the trim threshold kept after a trim
}

func (o Options) withDefaults() Options {
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.MaxEntries < MinMaxEntries {
		o.MaxEntries = MinMaxEntries
	}
	if o.TrimThreshold <= 0 || o.TrimThreshold > 1 {
		o.TrimThreshold = DefaultTrimThreshold
	}
	if o.TrimTarget <= 0 || o.TrimTarget >= 1 {
		o.TrimTarget = DefaultTrimTarget
	}
	return o
}

// Stats is a point-in-time view of store counters.
type Stats struct {
	Len         int
	MaxEntries  int
	Threshold   int
	Watermark   int
	Admitted    uint64
	Evicted     uint64
	Resets      uint64
	LastUpdated time.Time
}

// Store is the bounded, insertion-ordered event collection behind the
// display. Mutations and their notifications are serialized, so listeners
// observe them in call order. Listeners may read the store but must not call
// Append, Deliver, or Reset from inside a notification.
type Store struct {
	opMu sync.Mutex

	mu          sync.RWMutex
	events      []logevent.LogEvent
	maxEntries  int
	threshold   int
	watermark   int
	admitted    uint64
	evicted     uint64
	resets      uint64
	lastUpdated time.Time

	added   *observer.List[[]logevent.LogEvent]
	cleared *observer.List[struct{}]
	metrics metrics.Sink
}

// New creates an empty store.
func New(opts Options, logger *slog.Logger, sink metrics.Sink) *Store {
	opts = opts.withDefaults()
	sink = metrics.OrNop(sink)
	onPanic := func() { sink.Count(metrics.ListenerPanics, 1) }

	threshold := int(float64(opts.MaxEntries) * opts.TrimThreshold)
	if threshold < MinMaxEntries {
		threshold = MinMaxEntries
	}
	watermark := int(float64(threshold) * opts.TrimTarget)
	if watermark >= threshold {
		watermark = threshold - 1
	}
	if watermark < 1 {
		watermark = 1
	}

	return &Store{
		maxEntries: opts.MaxEntries,
		threshold:  threshold,
		watermark:  watermark,
		added:      observer.New[[]logevent.LogEvent]("store-added", logger, onPanic),
		cleared:    observer.New[struct{}]("store-reset", logger, onPanic),
		metrics:    sink,
	}
}

// OnAdded registers fn for "events added" notifications. fn receives the
// events admitted by one Append call, in order.
func (s *Store) OnAdded(fn func([]logevent.LogEvent)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return s.added.Subscribe(fn)
}

// OnReset registers fn for "store reset" notifications.
func (s *Store) OnReset(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return s.cleared.Subscribe(func(struct{}) { fn() })
}

// Append admits events in order. When the result exceeds MaxEntries the
// oldest entries are evicted; whenever the length reaches the trim threshold
// the oldest entries are evicted down to the watermark. Exactly one
// notification is emitted carrying the appended events still present.
func (s *Store) Append(events []logevent.LogEvent) {
	if len(events) == 0 {
		return
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.events = append(s.events, events...)
	evicted := 0
	if over := len(s.events) - s.maxEntries; over > 0 {
		evicted += over
	}
	if len(s.events)-evicted >= s.threshold {
		evicted = len(s.events) - s.watermark
	}
	if evicted > 0 {
		s.events = slices.Clone(s.events[evicted:])
	}
	kept := min(len(events), len(s.events))
	accepted := slices.Clone(events[len(events)-kept:])
	s.admitted += uint64(kept)
	s.evicted += uint64(evicted)
	s.lastUpdated = time.Now()
	size := len(s.events)
	s.mu.Unlock()

	s.metrics.Count(metrics.StoreAdmitted, kept)
	s.metrics.Count(metrics.StoreEvicted, evicted)
	s.metrics.Gauge(metrics.StoreSize, float64(size))

	if kept > 0 {
		s.added.Notify(accepted)
	}
}

// Deliver lets the store act as a dispatcher destination. It never fails.
func (s *Store) Deliver(events []logevent.LogEvent) error {
	s.Append(events)
	return nil
}

// Reset clears all events and always emits one reset notification, even
// when the store was already empty.
func (s *Store) Reset() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.events = nil
	s.resets++
	s.lastUpdated = time.Now()
	s.mu.Unlock()

	s.metrics.Gauge(metrics.StoreSize, 0)
	s.cleared.Notify(struct{}{})
}

// GetAll returns a copy of the stored events in insertion order.
func (s *Store) GetAll() []logevent.LogEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// Len returns the current number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Len:         len(s.events),
		MaxEntries:  s.maxEntries,
		Threshold:   s.threshold,
		Watermark:   s.watermark,
		Admitted:    s.admitted,
		Evicted:     s.evicted,
		Resets:      s.resets,
		LastUpdated: s.lastUpdated,
	}
}
