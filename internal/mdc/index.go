package mdc

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/metrics"
	"github.com/five82/logdeck/internal/observer"
)

// EventSource is the subset of the event store the index listens to.
type EventSource interface {
	OnAdded(func([]logevent.LogEvent)) (unsubscribe func())
	OnReset(func()) (unsubscribe func())
}

// Index tracks every structured-context value ever observed per canonical
// key. Values are only removed by a store reset.
type Index struct {
	mu     sync.RWMutex
	values map[string]map[string]struct{}

	startOnce sync.Once
	changes   *observer.List[struct{}]
	metrics   metrics.Sink
}

// NewIndex returns an empty index. Call Start to attach it to a store.
func NewIndex(logger *slog.Logger, sink metrics.Sink) *Index {
	sink = metrics.OrNop(sink)
	return &Index{
		values:  make(map[string]map[string]struct{}),
		changes: observer.New[struct{}]("mdc-index", logger, func() { sink.Count(metrics.ListenerPanics, 1) }),
		metrics: sink,
	}
}

// Start subscribes the index to src. Calls after the first are no-ops.
func (x *Index) Start(src EventSource) {
	x.startOnce.Do(func() {
		src.OnAdded(x.handleAdded)
		src.OnReset(x.handleReset)
	})
}

// OnChange registers fn to run whenever a new key or value appears, and on
// every reset.
func (x *Index) OnChange(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return x.changes.Subscribe(func(struct{}) { fn() })
}

// GetSortedKeys returns the canonical keys in ascending order.
func (x *Index) GetSortedKeys() []string {
	x.mu.RLock()
	keys := make([]string, 0, len(x.values))
	for k := range x.values {
		keys = append(keys, k)
	}
	x.mu.RUnlock()
	slices.Sort(keys)
	return keys
}

// GetSortedValues returns the values observed under key (canonicalized
// first) in ascending order. Unknown keys yield an empty slice.
func (x *Index) GetSortedValues(key string) []string {
	x.mu.RLock()
	set := x.values[Canonicalize(key)]
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	x.mu.RUnlock()
	slices.Sort(values)
	return values
}

func (x *Index) handleAdded(events []logevent.LogEvent) {
	changed := false
	x.mu.Lock()
	for _, evt := range events {
		for rawKey, value := range evt.MDC {
			key := Canonicalize(rawKey)
			set, ok := x.values[key]
			if !ok {
				set = make(map[string]struct{})
				x.values[key] = set
				changed = true
			}
			if _, seen := set[value]; !seen {
				set[value] = struct{}{}
				changed = true
			}
		}
	}
	keys := len(x.values)
	x.mu.Unlock()

	if changed {
		x.metrics.Gauge(metrics.IndexKeys, float64(keys))
		x.changes.Notify(struct{}{})
	}
}

func (x *Index) handleReset() {
	x.mu.Lock()
	x.values = make(map[string]map[string]struct{})
	x.mu.Unlock()

	x.metrics.Gauge(metrics.IndexKeys, 0)
	x.changes.Notify(struct{}{})
}
