package ctxfilter

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/five82/logdeck/internal/mdc"
	"github.com/five82/logdeck/internal/metrics"
	"github.com/five82/logdeck/internal/observer"
)

// Entry is one filter condition. Identity is the (Key, Value) pair.
type Entry struct {
	Key     string
	Value   string
	Enabled bool
}

// Wildcard reports whether the entry matches any value of its key.
func (e Entry) Wildcard() bool {
	return e.Value == ""
}

type entryKey struct {
	key   string
	value string
}

// Filter is safe for concurrent use.
type Filter struct {
	mu      sync.RWMutex
	entries map[entryKey]bool
	enabled bool

	changes *observer.List[struct{}]
}

// New returns an empty, enabled filter.
func New(logger *slog.Logger, sink metrics.Sink) *Filter {
	sink = metrics.OrNop(sink)
	return &Filter{
		entries: make(map[entryKey]bool),
		enabled: true,
		changes: observer.New[struct{}]("ctx-filter", logger, func() { sink.Count(metrics.ListenerPanics, 1) }),
	}
}

// OnChange registers fn to run after every state change.
func (f *Filter) OnChange(fn func()) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	return f.changes.Subscribe(func(struct{}) { fn() })
}

// AddEntry inserts (key, value) as an active entry. A nil value is stored as
// the empty wildcard; other values use their fmt string form. Re-adding an
// existing pair leaves its enabled state untouched.
func (f *Filter) AddEntry(key string, value any) {
	k := entryKey{key: mdc.Canonicalize(key), value: valueString(value)}
	f.mu.Lock()
	if _, exists := f.entries[k]; exists {
		f.mu.Unlock()
		return
	}
	f.entries[k] = true
	f.mu.Unlock()
	f.notify()
}

// RemoveEntry deletes the matching entry if present.
func (f *Filter) RemoveEntry(key string, value any) {
	k := entryKey{key: mdc.Canonicalize(key), value: valueString(value)}
	f.mu.Lock()
	if _, exists := f.entries[k]; !exists {
		f.mu.Unlock()
		return
	}
	delete(f.entries, k)
	f.mu.Unlock()
	f.notify()
}

// ActivateEntry enables the matching entry if present.
func (f *Filter) ActivateEntry(key string, value any) {
	f.setEntry(key, value, true)
}

// DeactivateEntry disables the matching entry if present.
func (f *Filter) DeactivateEntry(key string, value any) {
	f.setEntry(key, value, false)
}

// ToggleEntry flips the matching entry's enabled state if present.
func (f *Filter) ToggleEntry(key string, value any) {
	k := entryKey{key: mdc.Canonicalize(key), value: valueString(value)}
	f.mu.Lock()
	enabled, exists := f.entries[k]
	if !exists {
		f.mu.Unlock()
		return
	}
	f.entries[k] = !enabled
	f.mu.Unlock()
	f.notify()
}

func (f *Filter) setEntry(key string, value any, enabled bool) {
	k := entryKey{key: mdc.Canonicalize(key), value: valueString(value)}
	f.mu.Lock()
	current, exists := f.entries[k]
	if !exists || current == enabled {
		f.mu.Unlock()
		return
	}
	f.entries[k] = enabled
	f.mu.Unlock()
	f.notify()
}

// Reset removes every entry and always notifies.
func (f *Filter) Reset() {
	f.mu.Lock()
	f.entries = make(map[entryKey]bool)
	f.mu.Unlock()
	f.notify()
}

// SetEnabled flips the master switch. A disabled filter matches everything.
func (f *Filter) SetEnabled(enabled bool) {
	f.mu.Lock()
	if f.enabled == enabled {
		f.mu.Unlock()
		return
	}
	f.enabled = enabled
	f.mu.Unlock()
	f.notify()
}

// Enabled reports the master switch.
func (f *Filter) Enabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.enabled
}

// GetEntries re-canonicalizes stored keys, merging pairs that now collide
// (enabled if either was), and returns the entries sorted by key then value.
// A merge that shrinks the set notifies listeners.
func (f *Filter) GetEntries() []Entry {
	f.mu.Lock()
	before := len(f.entries)
	merged := make(map[entryKey]bool, before)
	for k, enabled := range f.entries {
		nk := entryKey{key: mdc.Canonicalize(k.key), value: k.value}
		merged[nk] = merged[nk] || enabled
	}
	f.entries = merged
	out := make([]Entry, 0, len(merged))
	for k, enabled := range merged {
		out = append(out, Entry{Key: k.key, Value: k.value, Enabled: enabled})
	}
	f.mu.Unlock()

	slices.SortFunc(out, func(a, b Entry) int {
		if c := cmp.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	if len(out) != before {
		f.notify()
	}
	return out
}

// ActiveCount returns the number of enabled entries.
func (f *Filter) ActiveCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, enabled := range f.entries {
		if enabled {
			n++
		}
	}
	return n
}

// Matches evaluates the filter against one event's structured context.
// It returns true when the filter is disabled or has no active entries.
func (f *Filter) Matches(fields map[string]string) bool {
	f.mu.RLock()
	if !f.enabled {
		f.mu.RUnlock()
		return true
	}
	groups := make(map[string][]string)
	for k, enabled := range f.entries {
		if enabled {
			groups[k.key] = append(groups[k.key], k.value)
		}
	}
	f.mu.RUnlock()

	if len(groups) == 0 {
		return true
	}

	present := make(map[string][]string, len(fields))
	for rawKey, value := range fields {
		key := mdc.Canonicalize(rawKey)
		present[key] = append(present[key], value)
	}

	for key, wanted := range groups {
		if !groupSatisfied(wanted, present[key]) {
			return false
		}
	}
	return true
}

func groupSatisfied(wanted, have []string) bool {
	if len(have) == 0 {
		return false
	}
	for _, w := range wanted {
		if w == "" {
			return true
		}
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}

func (f *Filter) notify() {
	f.changes.Notify(struct{}{})
}

func valueString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
