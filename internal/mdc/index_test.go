package mdc

import (
	"reflect"
	"testing"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/metrics"
)

type fakeSource struct {
	added []func([]logevent.LogEvent)
	reset []func()
}

func (f *fakeSource) OnAdded(fn func([]logevent.LogEvent)) func() {
	f.added = append(f.added, fn)
	return func() {}
}

func (f *fakeSource) OnReset(fn func()) func() {
	f.reset = append(f.reset, fn)
	return func() {}
}

func (f *fakeSource) append(events ...logevent.LogEvent) {
	for _, fn := range f.added {
		fn(events)
	}
}

func (f *fakeSource) clear() {
	for _, fn := range f.reset {
		fn()
	}
}

func event(mdc map[string]string) logevent.LogEvent {
	return logevent.LogEvent{Level: logevent.LevelInfo, MDC: mdc}
}

func newStartedIndex(t *testing.T) (*Index, *fakeSource, *int) {
	t.Helper()
	src := &fakeSource{}
	idx := NewIndex(nil, &metrics.Recorder{})
	idx.Start(src)
	changes := 0
	idx.OnChange(func() { changes++ })
	return idx, src, &changes
}

func TestIndex_TraceAliasesCollapse(t *testing.T) {
	idx, src, _ := newStartedIndex(t)

	src.append(
		event(map[string]string{"traceId": "abc"}),
		event(map[string]string{"trace_id": "xyz"}),
		event(map[string]string{"other": "x"}),
	)

	if got, want := idx.GetSortedValues("TraceID"), []string{"abc", "xyz"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("GetSortedValues(TraceID) = %v, want %v", got, want)
	}
	if got, want := idx.GetSortedKeys(), []string{"TraceID", "other"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("GetSortedKeys = %v, want %v", got, want)
	}
	if got := idx.GetSortedValues("trace-id"); len(got) != 2 {
		t.Fatalf("GetSortedValues(trace-id) = %v, want the canonical key's values", got)
	}
}

func TestIndex_NotifiesOnlyOnNewData(t *testing.T) {
	idx, src, changes := newStartedIndex(t)

	batch := []logevent.LogEvent{
		event(map[string]string{"user": "a"}),
		event(map[string]string{"user": "a"}),
	}
	src.append(batch...)
	if *changes != 1 {
		t.Fatalf("changes after first batch = %d, want 1", *changes)
	}

	src.append(batch...)
	if *changes != 1 {
		t.Fatalf("changes after identical batch = %d, want still 1", *changes)
	}

	src.append(event(map[string]string{"USER": "a"}))
	if *changes != 2 {
		t.Fatalf("changes after new key = %d, want 2", *changes)
	}

	src.append(event(nil))
	if *changes != 2 {
		t.Fatalf("changes after context-free event = %d, want 2", *changes)
	}
	if got := idx.GetSortedValues("user"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("GetSortedValues(user) = %v, want [a]", got)
	}
}

func TestIndex_ResetAlwaysNotifies(t *testing.T) {
	idx, src, changes := newStartedIndex(t)

	src.clear()
	if *changes != 1 {
		t.Fatalf("changes after reset of empty index = %d, want 1", *changes)
	}

	src.append(event(map[string]string{"k": "v"}))
	src.clear()
	if *changes != 3 {
		t.Fatalf("changes = %d, want 3", *changes)
	}
	if keys := idx.GetSortedKeys(); len(keys) != 0 {
		t.Fatalf("GetSortedKeys after reset = %v, want empty", keys)
	}
}

func TestIndex_StartIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	idx := NewIndex(nil, nil)
	idx.Start(src)
	idx.Start(src)
	if len(src.added) != 1 || len(src.reset) != 1 {
		t.Fatalf("subscriptions = %d added / %d reset, want 1/1", len(src.added), len(src.reset))
	}
}

func TestIndex_UnknownKeyReturnsEmpty(t *testing.T) {
	idx, _, _ := newStartedIndex(t)
	got := idx.GetSortedValues("missing")
	if got == nil || len(got) != 0 {
		t.Fatalf("GetSortedValues(missing) = %#v, want empty non-nil slice", got)
	}
}

func TestIndex_SortIsCaseSensitive(t *testing.T) {
	idx, src, _ := newStartedIndex(t)
	src.append(event(map[string]string{"b": "1", "B": "1", "a": "1"}))
	if got, want := idx.GetSortedKeys(), []string{"B", "a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("GetSortedKeys = %v, want %v", got, want)
	}
}
