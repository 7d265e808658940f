package state

import (
	"fmt"
	"testing"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/metrics"
)

func events(prefix string, n int) []logevent.LogEvent {
	out := make([]logevent.LogEvent, n)
	for i := range out {
		out[i] = logevent.LogEvent{Level: logevent.LevelInfo, Message: fmt.Sprintf("%s-%d", prefix, i)}
	}
	return out
}

func messages(evts []logevent.LogEvent) []string {
	out := make([]string, len(evts))
	for i, e := range evts {
		out[i] = e.Message
	}
	return out
}

func TestStore_AppendPreservesOrderAndNotifies(t *testing.T) {
	s := New(Options{MaxEntries: 100}, nil, nil)
	var notified [][]string
	s.OnAdded(func(evts []logevent.LogEvent) { notified = append(notified, messages(evts)) })

	s.Append(events("a", 3))
	s.Append(events("b", 2))
	s.Append(nil)

	got := messages(s.GetAll())
	want := []string{"a-0", "a-1", "a-2", "b-0", "b-1"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("GetAll = %v, want %v", got, want)
	}
	if len(notified) != 2 || len(notified[0]) != 3 || len(notified[1]) != 2 {
		t.Fatalf("notifications = %v, want one per non-empty append", notified)
	}
}

func TestStore_TrimScenario(t *testing.T) {
	s := New(Options{MaxEntries: 10, TrimThreshold: 0.5}, nil, nil)
	st := s.Stats()
	if st.Threshold != 5 || st.Watermark != 4 {
		t.Fatalf("threshold/watermark = %d/%d, want 5/4", st.Threshold, st.Watermark)
	}

	for i := 0; i < 6; i++ {
		s.Append(events(fmt.Sprintf("e%d", i), 1))
		if n := s.Len(); n > 10 {
			t.Fatalf("after append %d: len = %d exceeds cap", i, n)
		}
	}
	if n := s.Len(); n > 5+1 {
		t.Fatalf("len after 6th append = %d, want <= 6", n)
	}

	all := messages(s.GetAll())
	if all[len(all)-1] != "e5-0" {
		t.Fatalf("newest event = %q, want e5-0", all[len(all)-1])
	}
}

func TestStore_NeverExceedsCap(t *testing.T) {
	s := New(Options{MaxEntries: 50, TrimThreshold: 0.9, TrimTarget: 0.5}, nil, nil)
	sizes := []int{1, 7, 30, 49, 50, 51, 120, 3, 0, 44}
	for i, n := range sizes {
		s.Append(events(fmt.Sprintf("b%d", i), n))
		if got := s.Len(); got > 50 {
			t.Fatalf("after batch %d (size %d): len = %d exceeds cap", i, n, got)
		}
		st := s.Stats()
		if got := s.Len(); got >= st.Threshold {
			t.Fatalf("after batch %d: len = %d, want below threshold %d", i, got, st.Threshold)
		}
	}
}

func TestStore_NotificationCarriesOnlySurvivors(t *testing.T) {
	s := New(Options{MaxEntries: 10, TrimThreshold: 0.5}, nil, nil)
	var got []string
	s.OnAdded(func(evts []logevent.LogEvent) { got = messages(evts) })

	s.Append(events("big", 8))

	all := messages(s.GetAll())
	if fmt.Sprint(got) != fmt.Sprint(all) {
		t.Fatalf("notified %v, want exactly the stored survivors %v", got, all)
	}
	if len(all) != 4 || all[0] != "big-4" {
		t.Fatalf("stored = %v, want the newest 4", all)
	}
}

func TestStore_ResetAlwaysNotifiesOnce(t *testing.T) {
	s := New(Options{}, nil, nil)
	resets := 0
	s.OnReset(func() { resets++ })

	s.Reset()
	if resets != 1 {
		t.Fatalf("resets after empty reset = %d, want 1", resets)
	}
	s.Append(events("x", 2))
	s.Reset()
	if resets != 2 {
		t.Fatalf("resets = %d, want 2", resets)
	}
	if s.Len() != 0 {
		t.Fatalf("Len after reset = %d, want 0", s.Len())
	}
	if st := s.Stats(); st.Resets != 2 || st.Admitted != 2 {
		t.Fatalf("Stats = %+v, want Resets=2 Admitted=2", st)
	}
}

func TestStore_GetAllReturnsCopy(t *testing.T) {
	s := New(Options{}, nil, nil)
	s.Append(events("x", 1))
	snap := s.GetAll()
	snap[0].Message = "mutated"
	if s.GetAll()[0].Message != "x-0" {
		t.Fatal("GetAll should return an independent copy")
	}
}

func TestStore_NotificationIsIndependentOfCaller(t *testing.T) {
	s := New(Options{}, nil, nil)
	var seen []logevent.LogEvent
	s.OnAdded(func(evts []logevent.LogEvent) { seen = evts })

	batch := events("x", 2)
	s.Append(batch)
	batch[0].Message = "changed by producer"

	if seen[0].Message != "x-0" {
		t.Fatal("notification shares the producer's slice")
	}
}

func TestStore_ListenerMayReadDuringNotification(t *testing.T) {
	s := New(Options{}, nil, nil)
	lens := []int{}
	s.OnAdded(func([]logevent.LogEvent) { lens = append(lens, s.Len()) })
	s.Append(events("x", 2))
	s.Append(events("y", 1))
	if fmt.Sprint(lens) != "[2 3]" {
		t.Fatalf("lengths seen by listener = %v, want [2 3]", lens)
	}
}

func TestStore_RecordsMetrics(t *testing.T) {
	rec := &metrics.Recorder{}
	s := New(Options{MaxEntries: 10, TrimThreshold: 0.5}, nil, rec)
	s.Append(events("x", 6))

	if got := rec.Counter(metrics.StoreEvicted); got != 2 {
		t.Fatalf("evicted counter = %d, want 2", got)
	}
	if got := rec.Counter(metrics.StoreAdmitted); got != 4 {
		t.Fatalf("admitted counter = %d, want 4", got)
	}
	if got := rec.GaugeValue(metrics.StoreSize); got != 4 {
		t.Fatalf("size gauge = %v, want 4", got)
	}
}

func TestStore_DeliverAppends(t *testing.T) {
	s := New(Options{}, nil, nil)
	if err := s.Deliver(events("d", 2)); err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
}

func TestStore_SmallCapsKeepNewestEvent(t *testing.T) {
	tests := []struct {
		name          string
		opts          Options
		wantMax       int
		wantThreshold int
		wantWatermark int
	}{
		{"cap 1 is raised", Options{MaxEntries: 1}, 2, 2, 1},
		{"cap 2", Options{MaxEntries: 2}, 2, 2, 1},
		{"cap 3", Options{MaxEntries: 3}, 3, 2, 1},
		{"cap 5 low threshold", Options{MaxEntries: 5, TrimThreshold: 0.1, TrimTarget: 0.1}, 5, 2, 1},
		{"cap 10 low target", Options{MaxEntries: 10, TrimThreshold: 0.5, TrimTarget: 0.05}, 10, 5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.opts, nil, nil)
			st := s.Stats()
			if st.MaxEntries != tt.wantMax || st.Threshold != tt.wantThreshold || st.Watermark != tt.wantWatermark {
				t.Fatalf("max/threshold/watermark = %d/%d/%d, want %d/%d/%d",
					st.MaxEntries, st.Threshold, st.Watermark, tt.wantMax, tt.wantThreshold, tt.wantWatermark)
			}

			var notified []string
			s.OnAdded(func(evts []logevent.LogEvent) { notified = messages(evts) })
			for i := 0; i < 4; i++ {
				s.Append(events(fmt.Sprintf("e%d", i), 1))
				all := messages(s.GetAll())
				if len(all) == 0 {
					t.Fatalf("append %d left the store empty", i)
				}
				want := fmt.Sprintf("e%d-0", i)
				if all[len(all)-1] != want {
					t.Fatalf("newest = %q, want %q", all[len(all)-1], want)
				}
				if fmt.Sprint(notified) != fmt.Sprint([]string{want}) {
					t.Fatalf("notified %v after append %d, want [%s]", notified, i, want)
				}
				if len(all) > st.MaxEntries {
					t.Fatalf("len = %d exceeds cap %d", len(all), st.MaxEntries)
				}
			}
		})
	}
}
