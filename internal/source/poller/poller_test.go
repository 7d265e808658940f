package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/logging"
	"github.com/five82/logdeck/internal/metrics"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 100; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

type scriptedFetcher struct {
	mu      sync.Mutex
	queries []Query
	replies []func() (Batch, error)
}

func (f *scriptedFetcher) Fetch(_ context.Context, q Query) (Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if len(f.replies) == 0 {
		return Batch{}, nil
	}
	next := f.replies[0]
	f.replies = f.replies[1:]
	return next()
}

func (f *scriptedFetcher) seen() []Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Query(nil), f.queries...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []logevent.LogEvent
}

func (s *recordingSink) Enqueue(events []logevent.LogEvent) {
	s.mu.Lock()
	s.events = append(s.events, events...)
	s.mu.Unlock()
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPoller_AdvancesCursorAndTagsSource(t *testing.T) {
	fetcher := &scriptedFetcher{replies: []func() (Batch, error){
		func() (Batch, error) {
			return Batch{Events: []logevent.LogEvent{{Message: "a"}, {Message: "b"}}, Next: 7}, nil
		},
		func() (Batch, error) {
			return Batch{Events: []logevent.LogEvent{{Message: "c"}}, Next: 9}, nil
		},
	}}
	sink := &recordingSink{}
	p := New("poll", fetcher, time.Millisecond, sink, logging.Discard().Logger, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return len(fetcher.seen()) >= 3 })
	p.Stop()

	queries := fetcher.seen()
	if queries[0].Since != 0 || queries[1].Since != 7 || queries[2].Since != 9 {
		t.Fatalf("since cursors = %v, want 0, 7, 9", queries[:3])
	}
	if sink.len() != 3 {
		t.Fatalf("enqueued %d events, want 3", sink.len())
	}
	for _, ev := range sink.events {
		if ev.Source != "poll" {
			t.Fatalf("event source = %q, want poll", ev.Source)
		}
	}
}

func TestPoller_CountsFailures(t *testing.T) {
	rec := &metrics.Recorder{}
	fetcher := &scriptedFetcher{replies: []func() (Batch, error){
		func() (Batch, error) { return Batch{}, errors.New("connection refused") },
		func() (Batch, error) { return Batch{Events: []logevent.LogEvent{{Message: "ok"}}, Malformed: 2}, nil },
	}}
	sink := &recordingSink{}
	p := New("poll", fetcher, time.Millisecond, sink, logging.Discard().Logger, rec)

	_ = p.Start(context.Background())
	waitFor(t, func() bool { return sink.len() == 1 })
	p.Stop()

	if got := rec.Counter(metrics.ProducerErrors); got != 1 {
		t.Fatalf("producer errors = %d, want 1", got)
	}
	if got := rec.Counter(metrics.ProducerDecodeErrs); got != 2 {
		t.Fatalf("decode errors = %d, want 2", got)
	}
}

func TestPoller_NoEnqueueAfterStop(t *testing.T) {
	fetcher := &scriptedFetcher{}
	for i := 0; i < 1000; i++ {
		fetcher.replies = append(fetcher.replies, func() (Batch, error) {
			return Batch{Events: []logevent.LogEvent{{Message: "tick"}}}, nil
		})
	}
	sink := &recordingSink{}
	p := New("poll", fetcher, time.Microsecond, sink, logging.Discard().Logger, nil)

	_ = p.Start(context.Background())
	waitFor(t, func() bool { return sink.len() > 0 })
	p.Stop()
	p.Stop()

	after := sink.len()
	time.Sleep(20 * time.Millisecond)
	if sink.len() != after {
		t.Fatalf("events enqueued after Stop: %d -> %d", after, sink.len())
	}
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("restarting a stopped poller should fail")
	}
}
