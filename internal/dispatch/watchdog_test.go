package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/logging"
	"github.com/five82/logdeck/internal/metrics"
)

func TestWatchdog_StallAndRecovery(t *testing.T) {
	rec := &metrics.Recorder{}
	w := NewWatchdog(time.Second, 2, logging.Discard().Logger, rec)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	steps := []struct {
		at        time.Duration
		wantStall bool
		stalls    uint64
		recovered uint64
	}{
		{0, false, 0, 0},
		{1 * time.Second, false, 0, 0},
		{3 * time.Second, false, 0, 0}, // gap of exactly 2x is tolerated
		{8 * time.Second, true, 1, 0},
		{9 * time.Second, false, 1, 1},
		{10 * time.Second, false, 1, 1},
	}
	for _, s := range steps {
		if got := w.Check(t0.Add(s.at)); got != s.wantStall {
			t.Fatalf("Check(+%v) = %v, want %v", s.at, got, s.wantStall)
		}
		st := w.Stats()
		if st.Stalls != s.stalls || st.Recoveries != s.recovered {
			t.Fatalf("at +%v: stats = %+v, want stalls=%d recoveries=%d", s.at, st, s.stalls, s.recovered)
		}
	}

	if got := w.Stats().LastStall; got != 5*time.Second {
		t.Fatalf("LastStall = %v, want 5s", got)
	}
	if got := rec.Counter(metrics.Stalls); got != 1 {
		t.Fatalf("stall counter = %d, want 1", got)
	}
	if got := rec.Counter(metrics.Recoveries); got != 1 {
		t.Fatalf("recovery counter = %d, want 1", got)
	}
	if d := rec.Durations(metrics.StallDuration); len(d) != 1 || d[0] != 5*time.Second {
		t.Fatalf("stall durations = %v, want [5s]", d)
	}
}

func TestWatchdog_ConsecutiveStalls(t *testing.T) {
	w := NewWatchdog(time.Second, 2, logging.Discard().Logger, nil)
	t0 := time.Unix(0, 0)
	w.Check(t0)
	w.Check(t0.Add(5 * time.Second))
	w.Check(t0.Add(10 * time.Second))

	st := w.Stats()
	if !st.Stalled || st.Stalls != 2 || st.Recoveries != 0 {
		t.Fatalf("stats = %+v, want still stalled after two stalls", st)
	}
}

func TestWatchdog_Defaults(t *testing.T) {
	w := NewWatchdog(0, 0, nil, nil)
	if w.interval != DefaultLivenessInterval {
		t.Fatalf("interval = %v, want %v", w.interval, DefaultLivenessInterval)
	}
	if w.limit != 2*DefaultLivenessInterval {
		t.Fatalf("limit = %v, want %v", w.limit, 2*DefaultLivenessInterval)
	}
}

func TestWatchdog_RunSurvivesPanickingClock(t *testing.T) {
	w := NewWatchdog(5*time.Millisecond, 2, logging.Discard().Logger, nil)
	calls := make(chan struct{}, 16)
	first := true
	w.now = func() time.Time {
		select {
		case calls <- struct{}{}:
		default:
		}
		if first {
			first = false
			panic("clock broken")
		}
		return time.Now()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("watchdog stopped probing after a panic")
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if w.Stats().LastCheck.IsZero() {
		t.Fatal("no successful probe recorded")
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatchdog_DetectsBlockedDispatcherLoop(t *testing.T) {
	rec := &metrics.Recorder{}
	w := NewWatchdog(20*time.Millisecond, 2, logging.Discard().Logger, rec)
	d := newTestDispatcher(Options{FlushInterval: time.Hour}, nil)
	w.Monitor(d)

	release := make(chan struct{})
	_ = d.AddDestination("stuck", DestinationFunc(func([]logevent.LogEvent) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = d.Run(ctx) }()
	go func() { defer wg.Done(); _ = w.Run(ctx) }()
	defer func() {
		cancel()
		wg.Wait()
	}()

	waitUntil(t, "first check on the dispatcher loop", func() bool { return !w.Stats().LastCheck.IsZero() })

	d.Enqueue(batch("b", 1))
	d.Ready("stuck")
	time.Sleep(200 * time.Millisecond)
	close(release)

	waitUntil(t, "stall and recovery", func() bool {
		st := w.Stats()
		return st.Stalls >= 1 && st.Recoveries >= 1
	})
	st := w.Stats()
	if st.LastStall < 100*time.Millisecond {
		t.Fatalf("LastStall = %v, want at least the blocked delivery time", st.LastStall)
	}
	if got := rec.Counter(metrics.Stalls); got < 1 {
		t.Fatalf("stall counter = %d, want >= 1", got)
	}
}

func TestWatchdog_ChecksRunOnHost(t *testing.T) {
	w := NewWatchdog(5*time.Millisecond, 2, logging.Discard().Logger, nil)
	d := newTestDispatcher(Options{}, nil)
	w.Monitor(d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if !w.Stats().LastCheck.IsZero() {
		t.Fatal("check ran without the dispatcher loop running")
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	go func() { _ = d.Run(loopCtx) }()
	waitUntil(t, "check on the dispatcher loop", func() bool { return !w.Stats().LastCheck.IsZero() })

	stopLoop()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}
