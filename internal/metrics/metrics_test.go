package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheus_ExposesRecordedSeries(t *testing.T) {
	p := NewPrometheus()
	p.Count(EventsEnqueued, 3)
	p.Count(EventsEnqueued, 0)
	p.Gauge(QueueDepth, 7)
	p.Observe(FlushDuration, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`logdeck_events_total{name="dispatch_enqueued"} 3`,
		`logdeck_gauge{name="dispatch_queue_depth"} 7`,
		`logdeck_duration_seconds_count{name="dispatch_flush"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, text)
		}
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Count(Stalls, 1)
	r.Count(Stalls, 2)
	r.Gauge(StoreSize, 4)
	r.Observe(StallDuration, time.Second)

	if got := r.Counter(Stalls); got != 3 {
		t.Fatalf("Counter = %d, want 3", got)
	}
	if got := r.GaugeValue(StoreSize); got != 4 {
		t.Fatalf("GaugeValue = %v, want 4", got)
	}
	if got := r.Durations(StallDuration); len(got) != 1 || got[0] != time.Second {
		t.Fatalf("Durations = %v, want [1s]", got)
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(Nop); !ok {
		t.Fatal("OrNop(nil) did not return Nop")
	}
	var r Recorder
	if OrNop(&r) != Sink(&r) {
		t.Fatal("OrNop changed a non-nil sink")
	}
}
