package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names recorded by the core.
const (
	EventsEnqueued     = "dispatch_enqueued"
	EventsDropped      = "dispatch_dropped"
	EventsDelivered    = "dispatch_delivered"
	DeliveryFailures   = "dispatch_delivery_failures"
	SlowDeliveries     = "dispatch_slow_deliveries"
	FlushDuration      = "dispatch_flush"
	QueueDepth         = "dispatch_queue_depth"
	Stalls             = "liveness_stalls"
	StallDuration      = "liveness_stall"
	Recoveries         = "liveness_recoveries"
	StoreAdmitted      = "store_admitted"
	StoreEvicted       = "store_evicted"
	StoreSize          = "store_size"
	ListenerPanics     = "listener_panics"
	IndexKeys          = "mdc_index_keys"
	ProducerErrors     = "producer_errors"
	ProducerDecodeErrs = "producer_decode_errors"
)

// Sink receives measurements.
type Sink interface {
	Count(name string, delta int)
	Gauge(name string, value float64)
	Observe(name string, d time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Count(string, int)             {}
func (Nop) Gauge(string, float64)         {}
func (Nop) Observe(string, time.Duration) {}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// Prometheus exports measurements as labelled Prometheus series.
type Prometheus struct {
	registry  *prometheus.Registry
	counters  *prometheus.CounterVec
	gauges    *prometheus.GaugeVec
	durations *prometheus.HistogramVec
}

// NewPrometheus registers the logdeck collectors on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Prometheus{
		registry: reg,
		counters: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logdeck_events_total",
				Help: "Counters recorded by the ingestion core",
			},
			[]string{"name"},
		),
		gauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "logdeck_gauge",
				Help: "Point-in-time values recorded by the ingestion core",
			},
			[]string{"name"},
		),
		durations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logdeck_duration_seconds",
				Help:    "Durations recorded by the ingestion core",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .2, .5, 1, 2, 5},
			},
			[]string{"name"},
		),
	}
}

func (p *Prometheus) Count(name string, delta int) {
	if delta <= 0 {
		return
	}
	p.counters.WithLabelValues(name).Add(float64(delta))
}

func (p *Prometheus) Gauge(name string, value float64) {
	p.gauges.WithLabelValues(name).Set(value)
}

func (p *Prometheus) Observe(name string, d time.Duration) {
	p.durations.WithLabelValues(name).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Recorder keeps measurements in memory.
type Recorder struct {
	mu        sync.Mutex
	counts    map[string]int
	gauges    map[string]float64
	durations map[string][]time.Duration
}

func (r *Recorder) Count(name string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[name] += delta
}

func (r *Recorder) Gauge(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gauges == nil {
		r.gauges = make(map[string]float64)
	}
	r.gauges[name] = value
}

func (r *Recorder) Observe(name string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.durations == nil {
		r.durations = make(map[string][]time.Duration)
	}
	r.durations[name] = append(r.durations[name], d)
}

// Counter returns the accumulated count for name.
func (r *Recorder) Counter(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

// GaugeValue returns the last gauge value for name.
func (r *Recorder) GaugeValue(name string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gauges[name]
}

// Durations returns a copy of the observations for name.
func (r *Recorder) Durations(name string) []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.durations[name]...)
}
