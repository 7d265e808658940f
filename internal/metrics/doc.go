// Package metrics is the observability sink used by the ingestion core.
//
// Core packages record counters, gauges and timings through Sink and never
// talk to a metrics backend directly. A nil Sink is replaced by Nop via
// OrNop, so recording is always safe.
//
// # Implementations
//
//   - Nop drops everything.
//   - Prometheus records onto its own registry and serves it through
//     Handler, which the HTTP listener mounts at /metrics.
//   - Recorder keeps values in memory for tests.
//
// # Series
//
// Prometheus uses three vectors labelled by measurement name:
//
//	logdeck_events_total{name="dispatch_dropped"}          counters
//	logdeck_gauge{name="dispatch_queue_depth"}             gauges
//	logdeck_duration_seconds{name="dispatch_flush"}        histograms
//
// The name constants in this package (EventsEnqueued, Stalls, StoreEvicted
// and so on) are the label values.
package metrics
