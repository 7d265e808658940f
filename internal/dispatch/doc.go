// Package dispatch moves events from producers to display surfaces.
//
// Producers call Dispatcher.Enqueue from any goroutine. Enqueue only appends
// to a bounded queue, so a slow or absent consumer never blocks a producer;
// when the queue is full the oldest entries are dropped.
//
// Dispatcher.Run drains the queue on a fixed interval, handing each
// destination at most BatchSize events per flush. Destinations keep their own
// cursor over the shared queue, so the event store and every remote viewer
// each receive the whole stream. A consumer that has caught up with its
// backlog can call Ready to be flushed immediately instead of waiting for
// the next tick.
//
// Every delivery is timed. Deliveries slower than SlowDelivery are logged
// and counted, and errors or panics from one destination are logged and
// skipped without affecting the others.
//
// Watchdog is a passive liveness probe. Monitor points it at the
// dispatcher, which implements Host: every tick posts a probe that Run
// executes between flushes. When a delivery blocks Run the probe waits, the
// gap between checks grows past the limit, and a stall is recorded with its
// duration once Run gets back to it. The next on-time probe records the
// recovery.
package dispatch
