// Package server is the network listener producer and remote display
// surface, built on gin and gorilla/websocket.
//
// Routes:
//
//	POST /api/events   NDJSON, JSON array or single object; gzip accepted
//	GET  /ws           live event stream, one JSON array per dispatched batch
//	GET  /api/stats    dispatcher, store and liveness counters
//	GET  /healthz      status ("ok" or "stalled") plus queue length, cap, enqueued and dropped
//	GET  /metrics      Prometheus exposition, when a handler is supplied
//
// Each WebSocket viewer registers as its own dispatcher destination, so it
// receives every event independently of the local view. After each write the
// viewer signals Ready to pull its next batch without waiting for the flush
// tick. A viewer that falls behind misses batches rather than slowing the
// dispatcher.
package server
