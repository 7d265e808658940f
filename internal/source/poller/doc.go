// Package poller implements the poll-based producer.
//
// A Poller asks an HTTP endpoint for events newer than its cursor on a fixed
// interval. The endpoint may answer with an envelope
//
//	{"events": [{...}, {...}], "next": 1234}
//
// in which case "next" is sent back as ?since= on the following request, or
// with a bare JSON array or NDJSON body, which is taken as-is.
//
// Failed polls back off exponentially (2s, 4s, 8s, 16s, then 30s) and the
// first success returns to the base interval. Stop closes the producer's
// gate before cancelling the loop, so no batch is enqueued afterwards.
package poller
