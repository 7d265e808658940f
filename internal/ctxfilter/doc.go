// Package ctxfilter implements the diagnostic context filter: a user-managed
// set of (key, value, enabled) entries and the predicate they define over an
// event's MDC.
//
// # Matching
//
// Active entries are grouped by canonical key. An event matches when every
// group is satisfied (AND across keys), and a group is satisfied by any one
// of its entries (OR within a key). An entry with an empty value is a
// wildcard that matches any value present under the key or its aliases.
//
//	entries: service=billing, service=auth, RequestID=   (all active)
//	{"service":"auth", "request-id":"r9"}   matches
//	{"service":"auth"}                      no RequestID, no match
//	{"service":"web", "requestId":"r1"}     service not listed, no match
//
// With the master switch off, or with no active entries, every event
// matches.
//
// # Entry Management
//
// Keys are canonicalized when an entry is added, so "trace_id" and
// "TraceID" name the same entry. GetEntries re-canonicalizes and merges
// duplicates, OR-ing their enabled flags, and returns them sorted.
// Reset always notifies OnChange listeners. The other mutators notify only
// when the state actually changes.
//
// The filter never observes the event store; it changes only through its
// own methods.
package ctxfilter
