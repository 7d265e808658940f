// Package state holds the bounded event store behind the log view.
//
// # Overview
//
// Store is the single sink every producer ultimately feeds. The dispatcher
// hands it batches through Deliver; the UI, the suggestion index and any
// other consumer read it with GetAll or follow it through OnAdded and
// OnReset.
//
// # Bounds
//
// Three numbers bound the store:
//
//	MaxEntries   hard cap, never exceeded after Append returns
//	Threshold    int(MaxEntries * TrimThreshold), at least 1
//	Watermark    int(Threshold * TrimTarget), strictly below Threshold
//
// Append first drops whatever overflows the cap, then, if the length has
// reached the threshold, drops the oldest entries down to the watermark.
// Trimming in one step keeps the store from evicting on every append once
// it is full.
//
//	MaxEntries=10, TrimThreshold=0.5 → Threshold=5, Watermark=4
//
//	append #1..#4   len 1..4
//	append #5       len 5 → trim → 4
//	append #6       len 5 → trim → 4
//
// # Notifications
//
// Append emits exactly one "added" notification carrying the appended events
// that survived eviction, in their original order. An empty Append, or one
// whose events were all evicted, emits nothing. Reset always emits exactly
// one "reset" notification, also on an empty store.
//
// Mutations and their notifications are serialized. Listeners run on the
// mutating goroutine, may read the store, and must not mutate it.
//
// # Copies
//
// Both GetAll and the notification payload are fresh slices; neither the
// caller's batch nor the store's backing array is shared.
package state
