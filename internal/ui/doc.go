// Package ui provides the Bubble Tea terminal interface for logdeck.
//
// The UI is a pure consumer: it reads the event store, the MDC suggestion
// index and the diagnostic context filter through their query methods and
// never writes events itself. The only mutations it performs are the ones a
// user asks for (filter edits, clearing the store).
//
// # Refresh Model
//
// Change notifications from the store, index and filter arrive on producer
// goroutines. They only set a dirty flag. A tea.Tick running every Refresh
// interval checks the flag and, when set, re-reads the store, applies the
// filter and rebuilds the event viewport, the filter panel and the input's
// suggestions. Bursts of notifications therefore cost one redraw per tick.
//
// # Layout
//
//	┌ header: counts, filter state, drops, stall and follow indicators ┐
//	│ command bar: key hints for the focused area                      │
//	│ Events box (viewport, newest at the bottom while following)      │
//	│ Context Filter panel (toggled with f)                            │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Context Filter Panel
//
// Entries are typed as key=value; a bare key (or key=) is a wildcard that
// matches any value but requires the key to be present. The input completes
// from the suggestion index with tab. Space toggles the selected entry, d
// removes it, R removes all and m flips the master switch.
//
// # Preferences
//
// Theme (T) and visible columns (1-6) are saved to the prefs file on change.
package ui
