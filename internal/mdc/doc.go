// Package mdc canonicalizes structured-context (MDC) keys and maintains the
// suggestion index the display layer uses for key and value autocomplete.
//
// The index is derived only from events admitted to the event store. It
// grows monotonically between resets, and it notifies listeners only when a
// batch introduces a key or value it had not seen before, or when the store
// is reset.
package mdc
