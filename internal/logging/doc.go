// Package logging builds the slog loggers used across logdeck.
//
// New picks a text or JSON handler; debug level also records source
// positions. Component derives a child logger tagged with
// component=<name>, which app hands to each service:
//
//	time=... level=WARN msg="slow delivery" component=dispatch destination=store elapsed=212ms
//
// # Output
//
// In headless mode logs go to stderr. While the TUI owns the terminal,
// OpenFile appends to the configured log file instead (default
// ~/.local/state/logdeck/logdeck.log), creating its directory.
//
// ParseLevel accepts debug, info, warn (or warning) and error; anything
// else is info.
package logging
