// Package logevent defines the LogEvent model shared by producers, the event
// store, and the display layer, plus decoders for JSON, NDJSON, and plain-text
// log lines.
//
// Decoding is lenient. A line that is not a JSON object is kept as an INFO
// event carrying the raw text. Missing timestamps default to the receive time,
// missing levels to INFO, and structured-context entries whose value is not a
// string are dropped while the rest of the event is admitted.
package logevent
