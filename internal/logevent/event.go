package logevent

import (
	"maps"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// Level values recognised by the display layer.
const (
	LevelTrace = "TRACE"
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelFatal = "FATAL"
)

// LogEvent is a single log entry. Once handed to the event store it is never
// mutated; use With* helpers to derive modified copies.
type LogEvent struct {
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Logger    string            `json:"logger,omitempty"`
	Thread    string            `json:"thread,omitempty"`
	Message   string            `json:"msg"`
	MDC       map[string]string `json:"mdc,omitempty"`
	Source    string            `json:"source,omitempty"`
}

// Context returns a copy of the structured context map.
func (e LogEvent) Context() map[string]string {
	if len(e.MDC) == 0 {
		return nil
	}
	return maps.Clone(e.MDC)
}

// WithSource returns a copy of e tagged with the producer name.
func (e LogEvent) WithSource(source string) LogEvent {
	e.Source = source
	e.MDC = maps.Clone(e.MDC)
	return e
}

// NormalizeLevel maps common severity spellings onto the Level constants.
// Unknown values are upper-cased and returned as-is; empty becomes INFO.
func NormalizeLevel(level string) string {
	l := strings.ToUpper(strings.TrimSpace(level))
	switch l {
	case "":
		return LevelInfo
	case "WARNING":
		return LevelWarn
	case "ERR", "SEVERE":
		return LevelError
	case "CRITICAL", "CRIT", "PANIC":
		return LevelFatal
	case "FINE", "FINER", "FINEST":
		return LevelDebug
	}
	return l
}

// ParseTime accepts RFC3339 (with or without fractional seconds), the
// "2006-01-02 15:04:05" local layout, and unix seconds or milliseconds.
func ParseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(timestampLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}

func fromEpoch(v float64) time.Time {
	// Values beyond year 2286 in seconds are treated as milliseconds.
	if v > 1e10 {
		ms := int64(v)
		return time.UnixMilli(ms)
	}
	sec := int64(v)
	nsec := int64((v - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
