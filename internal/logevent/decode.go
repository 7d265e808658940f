package logevent

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrNotObject is returned when a JSON payload is not an object.
var ErrNotObject = errors.New("log event is not a JSON object")

var (
	timeKeys    = []string{"ts", "timestamp", "time", "@timestamp"}
	levelKeys   = []string{"level", "severity", "lvl"}
	loggerKeys  = []string{"logger", "logger_name", "source", "name"}
	threadKeys  = []string{"thread", "thread_name", "origin"}
	messageKeys = []string{"msg", "message"}
	contextKeys = []string{"mdc", "context", "fields"}
)

// DecodeJSON decodes one JSON object into a LogEvent. Missing fields are
// defaulted: the timestamp falls back to now and the level to INFO. Context
// entries whose value is not a string are skipped.
func DecodeJSON(raw []byte, now time.Time) (LogEvent, error) {
	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return LogEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if data == nil {
		return LogEvent{}, ErrNotObject
	}

	evt := LogEvent{Timestamp: now, Level: LevelInfo}
	if v, ok := data[firstKey(data, timeKeys)]; ok {
		if t := timeValue(v); !t.IsZero() {
			evt.Timestamp = t
		}
	}
	if s, ok := stringField(data, levelKeys); ok {
		evt.Level = NormalizeLevel(s)
	}
	if s, ok := stringField(data, loggerKeys); ok {
		evt.Logger = s
	}
	if s, ok := stringField(data, threadKeys); ok {
		evt.Thread = s
	}
	if s, ok := stringField(data, messageKeys); ok {
		evt.Message = s
	}
	if raw, ok := data[firstKey(data, contextKeys)].(map[string]any); ok {
		evt.MDC = stringMap(raw)
	}
	return evt, nil
}

// DecodeLine turns a single log line into an event. JSON objects are decoded
// with DecodeJSON; anything else becomes an INFO event carrying the line.
func DecodeLine(line string, now time.Time) LogEvent {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		if evt, err := DecodeJSON([]byte(trimmed), now); err == nil {
			return evt
		}
	}
	return LogEvent{Timestamp: now, Level: LevelInfo, Message: line}
}

// DecodeStream reads newline-delimited events from r. Blank lines are
// skipped. A JSON array on its own is also accepted.
func DecodeStream(r io.Reader, now time.Time) ([]LogEvent, error) {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(1)
	for len(peek) == 1 && (peek[0] == ' ' || peek[0] == '\n' || peek[0] == '\r' || peek[0] == '\t') {
		_, _ = br.ReadByte()
		peek, _ = br.Peek(1)
	}
	if len(peek) == 1 && peek[0] == '[' {
		var items []json.RawMessage
		if err := json.NewDecoder(br).Decode(&items); err != nil {
			return nil, fmt.Errorf("decode event array: %w", err)
		}
		events := make([]LogEvent, 0, len(items))
		for _, item := range items {
			evt, err := DecodeJSON(item, now)
			if err != nil {
				continue
			}
			events = append(events, evt)
		}
		return events, nil
	}

	var events []LogEvent
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		events = append(events, DecodeLine(line, now))
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

func firstKey(data map[string]any, keys []string) string {
	for _, k := range keys {
		if _, ok := data[k]; ok {
			return k
		}
	}
	return ""
}

func stringField(data map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if s, ok := data[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

func timeValue(v any) time.Time {
	switch t := v.(type) {
	case string:
		return ParseTime(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil || f <= 0 {
			return time.Time{}
		}
		return fromEpoch(f)
	}
	return time.Time{}
}

func stringMap(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[k] = s
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
