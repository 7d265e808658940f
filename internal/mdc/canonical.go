package mdc

import "strings"

// Canonical display names for well-known structured-context keys.
const (
	TraceID   = "TraceID"
	SpanID    = "SpanID"
	RequestID = "RequestID"
)

// aliases maps a folded key (lower-case, separators removed) to its
// canonical display name.
var aliases = map[string]string{
	"traceid":        TraceID,
	"xtraceid":       TraceID,
	"xb3traceid":     TraceID,
	"ddtraceid":      TraceID,
	"spanid":         SpanID,
	"xspanid":        SpanID,
	"xb3spanid":      SpanID,
	"ddspanid":       SpanID,
	"requestid":      RequestID,
	"xrequestid":     RequestID,
	"reqid":          RequestID,
	"correlationid":  RequestID,
	"xcorrelationid": RequestID,
}

// Canonicalize maps a raw structured-context key to its canonical name.
// Known aliases differ only in case and in '-', '_', '.', or space
// separators. Unrecognised keys are returned trimmed but otherwise
// unchanged. Canonicalize(Canonicalize(k)) == Canonicalize(k).
func Canonicalize(key string) string {
	trimmed := strings.TrimSpace(key)
	if canonical, ok := aliases[fold(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

func fold(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch r {
		case '-', '_', '.', ' ':
			continue
		}
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
