package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/five82/logdeck/internal/logevent"
)

const (
	defaultUserAgent = "logdeck/0.1"
	requestTimeout   = 5 * time.Second
	maxResponseBytes = 32 << 20
)

// Fetcher retrieves log batches. *Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, query Query) (Batch, error)
}

var _ Fetcher = (*Client)(nil)

// Query configures one poll request.
type Query struct {
	Since uint64
	Limit int
}

// Batch is one poll response. Next is the cursor for the following request;
// zero means the endpoint does not page.
type Batch struct {
	Events    []logevent.LogEvent
	Next      uint64
	Malformed int
}

type batchPayload struct {
	Events []json.RawMessage `json:"events"`
	Next   uint64            `json:"next"`
}

// Client talks to an HTTP endpoint returning log events as JSON, either
// {"events": [...], "next": N} or a bare array or NDJSON body.
type Client struct {
	endpoint  *url.URL
	http      *http.Client
	userAgent string
	now       func() time.Time
}

// NewClient builds a Client for rawURL. A missing scheme defaults to http.
func NewClient(rawURL string) (*Client, error) {
	endpoint, err := parseEndpoint(rawURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
		now:       time.Now,
	}, nil
}

// Fetch requests events newer than query.Since.
func (c *Client) Fetch(ctx context.Context, query Query) (Batch, error) {
	if c == nil {
		return Batch{}, fmt.Errorf("client is nil")
	}
	reqURL := *c.endpoint
	values := reqURL.Query()
	if query.Since > 0 {
		values.Set("since", strconv.FormatUint(query.Since, 10))
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	reqURL.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return Batch{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Batch{}, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Batch{}, fmt.Errorf("poll %s returned status %d", c.endpoint.Redacted(), resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Batch{}, fmt.Errorf("read response: %w", err)
	}
	return c.decode(body)
}

func (c *Client) decode(body []byte) (Batch, error) {
	now := c.now()
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Batch{}, nil
	}
	if trimmed[0] != '{' {
		events, err := logevent.DecodeStream(bytes.NewReader(trimmed), now)
		if err != nil {
			return Batch{}, fmt.Errorf("decode response: %w", err)
		}
		return Batch{Events: events}, nil
	}

	var payload batchPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil || payload.Events == nil {
		// A single object or NDJSON stream rather than an envelope.
		events, err := logevent.DecodeStream(bytes.NewReader(trimmed), now)
		if err != nil {
			return Batch{}, fmt.Errorf("decode response: %w", err)
		}
		return Batch{Events: events}, nil
	}

	batch := Batch{Next: payload.Next, Events: make([]logevent.LogEvent, 0, len(payload.Events))}
	for _, raw := range payload.Events {
		ev, err := logevent.DecodeJSON(raw, now)
		if err != nil {
			batch.Malformed++
			continue
		}
		batch.Events = append(batch.Events, ev)
	}
	return batch, nil
}

func parseEndpoint(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("poll url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse poll url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse poll url %q: missing host", rawURL)
	}
	u.Fragment = ""
	return u, nil
}
