package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/logging"
	"github.com/five82/logdeck/internal/metrics"
)

type fakeReader struct {
	msgs   chan kafka.Message
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		msgs:   make(chan kafka.Message, 8),
		errs:   make(chan error, 8),
		closed: make(chan struct{}),
	}
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case err := <-r.errs:
		return kafka.Message{}, err
	case m := <-r.msgs:
		return m, nil
	}
}

func (r *fakeReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []logevent.LogEvent
}

func (s *recordingSink) Enqueue(events []logevent.LogEvent) {
	s.mu.Lock()
	s.events = append(s.events, events...)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []logevent.LogEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]logevent.LogEvent(nil), s.events...)
}

func TestStartValidatesConfig(t *testing.T) {
	c := New("kafka", Options{}, &recordingSink{}, logging.Discard().Logger, nil)
	if err := c.Start(context.Background()); !errors.Is(err, ErrConfig) {
		t.Fatalf("Start = %v, want ErrConfig", err)
	}
	c.Stop()
}

func TestNew_DefaultGroup(t *testing.T) {
	c := New("kafka", Options{Group: "  "}, &recordingSink{}, nil, nil)
	if c.opts.Group != defaultGroup {
		t.Fatalf("group = %q, want %q", c.opts.Group, defaultGroup)
	}
}

func TestConsumer_DecodesMessagesAndHeaders(t *testing.T) {
	rec := &metrics.Recorder{}
	sink := &recordingSink{}
	reader := newFakeReader()
	c := New("kafka", Options{Brokers: []string{"b:9092"}, Topic: "logs"}, sink, logging.Discard().Logger, rec)
	c.newReader = func(Options) MessageReader { return reader }

	reader.msgs <- kafka.Message{
		Value:   []byte(`{"msg":"one","mdc":{"traceId":"from-body"}}`),
		Headers: []kafka.Header{{Key: "traceId", Value: []byte("from-header")}, {Key: "tenant", Value: []byte("acme")}},
	}
	reader.errs <- errors.New("broker unavailable")
	reader.msgs <- kafka.Message{Value: []byte("{\"msg\":\"two\"}\n{\"msg\":\"three\"}\n")}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for len(sink.snapshot()) < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("got %d events, want 3", len(sink.snapshot()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	select {
	case <-reader.closed:
	default:
		t.Fatal("reader not closed after Stop")
	}

	events := sink.snapshot()
	first := events[0]
	if first.MDC["traceId"] != "from-body" || first.MDC["tenant"] != "acme" {
		t.Fatalf("first event context = %v, want body value kept and header added", first.MDC)
	}
	if first.Source != "kafka" {
		t.Fatalf("Source = %q, want kafka", first.Source)
	}
	if events[1].Message != "two" || events[2].Message != "three" {
		t.Fatalf("messages = %q, %q; want two, three", events[1].Message, events[2].Message)
	}
	if got := rec.Counter(metrics.ProducerErrors); got != 1 {
		t.Fatalf("producer errors = %d, want 1", got)
	}
}

func TestHeadersToMap(t *testing.T) {
	hdrs := []kafka.Header{{Key: "k1", Value: []byte("v1")}, {Key: "k2", Value: []byte("v2")}}
	m := headersToMap(hdrs)
	if len(m) != 2 || m["k1"] != "v1" || m["k2"] != "v2" {
		t.Fatalf("unexpected map: %#v", m)
	}
	if headersToMap(nil) != nil {
		t.Fatal("expected nil map for nil headers")
	}
}
