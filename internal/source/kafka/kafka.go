package kafka

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/metrics"
	"github.com/five82/logdeck/internal/source"
)

const (
	defaultGroup    = "logdeck"
	maxMessageBytes = 10 * 1024 * 1024
	readRetryDelay  = 500 * time.Millisecond
)

// ErrConfig reports missing brokers or topic.
var ErrConfig = errors.New("kafka: missing brokers or topic")

// Options select the topic to consume.
type Options struct {
	Brokers []string
	Topic   string
	Group   string
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads log events from a Kafka topic. Each message value may hold
// one JSON event, a JSON array, or NDJSON. Message headers are copied into
// the event context unless the event already carries that key.
type Consumer struct {
	name    string
	opts    Options
	gate    *source.Gate
	logger  *slog.Logger
	metrics metrics.Sink
	life    source.Lifecycle
	now     func() time.Time

	newReader func(Options) MessageReader
}

var _ source.Producer = (*Consumer)(nil)

// New creates a Kafka producer forwarding to sink.
func New(name string, opts Options, sink source.Enqueuer, logger *slog.Logger, m metrics.Sink) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(opts.Group) == "" {
		opts.Group = defaultGroup
	}
	return &Consumer{
		name:      name,
		opts:      opts,
		gate:      source.NewGate(sink, name),
		logger:    logger,
		metrics:   metrics.OrNop(m),
		now:       time.Now,
		newReader: newKafkaReader,
	}
}

func newKafkaReader(opts Options) MessageReader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  opts.Brokers,
		GroupID:  opts.Group,
		Topic:    opts.Topic,
		MaxBytes: maxMessageBytes,
	})
}

// Name identifies the consumer.
func (c *Consumer) Name() string { return c.name }

// Start validates the options and begins consuming in the background.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.opts.Brokers) == 0 || strings.TrimSpace(c.opts.Topic) == "" {
		return ErrConfig
	}
	reader := c.newReader(c.opts)
	c.logger.Info("consuming kafka topic", "producer", c.name, "topic", c.opts.Topic, "group", c.opts.Group, "brokers", c.opts.Brokers)
	err := c.life.Go(ctx, func(ctx context.Context) {
		defer func() { _ = reader.Close() }()
		c.run(ctx, reader)
	})
	if err != nil {
		_ = reader.Close()
	}
	return err
}

// Stop halts consumption. No events are enqueued after it returns.
func (c *Consumer) Stop() {
	c.gate.Close()
	c.life.Stop()
}

func (c *Consumer) run(ctx context.Context, reader MessageReader) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.metrics.Count(metrics.ProducerErrors, 1)
			c.logger.Warn("kafka read failed", "producer", c.name, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}
		c.gate.Enqueue(c.decode(msg))
	}
}

func (c *Consumer) decode(msg kafka.Message) []logevent.LogEvent {
	events, err := logevent.DecodeStream(bytes.NewReader(msg.Value), c.now())
	if err != nil {
		c.metrics.Count(metrics.ProducerDecodeErrs, 1)
		c.logger.Debug("kafka message decode failed", "producer", c.name, "offset", msg.Offset, "error", err)
	}
	headers := headersToMap(msg.Headers)
	if len(headers) == 0 {
		return events
	}
	for i := range events {
		if events[i].MDC == nil {
			events[i].MDC = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			if _, exists := events[i].MDC[k]; !exists {
				events[i].MDC[k] = v
			}
		}
	}
	return events
}

func headersToMap(hdrs []kafka.Header) map[string]string {
	if len(hdrs) == 0 {
		return nil
	}
	m := make(map[string]string, len(hdrs))
	for _, h := range hdrs {
		m[h.Key] = string(h.Value)
	}
	return m
}
