// Package kafka implements the message-bus producer on top of
// segmentio/kafka-go. It joins a consumer group (default "logdeck") and turns
// every message into one or more events. Read errors are logged, counted and
// retried after a short pause; cancellation ends the loop quietly.
package kafka
