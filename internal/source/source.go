// Package source holds the pieces shared by event producers. Each producer
// lives in its own subpackage and feeds a dispatcher through a Gate.
package source

import (
	"context"
	"errors"
	"sync"

	"github.com/five82/logdeck/internal/logevent"
)

// ErrStarted is returned when a producer is started twice.
var ErrStarted = errors.New("producer already started")

// Enqueuer accepts batches without blocking. *dispatch.Dispatcher satisfies it.
type Enqueuer interface {
	Enqueue(events []logevent.LogEvent)
}

// Producer is a start/stop event source.
type Producer interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
}

// Gate forwards batches to an Enqueuer until it is closed. Once Close
// returns no further batch reaches the Enqueuer.
type Gate struct {
	mu     sync.Mutex
	closed bool
	next   Enqueuer
	source string
}

// NewGate tags every forwarded event with source and passes it to next.
func NewGate(next Enqueuer, source string) *Gate {
	return &Gate{next: next, source: source}
}

// Enqueue forwards events and reports whether the gate was still open.
func (g *Gate) Enqueue(events []logevent.LogEvent) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	if len(events) == 0 {
		return true
	}
	if g.source != "" {
		for i := range events {
			if events[i].Source == "" {
				events[i].Source = g.source
			}
		}
	}
	g.next.Enqueue(events)
	return true
}

// Close shuts the gate. It is safe to call more than once.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Lifecycle runs one background loop per producer and makes Stop idempotent.
type Lifecycle struct {
	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Go starts run in a goroutine with a context derived from ctx.
func (l *Lifecycle) Go(ctx context.Context, run func(ctx context.Context)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return ErrStarted
	}
	l.started = true
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go func() {
		defer close(l.done)
		run(ctx)
	}()
	return nil
}

// Stop cancels the loop and waits for it to return. Calling Stop before
// Go, or more than once, is a no-op.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the loop has returned. It is nil before Go.
func (l *Lifecycle) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}
