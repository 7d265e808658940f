package observer

import (
	"fmt"
	"log/slog"
	"sync"
)

// Func receives one notification.
type Func[T any] func(T)

// List holds listeners for notifications of type T. The zero value is ready
// to use and logs through slog.Default.
type List[T any] struct {
	mu        sync.RWMutex
	nextID    int
	listeners []entry[T]
	name      string
	logger    *slog.Logger
	onPanic   func()
}

type entry[T any] struct {
	id int
	fn Func[T]
}

// New returns a named list. name appears in panic logs; onPanic, when not
// nil, is called once per recovered listener panic.
func New[T any](name string, logger *slog.Logger, onPanic func()) *List[T] {
	return &List[T]{name: name, logger: logger, onPanic: onPanic}
}

// Subscribe registers fn and returns a function that removes it again.
func (l *List[T]) Subscribe(fn Func[T]) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.listeners = append(l.listeners, entry[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

// Len reports the number of registered listeners.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.listeners)
}

// Notify calls every listener registered at the time of the call, in
// registration order. Listeners may subscribe or unsubscribe during delivery;
// the change takes effect on the next Notify.
func (l *List[T]) Notify(v T) {
	l.mu.RLock()
	snapshot := make([]entry[T], len(l.listeners))
	copy(snapshot, l.listeners)
	l.mu.RUnlock()

	for _, e := range snapshot {
		l.call(e.fn, v)
	}
}

func (l *List[T]) call(fn Func[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			logger := l.logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("listener panicked", "list", l.name, "panic", fmt.Sprint(r))
			if l.onPanic != nil {
				l.onPanic()
			}
		}
	}()
	fn(v)
}

func (l *List[T]) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.listeners {
		if e.id == id {
			l.listeners = append(l.listeners[:i:i], l.listeners[i+1:]...)
			return
		}
	}
}
