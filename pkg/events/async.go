package events

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultAsyncBuffer = 256

// AsyncOption customises an Async logger.
type AsyncOption func(*Async)

// WithBuffer sets the queue size. Events arriving while the queue is full are
// dropped.
func WithBuffer(size int) AsyncOption {
	return func(a *Async) {
		if size > 0 {
			a.buffer = size
		}
	}
}

// WithAsyncLogger reports dropped events.
func WithAsyncLogger(logger *zap.Logger) AsyncOption {
	return func(a *Async) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Async decouples callers from a slow Logger (for example a database sink)
// by queueing events for a single background worker.
type Async struct {
	next    Logger
	buffer  int
	logger  *zap.Logger
	queue   chan Event
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewAsync starts the worker. Call Close to drain the queue and stop it.
func NewAsync(next Logger, opts ...AsyncOption) *Async {
	a := &Async{
		next:   next,
		buffer: defaultAsyncBuffer,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(a)
	}
	if a.next == nil {
		a.next = Nop()
	}
	a.queue = make(chan Event, a.buffer)
	a.done = make(chan struct{})
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		a.next.LogSecurityEvent(context.Background(), event)
	}
}

// LogSecurityEvent enqueues event without blocking.
func (a *Async) LogSecurityEvent(_ context.Context, event Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(event)
		return
	}
	select {
	case a.queue <- event:
	default:
		a.drop(event)
	}
}

func (a *Async) drop(event Event) {
	a.dropped.Add(1)
	a.logger.Warn("security event dropped", zap.String("type", string(event.Type)))
}

// Dropped reports how many events were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
