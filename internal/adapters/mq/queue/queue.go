// Package queue carries counter change events from request handlers to the
// stream dispatcher.
//
// Enqueue never blocks: when the buffer is full the event is dropped, so a
// slow subscriber can never hold up a request.
package queue

import (
	"context"
	"sync"

	"github.com/okian/clickrank/internal/domain/model"
	"github.com/okian/clickrank/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Event represents the payload type flowing through the queue.
type Event = model.CountEvent

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event to the queue.
	// Returns false if the queue is full or closed and the event was dropped.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns a channel that will receive events as they become available.
	// The channel will be closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the current number of queued events.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.events = make(chan Event, q.capacity)
	metrics.UpdateStreamQueueSize(0)

	return q
}

// Enqueue adds an event to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		metrics.RecordStreamDropped()
		return false
	}

	select {
	case q.events <- e:
		metrics.UpdateStreamQueueSize(len(q.events))
		return true
	default:
		metrics.RecordStreamDropped()
		return false
	}
}

// Dequeue returns a channel that will receive events as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-q.events:
				if !ok {
					return
				}
				metrics.UpdateStreamQueueSize(len(q.events))
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.events)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.events)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
