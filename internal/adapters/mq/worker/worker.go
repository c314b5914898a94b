// Package worker drains counter events off the queue and hands them to the
// stream hub for delivery to live subscribers.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/clickrank/internal/adapters/mq/queue"
	"github.com/okian/clickrank/pkg/logger"
	"github.com/okian/clickrank/pkg/metrics"
)

const defaultName = "dispatcher"

// Event is what the dispatcher reads off the queue.
type Event = queue.Event

// Sink receives every dequeued event. Publish must not block on slow
// subscribers.
type Sink interface {
	Publish(ctx context.Context, e Event) int
}

// Queue defines how the dispatcher receives events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker is a long-running queue consumer.
type Worker interface {
	// Run consumes events until ctx is canceled, Shutdown is called or the
	// queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the consumer and waits for Run to return.
	Shutdown(ctx context.Context) error
}

// Dispatcher is a single ordered consumer so subscribers observe counter
// values in the order they were produced.
type Dispatcher struct {
	queue Queue
	sink  Sink
	name  string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a dispatcher feeding sink from q.
func NewDispatcher(q Queue, sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:    q,
		sink:     sink,
		name:     defaultName,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = logger.Named(d.name)
	}

	return d
}

// Run starts the dispatch loop.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				d.logger.Debug(ctx, "queue closed")
				return
			}
			d.dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now()
	}
	n := d.sink.Publish(ctx, ev)
	for i := 0; i < n; i++ {
		metrics.RecordStreamDelivered()
	}
	d.logger.Debug(ctx, "count dispatched",
		logger.Int64("count", ev.Count),
		logger.String("cause", string(ev.Cause)),
		logger.Int("subscribers", n),
	)
}

// Shutdown gracefully stops the dispatcher. It is safe to call more than once.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.shutdown) })

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
