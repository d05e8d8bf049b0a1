// Package queue holds sweep trials waiting for a worker.
package queue

import (
	"context"
	"sync"

	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/pkg/metrics"
)

const defaultQueueCapacity = 10000

// Trial is the payload flowing through the queue.
type Trial = model.Trial

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds every trial or none of them. It never blocks.
	Enqueue(ctx context.Context, trials ...Trial) error

	// Dequeue returns a channel of trials that is closed once the queue is
	// closed and drained, or ctx ends.
	Dequeue(ctx context.Context) <-chan Trial

	Len() int
	Cap() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	trials   chan Trial
	capacity int

	mu     sync.Mutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.trials = make(chan Trial, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, trials ...Trial) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.closed:
		metrics.RecordQueueRejected("closed")
		return ErrClosed
	case ctx.Err() != nil:
		metrics.RecordQueueRejected("context_cancelled")
		return ctx.Err()
	case len(q.trials)+len(trials) > q.capacity:
		metrics.RecordQueueRejected("capacity_exceeded")
		return ErrFull
	}

	// Senders are serialised by mu and consumers only drain, so the
	// capacity check above guarantees these sends do not block.
	for _, t := range trials {
		q.trials <- t
	}
	metrics.UpdateQueueSize(len(q.trials))
	return nil
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Trial {
	out := make(chan Trial)
	go func() {
		defer close(out)
		for {
			select {
			case t, ok := <-q.trials:
				if !ok {
					return
				}
				metrics.UpdateQueueSize(len(q.trials))
				select {
				case out <- t:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) Len() int { return len(q.trials) }

func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops new trials. Trials already queued are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.trials)
	q.closed = true
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
