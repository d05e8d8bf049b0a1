// Package dedupe tracks sweep request IDs so that a resubmitted request is
// answered with the run it already started.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// DefaultCapacity bounds the tracker when no capacity option is given.
const DefaultCapacity = 50000

// Deduper remembers request IDs and the run each one started.
type Deduper interface {
	// Claim records id against runID unless id is already known, in which
	// case it returns the run recorded first and true.
	Claim(ctx context.Context, id, runID string) (string, bool)

	// Release forgets id so that a failed submission can be retried.
	Release(ctx context.Context, id string)

	Size() int64
}

type entry struct {
	id    string
	runID string
}

// tracker keeps at most capacity IDs and evicts the oldest first.
// A capacity of zero or less disables eviction.
type tracker struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

// New returns an in-memory Deduper.
func New(opts ...Option) Deduper {
	t := &tracker{capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(t)
	}
	t.order = list.New()
	t.index = make(map[string]*list.Element)
	return t
}

func (t *tracker) Claim(_ context.Context, id, runID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.index[id]; ok {
		return el.Value.(entry).runID, true
	}
	if t.capacity > 0 && t.order.Len() >= t.capacity {
		oldest := t.order.Back()
		t.order.Remove(oldest)
		delete(t.index, oldest.Value.(entry).id)
	}
	t.index[id] = t.order.PushFront(entry{id: id, runID: runID})
	return runID, false
}

func (t *tracker) Release(_ context.Context, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.index[id]; ok {
		t.order.Remove(el)
		delete(t.index, id)
	}
}

func (t *tracker) Size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int64(t.order.Len())
}
