package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func trials(sweepID string, params ...int) []Trial {
	out := make([]Trial, len(params))
	for i, p := range params {
		out[i] = Trial{SweepID: sweepID, Param: p}
	}
	return out
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if err := q.Enqueue(ctx, trials("s1", 1)...); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.SweepID != "s1" || got.Param != 1 {
		t.Errorf("unexpected trial %+v", got)
	}
}

func TestInMemoryQueue_AllOrNothing(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(3))
	ctx := context.Background()

	if err := q.Enqueue(ctx, trials("s1", 1, 2)...); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if err := q.Enqueue(ctx, trials("s2", 1, 2)...); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(); l != 2 {
		t.Errorf("rejected batch must not be partially queued, length %d", l)
	}
	if err := q.Enqueue(ctx, trials("s3", 9)...); err != nil {
		t.Errorf("expected the last slot to be usable, got %v", err)
	}
	if c := q.Cap(); c != 3 {
		t.Errorf("expected capacity 3, got %d", c)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, trials("s", 1)...); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(50))
	ctx := context.Background()
	const producers, perProducer = 10, 100

	var consumed sync.WaitGroup
	counts := make(chan int, producers*perProducer)
	for range 4 {
		consumed.Add(1)
		go func() {
			defer consumed.Done()
			for tr := range q.Dequeue(ctx) {
				counts <- tr.Param
			}
		}()
	}

	var produced sync.WaitGroup
	for i := range producers {
		produced.Add(1)
		go func(id int) {
			defer produced.Done()
			for j := range perProducer {
				for q.Enqueue(ctx, Trial{Param: id*perProducer + j}) != nil {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}
	produced.Wait()
	_ = q.Close()
	consumed.Wait()
	close(counts)

	seen := map[int]bool{}
	for p := range counts {
		if seen[p] {
			t.Fatalf("trial %d delivered twice", p)
		}
		seen[p] = true
	}
	if len(seen) != producers*perProducer {
		t.Errorf("expected %d trials, got %d", producers*perProducer, len(seen))
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if err := q.Enqueue(ctx, trials("s", 1, 2)...); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, trials("s", 3)...); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	var drained []int
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for done := false; !done; {
		select {
		case tr, ok := <-ch:
			if !ok {
				done = true
				break
			}
			drained = append(drained, tr.Param)
		case <-timeout:
			t.Fatal("expected dequeue channel to close")
		}
	}
	if len(drained) != 2 {
		t.Errorf("expected queued trials to drain, got %v", drained)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got %v", err)
	}
}
