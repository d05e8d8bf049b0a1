package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/elbow/internal/adapters/mq/queue"
	"github.com/okian/elbow/internal/adapters/mq/worker"
	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/internal/domain/sweep"
	"github.com/okian/elbow/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type collector struct {
	mu      sync.Mutex
	results []model.TrialResult
	all     chan struct{}
	want    int
}

func newCollector(want int) *collector {
	return &collector{want: want, all: make(chan struct{})}
}

func (c *collector) Record(_ context.Context, res model.TrialResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, res)
	if len(c.results) == c.want {
		close(c.all)
	}
}

func (c *collector) wait(t *testing.T) []model.TrialResult {
	select {
	case <-c.all:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trial results")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.TrialResult(nil), c.results...)
}

func init() {
	_ = logger.Init(logger.WithFormat("json"))
	_ = logger.SetLevelString("error")
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over a queue of trials", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		boom := errors.New("boom")
		ev := sweep.EvaluatorFunc(func(_ context.Context, p int) (float64, error) {
			if p == 3 {
				return 0, boom
			}
			return 10 / float64(p), nil
		})

		convey.Convey("When five trials are processed", func() {
			rec := newCollector(5)
			pool := worker.NewPool(3, q, ev, rec)
			pool.Start(ctx)

			var ts []model.Trial
			for p := 1; p <= 5; p++ {
				ts = append(ts, model.Trial{SweepID: "s", Param: p})
			}
			convey.So(q.Enqueue(ctx, ts...), convey.ShouldBeNil)
			results := rec.wait(t)

			convey.Convey("Then every trial is recorded with its outcome", func() {
				convey.So(pool.Size(), convey.ShouldEqual, 3)
				byParam := map[int]model.TrialResult{}
				for _, r := range results {
					byParam[r.Param] = r
				}
				convey.So(byParam, convey.ShouldHaveLength, 5)
				convey.So(byParam[2].Error, convey.ShouldEqual, 5)
				convey.So(byParam[2].Err, convey.ShouldBeNil)
				convey.So(errors.Is(byParam[3].Err, boom), convey.ShouldBeTrue)
				convey.So(byParam[5].SweepID, convey.ShouldEqual, "s")
			})

			convey.Convey("Then shutdown drains and stops the workers", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a trial outlives its timeout", func() {
			slow := sweep.EvaluatorFunc(func(ctx context.Context, _ int) (float64, error) {
				<-ctx.Done()
				return 0, ctx.Err()
			})
			rec := newCollector(1)
			pool := worker.NewPool(1, q, slow, rec, worker.WithTrialTimeout(10*time.Millisecond))
			pool.Start(ctx)
			convey.So(q.Enqueue(ctx, model.Trial{SweepID: "s", Param: 1}), convey.ShouldBeNil)

			convey.Convey("Then the result carries the deadline error", func() {
				res := rec.wait(t)
				convey.So(errors.Is(res[0].Err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerShutdown(t *testing.T) {
	convey.Convey("Given a single idle worker", t, func() {
		q := queue.NewInMemoryQueue()
		w := worker.New(q, sweep.EvaluatorFunc(func(context.Context, int) (float64, error) { return 1, nil }),
			worker.RecorderFunc(func(context.Context, model.TrialResult) {}),
			worker.WithName("solo"))
		go w.Run(context.Background())

		convey.Convey("Then shutdown returns promptly", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
		})
	})
}
