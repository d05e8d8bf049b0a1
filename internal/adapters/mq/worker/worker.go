package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/internal/domain/sweep"
	"github.com/okian/elbow/pkg/logger"
	"github.com/okian/elbow/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Recorder receives every trial outcome.
type Recorder interface {
	Record(ctx context.Context, res model.TrialResult)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, res model.TrialResult)

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, res model.TrialResult) { f(ctx, res) }

// Queue defines how workers receive trials.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Trial
}

// Worker evaluates trials until its queue closes or it is shut down.
type Worker struct {
	queue        Queue
	evaluator    sweep.Evaluator
	recorder     Recorder
	name         string
	trialTimeout time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a worker.
func New(q Queue, ev sweep.Evaluator, rec Recorder, opts ...Option) *Worker {
	w := &Worker{
		queue:     q,
		evaluator: ev,
		recorder:  rec,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes trials until the queue is drained and closed, ctx ends or
// Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	trials := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-trials:
			if !ok {
				return
			}
			w.recorder.Record(ctx, w.evaluate(ctx, t))
		}
	}
}

// Shutdown stops the worker after its current trial.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *Worker) evaluate(ctx context.Context, t model.Trial) model.TrialResult {
	metrics.AddWorkerBusy(1)
	defer metrics.AddWorkerBusy(-1)

	if w.trialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.trialTimeout)
		defer cancel()
	}

	start := time.Now()
	e, err := w.evaluator.Evaluate(ctx, t.Param)
	took := time.Since(start)

	res := model.TrialResult{SweepID: t.SweepID, Param: t.Param, Error: e, Err: err, Duration: took}
	if err != nil {
		metrics.RecordTrial("error", float64(took.Milliseconds()))
		w.logger.Error(ctx, "trial failed",
			logger.String("sweep", t.SweepID),
			logger.Int("param", t.Param),
			logger.Error(err),
		)
		return res
	}
	metrics.RecordTrial("ok", float64(took.Milliseconds()))
	w.logger.Debug(ctx, "trial evaluated",
		logger.String("sweep", t.SweepID),
		logger.Int("param", t.Param),
		logger.Float64("error", e),
		logger.Duration("took", took),
	)
	return res
}

// Pool manages multiple workers reading one queue.
type Pool struct {
	workers []*Worker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates count workers; fewer than one means one per CPU.
func NewPool(count int, q Queue, ev sweep.Evaluator, rec Recorder, opts ...Option) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*Worker, count),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = New(q, ev, rec, wopts...)
	}
	metrics.UpdateWorkerCount(count)
	return p
}

// Size is the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue if it can be closed, lets the workers drain it
// and waits for them up to ctx or poolShutdownTimeout.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	sctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-sctx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers still running: %w", timedOut, sctx.Err())
	}
	return nil
}
