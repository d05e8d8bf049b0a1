// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/elbow/internal/adapters/http/api"
	"github.com/okian/elbow/internal/adapters/livy"
	"github.com/okian/elbow/internal/adapters/mq/queue"
	"github.com/okian/elbow/internal/adapters/mq/worker"
	"github.com/okian/elbow/internal/adapters/registry"
	"github.com/okian/elbow/internal/adapters/repository"
	"github.com/okian/elbow/internal/adapters/storage"
	"github.com/okian/elbow/internal/config"
	"github.com/okian/elbow/internal/domain/dedupe"
	"github.com/okian/elbow/internal/domain/elbow"
	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/internal/domain/sweep"
	"github.com/okian/elbow/internal/domain/types"
	"github.com/okian/elbow/pkg/logger"
	"github.com/okian/elbow/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Report is the outcome of a synchronous sweep.
type Report struct {
	Result         sweep.Result
	Recommendation sweep.Recommendation
	Model          *model.ModelHandle
}

// Service runs sweeps against the configured backend and keeps their runs
// for status queries.
type Service struct {
	mu sync.RWMutex

	// Components, built by Start.
	store     repository.Store
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	pool      *worker.Pool
	registry  *registry.Registry
	storage   storage.Storage
	session   *livy.Handle
	evaluator sweep.Evaluator
	trainer   sweep.Trainer
	cancel    context.CancelFunc

	// Configuration
	workerCount        int
	queueSize          int
	dedupeSize         int
	trialTimeout       time.Duration
	backend            string
	algorithm          string
	learningRate       float64
	dataPath           string
	label              string
	features           []string
	sampleRows         int
	validationFraction float64
	seed               int64
	retrain            bool
	modelName          string
	livy               LivySettings
	namenodes          []string
	hdfsUser           string
	remoteDir          string
	workDir            string
	registryDir        string
	memIndex           bool

	// Registry input example, aligned with columns.
	columns []string
	example []float64

	started bool
	logger  logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:        runtime.NumCPU(),
		queueSize:          10_000,
		dedupeSize:         dedupe.DefaultCapacity,
		backend:            config.BackendLocal,
		algorithm:          "gbt",
		learningRate:       0.1,
		validationFraction: 0.2,
		seed:               42,
		modelName:          "elbow-gbt",
		remoteDir:          "/user/elbow",
		workDir:            "work",
		registryDir:        "models",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the backend and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting elbow service", logger.String("backend", s.backend))

	if s.evaluator == nil {
		if err := s.buildBackend(ctx); err != nil {
			s.release(ctx)
			return fmt.Errorf("build %s backend: %w", s.backend, err)
		}
	} else if t, ok := s.evaluator.(sweep.Trainer); ok {
		s.trainer = t
	}

	regOpts := []registry.Option{registry.WithLogger(s.logger)}
	if s.memIndex {
		regOpts = append(regOpts, registry.WithInMemoryIndex())
	}
	reg, err := registry.Open(s.registryDir, regOpts...)
	if err != nil {
		s.release(ctx)
		return fmt.Errorf("open registry: %w", err)
	}
	s.registry = reg

	s.store = repository.NewMemoryStore()
	s.deduper = dedupe.New(dedupe.WithCapacity(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.evaluator, worker.RecorderFunc(s.record),
		worker.WithLogger(s.logger),
		worker.WithTrialTimeout(s.trialTimeout),
	)

	// Workers outlive the caller's context; Stop ends them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "elbow service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the queue and closes the session, storage and registry.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping elbow service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.cancel()
	s.release(ctx)

	s.started = false
	s.logger.Info(ctx, "elbow service stopped")
}

// release closes whatever external resources have been opened.
func (s *Service) release(ctx context.Context) {
	if s.session != nil {
		if err := s.session.Close(ctx); err != nil {
			s.logger.Warn(ctx, "close livy session", logger.Error(err))
		}
		s.session = nil
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			s.logger.Warn(ctx, "close storage", logger.Error(err))
		}
		s.storage = nil
	}
	if s.registry != nil {
		if err := s.registry.Close(); err != nil {
			s.logger.Warn(ctx, "close registry", logger.Error(err))
		}
		s.registry = nil
	}
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Submit starts an asynchronous sweep. A request ID seen before returns the
// run it started instead of a new one.
func (s *Service) Submit(ctx context.Context, req types.SweepRequest) (types.SweepAccepted, error) {
	if !s.running() {
		return types.SweepAccepted{}, api.WrapKind("submit", api.ErrUnavailable, ErrNotStarted)
	}
	rng := req.Range()
	if err := rng.Validate(); err != nil {
		return types.SweepAccepted{}, err
	}
	if n := rng.Len(); n > s.queue.Cap() {
		return types.SweepAccepted{}, fmt.Errorf("%w: %d trials exceed the queue capacity of %d", sweep.ErrInvalidRange, n, s.queue.Cap())
	}

	id := uuid.NewString()
	if prior, dup := s.deduper.Claim(ctx, req.RequestID, id); dup {
		metrics.RecordSweepDuplicate()
		s.logger.Debug(ctx, "duplicate sweep request",
			logger.String("request_id", req.RequestID),
			logger.String("sweep", prior),
		)
		return types.SweepAccepted{SweepID: prior, Duplicate: true}, nil
	}

	now := time.Now().UTC()
	run := &model.Run{
		ID:        id,
		RequestID: req.RequestID,
		Range:     rng,
		State:     model.RunPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, run); err != nil {
		s.deduper.Release(ctx, req.RequestID)
		return types.SweepAccepted{}, err
	}

	values := rng.Values()
	trials := make([]model.Trial, len(values))
	for i, p := range values {
		trials[i] = model.Trial{SweepID: id, Param: p, Enqueued: now}
	}
	if err := s.queue.Enqueue(ctx, trials...); err != nil {
		s.deduper.Release(ctx, req.RequestID)
		if ferr := s.store.Fail(ctx, id, "rejected: "+err.Error()); ferr != nil {
			s.logger.Warn(ctx, "fail rejected run", logger.String("sweep", id), logger.Error(ferr))
		}
		metrics.RecordSweepFailed()
		return types.SweepAccepted{}, fmt.Errorf("enqueue sweep %s: %w", id, err)
	}

	metrics.RecordSweepSubmitted()
	s.logger.Info(ctx, "sweep submitted",
		logger.String("sweep", id),
		logger.String("request_id", req.RequestID),
		logger.Int("trials", len(trials)),
	)
	return types.SweepAccepted{SweepID: id}, nil
}

// record stores a trial result and finalizes the run on its last trial.
func (s *Service) record(ctx context.Context, res model.TrialResult) {
	run, complete, err := s.store.Record(ctx, res)
	if err != nil {
		s.logger.Warn(ctx, "drop trial result",
			logger.String("sweep", res.SweepID),
			logger.Int("param", res.Param),
			logger.Error(err),
		)
		return
	}
	if complete {
		s.finalize(ctx, run)
	}
}

func (s *Service) finalize(ctx context.Context, run *model.Run) {
	rec, handle, err := s.conclude(ctx, run)
	if err != nil {
		metrics.RecordSweepFailed()
		s.logger.Error(ctx, "sweep failed", logger.String("sweep", run.ID), logger.Error(err))
		if ferr := s.store.Fail(ctx, run.ID, err.Error()); ferr != nil {
			s.logger.Warn(ctx, "mark run failed", logger.String("sweep", run.ID), logger.Error(ferr))
		}
		return
	}
	if err := s.store.Finish(ctx, run.ID, rec, handle); err != nil {
		s.logger.Warn(ctx, "finish run", logger.String("sweep", run.ID), logger.Error(err))
		return
	}
	metrics.RecordSweepCompleted()
	s.logger.Info(ctx, "sweep completed",
		logger.String("sweep", run.ID),
		logger.Int("param", rec.Param),
		logger.Float64("error", rec.Error),
	)
}

func (s *Service) conclude(ctx context.Context, run *model.Run) (sweep.Recommendation, *model.ModelHandle, error) {
	if run.Failed > 0 {
		return sweep.Recommendation{}, nil, fmt.Errorf("%w: %d of %d, first: %s", ErrTrialsFailed, run.Failed, run.Total(), run.Failure)
	}
	res, err := sweep.NewResult(run.Points)
	if err != nil {
		return sweep.Recommendation{}, nil, err
	}
	rec, err := s.recommend(res)
	if err != nil {
		return sweep.Recommendation{}, nil, err
	}
	handle, err := s.register(ctx, rec)
	if err != nil {
		return sweep.Recommendation{}, nil, err
	}
	return rec, handle, nil
}

func (s *Service) recommend(res sweep.Result) (sweep.Recommendation, error) {
	rec, err := sweep.Recommend(res)
	if err != nil {
		metrics.RecordElbowFailure(failureKind(err))
		return sweep.Recommendation{}, err
	}
	metrics.RecordElbowSelection(float64(rec.Param))
	return rec, nil
}

// register refits at the recommended value and saves the model. It returns
// nil when retraining is disabled or no trainer is available.
func (s *Service) register(ctx context.Context, rec sweep.Recommendation) (*model.ModelHandle, error) {
	if !s.retrain || s.trainer == nil {
		return nil, nil
	}
	art, err := s.trainer.Fit(ctx, rec.Param)
	if err != nil {
		return nil, fmt.Errorf("retrain at %d: %w", rec.Param, err)
	}

	entry := registry.Entry{
		Name:      s.modelName,
		Algorithm: art.Algorithm,
		Param:     art.Param,
		Label:     s.label,
		Columns:   s.columns,
		Example:   s.example,
		Metrics: map[string]float64{
			"validation_mse": rec.Error,
			"elbow_distance": rec.Distance,
		},
		Model: art.Payload,
	}
	if art.RemotePath != "" {
		if s.storage == nil {
			return nil, fmt.Errorf("pull model %s: %w", art.RemotePath, ErrUnsupported)
		}
		local := filepath.Join(s.workDir, "pulled", path.Base(art.RemotePath))
		if err := s.storage.Get(ctx, art.RemotePath, local); err != nil {
			return nil, fmt.Errorf("pull model: %w", err)
		}
		defer func() { _ = os.RemoveAll(local) }()
		entry.Dir = local
	}

	handle, err := s.registry.Save(ctx, entry)
	if err != nil {
		return nil, err
	}
	return &handle, nil
}

// Run sweeps r synchronously on the configured backend.
func (s *Service) Run(ctx context.Context, r sweep.Range) (Report, error) {
	if !s.running() {
		return Report{}, ErrNotStarted
	}
	res, err := sweep.Collect(sweep.Trials(ctx, r, s.evaluator))
	if err != nil {
		return Report{}, err
	}
	rec, err := s.recommend(res)
	if err != nil {
		return Report{}, err
	}
	handle, err := s.register(ctx, rec)
	if err != nil {
		return Report{}, err
	}
	return Report{Result: res, Recommendation: rec, Model: handle}, nil
}

// Select picks the elbow of an explicit sweep.
func (s *Service) Select(params []int, errs []float64) (types.ElbowResponse, error) {
	a, err := elbow.Analyze(params, errs)
	if err != nil {
		metrics.RecordElbowFailure(failureKind(err))
		return types.ElbowResponse{}, err
	}
	metrics.RecordElbowSelection(float64(a.Param))
	return types.ElbowResponse{
		Param:     a.Param,
		Index:     a.Index,
		Slope:     a.Slope,
		Intercept: a.Intercept,
		Distances: a.Distances,
	}, nil
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, elbow.ErrDegenerateSweep):
		return "degenerate"
	case errors.Is(err, elbow.ErrInvalidSweep):
		return "invalid"
	default:
		return "other"
	}
}

// Sweep returns the status of a run.
func (s *Service) Sweep(ctx context.Context, id string) (types.SweepStatus, error) {
	if !s.running() {
		return types.SweepStatus{}, api.WrapKind("sweep", api.ErrUnavailable, ErrNotStarted)
	}
	run, err := s.store.Get(ctx, id)
	if err != nil {
		return types.SweepStatus{}, err
	}
	return types.NewSweepStatus(run), nil
}

// Models lists registered models, newest first.
func (s *Service) Models(ctx context.Context) ([]types.Model, error) {
	if !s.running() {
		return nil, api.WrapKind("models", api.ErrUnavailable, ErrNotStarted)
	}
	metas, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Model, len(metas))
	for i, m := range metas {
		out[i] = toModel(m)
	}
	return out, nil
}

// Model returns one registered model.
func (s *Service) Model(ctx context.Context, id string) (types.Model, error) {
	if !s.running() {
		return types.Model{}, api.WrapKind("model", api.ErrUnavailable, ErrNotStarted)
	}
	m, err := s.registry.Get(ctx, id)
	if err != nil {
		return types.Model{}, err
	}
	return toModel(m), nil
}

func toModel(m registry.Metadata) types.Model {
	return types.Model{
		ID:        m.ID,
		Name:      m.Name,
		Version:   m.Version,
		Algorithm: m.Algorithm,
		Param:     m.Param,
		URI:       m.URI,
		Columns:   m.Columns,
		CreatedAt: m.CreatedAt,
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{Backend: s.backend}
	if !s.started {
		return stats
	}
	total, active := s.store.Count(context.Background())
	stats.QueueSize = s.queue.Len()
	stats.QueueCapacity = s.queue.Cap()
	stats.Workers = s.pool.Size()
	stats.Runs = total
	stats.ActiveRuns = active
	stats.DedupeSize = s.deduper.Size()
	return stats
}
