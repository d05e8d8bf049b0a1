package service

import (
	"time"

	"github.com/okian/elbow/internal/config"
	"github.com/okian/elbow/internal/domain/sweep"
	"github.com/okian/elbow/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of trial workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the trial queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the remembered request IDs.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithTrialTimeout bounds a single trial evaluation.
func WithTrialTimeout(d time.Duration) Option {
	return func(s *Service) { s.trialTimeout = d }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBackend selects where trials are fit: config.BackendLocal or config.BackendLivy.
func WithBackend(backend string) Option {
	return func(s *Service) { s.backend = backend }
}

// WithModel sets the swept algorithm and its learning rate.
func WithModel(algorithm string, learningRate float64) Option {
	return func(s *Service) {
		s.algorithm = algorithm
		s.learningRate = learningRate
	}
}

// WithDataset names the training file and its columns.
func WithDataset(path, label string, features ...string) Option {
	return func(s *Service) {
		s.dataPath = path
		s.label = label
		s.features = features
	}
}

// WithSampling caps the rows read and sets the validation split.
func WithSampling(rows int, validationFraction float64, seed int64) Option {
	return func(s *Service) {
		s.sampleRows = rows
		s.validationFraction = validationFraction
		s.seed = seed
	}
}

// WithRetrain refits the recommended value and registers it under name.
func WithRetrain(enabled bool, name string) Option {
	return func(s *Service) {
		s.retrain = enabled
		if name != "" {
			s.modelName = name
		}
	}
}

// LivySettings configures the remote session.
type LivySettings struct {
	URL           string
	Kind          string
	ProxyUser     string
	PollInterval  time.Duration
	Timeout       time.Duration
	BreakerTrips  uint32
	ExecutorCores int
	ExecutorMem   string
}

// WithLivy configures the remote session used by the livy backend.
func WithLivy(l LivySettings) Option {
	return func(s *Service) { s.livy = l }
}

// WithHDFS configures the distributed store used by the livy backend.
// dir is the remote working directory for both backends.
func WithHDFS(namenodes []string, user, dir string) Option {
	return func(s *Service) {
		s.namenodes = namenodes
		s.hdfsUser = user
		if dir != "" {
			s.remoteDir = dir
		}
	}
}

// WithDirs sets the local work directory and the registry root.
func WithDirs(work, registry string) Option {
	return func(s *Service) {
		if work != "" {
			s.workDir = work
		}
		if registry != "" {
			s.registryDir = registry
		}
	}
}

// WithInMemoryRegistryIndex keeps the registry index in memory.
func WithInMemoryRegistryIndex() Option {
	return func(s *Service) { s.memIndex = true }
}

// WithEvaluator replaces the configured backend. If ev also implements
// sweep.Trainer it is used for retraining.
func WithEvaluator(ev sweep.Evaluator, columns []string, example []float64) Option {
	return func(s *Service) {
		s.evaluator = ev
		s.columns = columns
		s.example = example
	}
}

// FromConfig translates cfg into options.
func FromConfig(cfg *config.Config) []Option {
	return []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithQueueSize(cfg.QueueSize),
		WithDedupeSize(cfg.DedupeSize),
		WithBackend(cfg.Backend),
		WithModel(cfg.Algorithm, cfg.LearningRate),
		WithDataset(cfg.DataPath, cfg.LabelColumn, cfg.FeatureColumns...),
		WithSampling(cfg.SampleRows, cfg.ValidationFraction, cfg.Seed),
		WithRetrain(cfg.Retrain, cfg.ModelName),
		WithLivy(LivySettings{
			URL:           cfg.LivyURL,
			Kind:          cfg.LivyKind,
			ProxyUser:     cfg.LivyProxyUser,
			PollInterval:  cfg.LivyPollInterval,
			Timeout:       cfg.LivyTimeout,
			BreakerTrips:  cfg.LivyBreakerTrips,
			ExecutorCores: cfg.LivyExecutorCores,
			ExecutorMem:   cfg.LivyExecutorMem,
		}),
		WithHDFS(cfg.HDFSNamenodes, cfg.HDFSUser, cfg.HDFSDir),
		WithDirs(cfg.WorkDir, cfg.RegistryDir),
	}
}
