package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/okian/elbow/internal/adapters/livy"
	"github.com/okian/elbow/internal/adapters/spark"
	"github.com/okian/elbow/internal/adapters/storage"
	"github.com/okian/elbow/internal/adapters/table"
	"github.com/okian/elbow/internal/config"
	"github.com/okian/elbow/internal/domain/regression"
	"github.com/okian/elbow/pkg/logger"
)

const (
	trainFile      = "train.csv"
	validationFile = "validation.csv"
)

// buildBackend loads and splits the dataset, publishes both splits to the
// store and wires the evaluator that scores trials.
func (s *Service) buildBackend(ctx context.Context) error {
	switch s.backend {
	case config.BackendLocal:
		if s.algorithm != regression.AlgorithmGBT {
			return fmt.Errorf("%w: the local backend fits %q only, got %q", ErrUnsupported, regression.AlgorithmGBT, s.algorithm)
		}
	case config.BackendLivy:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrUnsupported, s.backend)
	}

	train, valid, err := s.loadSplits(ctx)
	if err != nil {
		return err
	}
	if err := s.openStorage(); err != nil {
		return err
	}
	trainPath, validPath, err := s.publish(ctx, train, valid)
	if err != nil {
		return err
	}

	sel, err := valid.Select(s.features...)
	if err != nil {
		return err
	}
	s.columns = s.features
	s.example = sel.Row(0)

	if s.backend == config.BackendLocal {
		return s.useLocal(train, valid)
	}
	return s.useLivy(ctx, trainPath, validPath)
}

func (s *Service) loadSplits(ctx context.Context) (train, valid *table.Table, err error) {
	loader, err := table.NewLoader(ctx, table.WithLogger(s.logger))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = loader.Close() }()

	cols := append([]string{s.label}, s.features...)
	t, err := loader.Load(ctx, s.dataPath, cols...)
	if err != nil {
		return nil, nil, err
	}
	if s.sampleRows > 0 {
		t = t.Sample(s.sampleRows, s.seed)
	}
	train, valid = t.Split(s.validationFraction, s.seed)
	s.logger.Info(ctx, "dataset split",
		logger.String("path", s.dataPath),
		logger.Int("train_rows", train.Rows()),
		logger.Int("validation_rows", valid.Rows()),
	)
	return train, valid, nil
}

func (s *Service) openStorage() error {
	if s.backend == config.BackendLivy {
		h, err := storage.NewHDFS(s.namenodes, s.hdfsUser, storage.WithHDFSLogger(s.logger))
		if err != nil {
			return err
		}
		s.storage = h
		return nil
	}
	l, err := storage.NewLocal(filepath.Join(s.workDir, "store"))
	if err != nil {
		return err
	}
	s.storage = l
	return nil
}

// publish writes both splits to the work directory and uploads them
// concurrently, returning their remote paths.
func (s *Service) publish(ctx context.Context, train, valid *table.Table) (string, string, error) {
	dir := filepath.Join(s.workDir, "splits")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create split dir: %w", err)
	}
	trainRemote := path.Join(s.remoteDir, "data", trainFile)
	validRemote := path.Join(s.remoteDir, "data", validationFile)

	g, gctx := errgroup.WithContext(ctx)
	for _, split := range []struct {
		t      *table.Table
		name   string
		remote string
	}{
		{train, trainFile, trainRemote},
		{valid, validationFile, validRemote},
	} {
		g.Go(func() error {
			local := filepath.Join(dir, split.name)
			if err := writeCSV(local, split.t); err != nil {
				return err
			}
			return s.storage.Put(gctx, local, split.remote)
		})
	}
	if err := g.Wait(); err != nil {
		return "", "", fmt.Errorf("publish splits: %w", err)
	}
	return trainRemote, validRemote, nil
}

func writeCSV(name string, t *table.Table) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return t.WriteCSV(f)
}

func (s *Service) useLocal(train, valid *table.Table) error {
	trainDS, err := dataset(train, s.label, s.features)
	if err != nil {
		return err
	}
	validDS, err := dataset(valid, s.label, s.features)
	if err != nil {
		return err
	}
	ev := regression.NewLocalEvaluator(trainDS, validDS, s.learningRate)
	s.evaluator, s.trainer = ev, ev
	return nil
}

func dataset(t *table.Table, label string, features []string) (regression.Dataset, error) {
	x, err := t.Matrix(features...)
	if err != nil {
		return regression.Dataset{}, err
	}
	y, err := t.Column(label)
	if err != nil {
		return regression.Dataset{}, err
	}
	return regression.Dataset{X: x, Y: y}, nil
}

func (s *Service) useLivy(ctx context.Context, trainPath, validPath string) error {
	client := livy.New(s.livy.URL,
		livy.WithPollInterval(s.livy.PollInterval),
		livy.WithMaxWait(s.livy.Timeout),
		livy.WithBreakerThreshold(s.livy.BreakerTrips),
		livy.WithLogger(s.logger),
	)
	h, err := livy.Open(ctx, client, livy.SessionRequest{
		Kind:           s.livy.Kind,
		Name:           "elbow-" + s.modelName,
		ProxyUser:      s.livy.ProxyUser,
		ExecutorCores:  s.livy.ExecutorCores,
		ExecutorMemory: s.livy.ExecutorMem,
	})
	if err != nil {
		return err
	}
	ev, err := spark.New(h, spark.Job{
		TrainPath:      trainPath,
		ValidationPath: validPath,
		Label:          s.label,
		Features:       s.features,
		Algorithm:      s.algorithm,
		LearningRate:   s.learningRate,
		Seed:           s.seed,
		ModelDir:       path.Join(s.remoteDir, "models"),
	}, spark.WithLogger(s.logger))
	if err != nil {
		_ = h.Close(context.WithoutCancel(ctx))
		return err
	}
	s.session = h
	s.evaluator, s.trainer = ev, ev
	s.logger.Info(ctx, "livy session ready", logger.Int("session", h.ID()))
	return nil
}
