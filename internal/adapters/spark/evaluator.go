// Package spark evaluates sweep trials by running generated PySpark in a
// remote session.
package spark

import (
	"bufio"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/elbow/internal/domain/sweep"
	"github.com/okian/elbow/pkg/logger"
)

// Algorithms the generated code can fit.
const (
	AlgorithmGBT = "gbt"
	AlgorithmRF  = "rf"
)

// Runner executes code remotely and returns its printed output.
type Runner interface {
	Run(ctx context.Context, code string) (string, error)
}

// Job describes the data and model a sweep works on.
type Job struct {
	TrainPath      string
	ValidationPath string
	Label          string
	Features       []string
	Algorithm      string
	LearningRate   float64
	Seed           int64
	// ModelDir is the remote directory final models are saved under.
	ModelDir string
}

// Result is the JSON line a statement prints.
type Result struct {
	Param          int      `json:"param"`
	MSE            *float64 `json:"mse,omitempty"`
	Path           string   `json:"path,omitempty"`
	TrainRows      int      `json:"train_rows,omitempty"`
	ValidationRows int      `json:"validation_rows,omitempty"`
}

// Evaluator implements sweep.Evaluator and sweep.Trainer over a Runner.
// The datasets are loaded into the session once, on first use.
type Evaluator struct {
	runner Runner
	job    Job
	log    logger.Logger

	mu       sync.Mutex
	prepared bool
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the evaluator's logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		e.log = l
	}
}

// New checks the job and returns an Evaluator.
func New(r Runner, job Job, opts ...Option) (*Evaluator, error) {
	if job.Algorithm == "" {
		job.Algorithm = AlgorithmGBT
	}
	if job.Algorithm != AlgorithmGBT && job.Algorithm != AlgorithmRF {
		return nil, fmt.Errorf("%w: %q", ErrAlgorithm, job.Algorithm)
	}
	if job.LearningRate <= 0 {
		job.LearningRate = 0.1
	}
	e := &Evaluator{runner: r, job: job, log: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Evaluator) prepare(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.prepared {
		return nil
	}
	code, err := render(setupTmpl, e.job)
	if err != nil {
		return fmt.Errorf("render setup: %w", err)
	}
	res, err := e.run(ctx, code)
	if err != nil {
		return fmt.Errorf("load datasets: %w", err)
	}
	e.log.Info(ctx, "remote datasets loaded",
		logger.Int("train_rows", res.TrainRows),
		logger.Int("validation_rows", res.ValidationRows),
	)
	e.prepared = true
	return nil
}

func (e *Evaluator) run(ctx context.Context, code string) (Result, error) {
	out, err := e.runner.Run(ctx, code)
	if err != nil {
		return Result{}, err
	}
	return ParseResult(out)
}

// Evaluate fits at param on the training split and returns validation MSE.
func (e *Evaluator) Evaluate(ctx context.Context, param int) (float64, error) {
	if err := e.prepare(ctx); err != nil {
		return 0, err
	}
	code, err := render(evaluateTmpl, struct{ Param int }{param})
	if err != nil {
		return 0, fmt.Errorf("render evaluate: %w", err)
	}
	res, err := e.run(ctx, code)
	if err != nil {
		return 0, err
	}
	if res.MSE == nil {
		return 0, fmt.Errorf("%w: missing mse for param %d", ErrNoResult, param)
	}
	return *res.MSE, nil
}

// ModelPath is where Fit saves the model for param.
func (e *Evaluator) ModelPath(param int) string {
	return path.Join(e.job.ModelDir, fmt.Sprintf("%s-%d", e.job.Algorithm, param))
}

// Fit retrains on both splits and saves the model remotely.
func (e *Evaluator) Fit(ctx context.Context, param int) (sweep.Artifact, error) {
	if err := e.prepare(ctx); err != nil {
		return sweep.Artifact{}, err
	}
	code, err := render(fitTmpl, struct {
		Param int
		Path  string
	}{param, e.ModelPath(param)})
	if err != nil {
		return sweep.Artifact{}, fmt.Errorf("render fit: %w", err)
	}
	res, err := e.run(ctx, code)
	if err != nil {
		return sweep.Artifact{}, err
	}
	if res.Path == "" {
		return sweep.Artifact{}, fmt.Errorf("%w: missing model path for param %d", ErrNoResult, param)
	}
	return sweep.Artifact{
		Param:      param,
		Algorithm:  e.job.Algorithm,
		RemotePath: res.Path,
		Trained:    time.Now().UTC(),
	}, nil
}

// ParseResult decodes the last JSON object line of out. Spark logs and
// warnings printed before it are ignored.
func ParseResult(out string) (Result, error) {
	var last string
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "{") && strings.HasSuffix(line, "}") {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("scan output: %w", err)
	}
	if last == "" {
		return Result{}, ErrNoResult
	}
	var r Result
	if err := json.Unmarshal([]byte(last), &r); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	return r, nil
}
