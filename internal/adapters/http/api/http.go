// Package api serves the sweep, elbow and model registry endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/elbow/internal/adapters/http/swagger"
	"github.com/okian/elbow/internal/adapters/mq/queue"
	"github.com/okian/elbow/internal/adapters/registry"
	"github.com/okian/elbow/internal/adapters/repository"
	"github.com/okian/elbow/internal/domain/elbow"
	"github.com/okian/elbow/internal/domain/sweep"
	"github.com/okian/elbow/internal/domain/types"
	"github.com/okian/elbow/pkg/logger"
	"github.com/okian/elbow/pkg/metrics"
)

const defaultMaxBodyBytes = 1 << 20

// SweepService submits and reports sweeps.
type SweepService interface {
	Submit(ctx context.Context, req types.SweepRequest) (types.SweepAccepted, error)
	Sweep(ctx context.Context, id string) (types.SweepStatus, error)
}

// ElbowService selects the elbow of an explicit sweep.
type ElbowService interface {
	Select(params []int, errs []float64) (types.ElbowResponse, error)
}

// ModelService reads the model registry.
type ModelService interface {
	Models(ctx context.Context) ([]types.Model, error)
	Model(ctx context.Context, id string) (types.Model, error)
}

// StatsProvider reports service load.
type StatsProvider interface {
	GetStats() types.Stats
}

// Dependencies bundles what the handlers call.
type Dependencies interface {
	SweepService
	ElbowService
	ModelService
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps         Dependencies
	validate     *validator.Validate
	maxBodyBytes int64
	log          logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:         deps,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		maxBodyBytes: defaultMaxBodyBytes,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/stats", s.handleStats)
	r.Post("/elbow", s.handleElbow)
	r.Route("/sweeps", func(r chi.Router) {
		r.Post("/", s.handleSubmitSweep)
		r.Get("/{id}", s.handleGetSweep)
	})
	r.Route("/models", func(r chi.Router) {
		r.Get("/", s.handleListModels)
		r.Get("/{id}", s.handleGetModel)
	})
	if err := swagger.Register(r); err != nil {
		return nil, fmt.Errorf("register openapi routes: %w", err)
	}
	return r, nil
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return NewKind(op, ErrBadRequest)
		}
		return WrapKind(op, ErrBadRequest, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Code: code, Message: msg})
}

// fail maps err to a status and error code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, sweep.ErrInvalidRange):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, elbow.ErrDegenerateSweep):
		status, code = http.StatusUnprocessableEntity, "degenerate_sweep"
	case errors.Is(err, elbow.ErrInvalidSweep), errors.Is(err, ErrUnprocessable):
		status, code = http.StatusUnprocessableEntity, "invalid_sweep"
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound), errors.Is(err, registry.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull):
		status, code = http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrUnavailable), errors.Is(err, queue.ErrClosed):
		status, code = http.StatusServiceUnavailable, "unavailable"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
		s.log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}
