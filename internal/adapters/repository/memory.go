package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/internal/domain/sweep"
)

// MemoryStore is a mutex-guarded Store.
type MemoryStore struct {
	mu      sync.RWMutex
	runs    map[string]*model.Run
	order   []string // creation order
	maxRuns int
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{runs: make(map[string]*model.Run), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, run *model.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, run.ID)
	}
	r := run.Clone()
	now := s.now()
	if r.State == "" {
		r.State = model.RunPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.runs[r.ID] = r
	s.order = append(s.order, r.ID)
	s.evict()
	return nil
}

// evict drops the oldest finished runs while over capacity. Caller holds mu.
func (s *MemoryStore) evict() {
	if s.maxRuns <= 0 {
		return
	}
	for i := 0; len(s.runs) > s.maxRuns && i < len(s.order); {
		id := s.order[i]
		if s.runs[id].State.Terminal() {
			delete(s.runs, id)
			s.order = slices.Delete(s.order, i, i+1)
			continue
		}
		i++
	}
}

func (s *MemoryStore) Record(_ context.Context, res model.TrialResult) (*model.Run, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[res.SweepID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, res.SweepID)
	}
	if r.State.Terminal() {
		return r.Clone(), false, fmt.Errorf("%w: %s", ErrFinished, r.ID)
	}
	before := r.Done()
	if res.Err != nil {
		r.Failed++
		if r.Failure == "" {
			r.Failure = fmt.Sprintf("param %d: %v", res.Param, res.Err)
		}
	} else {
		r.Points = append(r.Points, res.Point())
		slices.SortFunc(r.Points, func(a, b sweep.Point) int { return a.Param - b.Param })
	}
	r.State = model.RunRunning
	r.UpdatedAt = s.now()

	total := r.Total()
	return r.Clone(), before < total && r.Done() >= total, nil
}

func (s *MemoryStore) Finish(_ context.Context, id string, rec sweep.Recommendation, handle *model.ModelHandle) error {
	return s.finalize(id, func(r *model.Run) {
		r.State = model.RunCompleted
		r.Recommendation = &rec
		r.Failure = ""
		if handle != nil {
			h := *handle
			r.Model = &h
		}
	})
}

func (s *MemoryStore) Fail(_ context.Context, id string, reason string) error {
	return s.finalize(id, func(r *model.Run) {
		r.State = model.RunFailed
		r.Failure = reason
	})
}

func (s *MemoryStore) finalize(id string, apply func(*model.Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if r.State.Terminal() {
		return fmt.Errorf("%w: %s", ErrFinished, id)
	}
	apply(r)
	r.UpdatedAt = s.now()
	s.evict()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context) ([]*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.runs[s.order[i]].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (total, active int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.runs {
		if !r.State.Terminal() {
			active++
		}
	}
	return len(s.runs), active
}
