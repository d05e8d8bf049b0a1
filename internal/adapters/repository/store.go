// Package repository keeps sweep runs and their trial results for status
// queries.
package repository

import (
	"context"

	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/internal/domain/sweep"
)

// Store provides read/write access to sweep runs. Returned runs are copies.
type Store interface {
	// Create adds a pending run. Returns ErrExists for a known id.
	Create(ctx context.Context, run *model.Run) error

	// Record adds a trial result to its run and marks the run running.
	// complete is true exactly once, on the result that makes every trial
	// of the run accounted for.
	Record(ctx context.Context, res model.TrialResult) (run *model.Run, complete bool, err error)

	// Finish marks a run completed with its recommendation and model.
	Finish(ctx context.Context, id string, rec sweep.Recommendation, handle *model.ModelHandle) error

	// Fail marks a run failed.
	Fail(ctx context.Context, id string, reason string) error

	// Get returns a run or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Run, error)

	// List returns runs newest first.
	List(ctx context.Context) ([]*model.Run, error)

	// Count returns the number of runs and how many are not finished.
	Count(ctx context.Context) (total, active int)
}
