// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/elbow/internal/domain/sweep"
)

// Trial is one unit of sweep work: evaluate the model at Param.
type Trial struct {
	SweepID  string
	Param    int
	Enqueued time.Time
}

// TrialResult is the outcome of a Trial.
type TrialResult struct {
	SweepID  string
	Param    int
	Error    float64 // validation error, meaningful when Err is nil
	Err      error
	Duration time.Duration
}

// Point converts a successful result to a sweep point.
func (r TrialResult) Point() sweep.Point {
	return sweep.Point{Param: r.Param, Error: r.Error}
}

// RunState is the lifecycle of a sweep run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// Terminal reports whether no further trials will change the run.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// ModelHandle locates a registered model.
type ModelHandle struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	URI     string `json:"uri"`
}

// Run is the server-side record of one sweep.
type Run struct {
	ID             string
	RequestID      string
	Range          sweep.Range
	State          RunState
	Points         []sweep.Point
	Failed         int
	Recommendation *sweep.Recommendation
	Model          *ModelHandle
	Failure        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Total is the number of trials the run expects.
func (r *Run) Total() int { return r.Range.Len() }

// Done is the number of trials that have reported, successfully or not.
func (r *Run) Done() int { return len(r.Points) + r.Failed }

// Clone returns a deep copy safe to hand out of a store.
func (r *Run) Clone() *Run {
	c := *r
	c.Points = append([]sweep.Point(nil), r.Points...)
	if r.Recommendation != nil {
		rec := *r.Recommendation
		rec.Distances = append([]float64(nil), rec.Distances...)
		c.Recommendation = &rec
	}
	if r.Model != nil {
		m := *r.Model
		c.Model = &m
	}
	return &c
}
