// Package types contains the request and response shapes of the HTTP API.
package types

import (
	"time"

	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/internal/domain/sweep"
)

// SweepRequest asks for a sweep over [Start, Stop] by Step.
// RequestID makes the submission idempotent.
type SweepRequest struct {
	RequestID string `json:"request_id" validate:"required,max=128"`
	Start     int    `json:"start" validate:"gte=1"`
	Stop      int    `json:"stop" validate:"gtfield=Start"`
	Step      int    `json:"step,omitempty" validate:"gte=0"`
}

// Range converts the request bounds.
func (r SweepRequest) Range() sweep.Range {
	return sweep.Range{Start: r.Start, Stop: r.Stop, Step: r.Step}
}

// SweepAccepted answers a submission.
type SweepAccepted struct {
	SweepID   string `json:"sweep_id"`
	Duplicate bool   `json:"duplicate"`
}

// SweepStatus reports a run.
type SweepStatus struct {
	ID             string                `json:"id"`
	RequestID      string                `json:"request_id"`
	State          model.RunState        `json:"state"`
	Range          sweep.Range           `json:"range"`
	Completed      int                   `json:"completed"`
	Total          int                   `json:"total"`
	Points         []sweep.Point         `json:"points"`
	Recommendation *sweep.Recommendation `json:"recommendation,omitempty"`
	Model          *model.ModelHandle    `json:"model,omitempty"`
	Failure        string                `json:"failure,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// NewSweepStatus builds the API view of a run.
func NewSweepStatus(r *model.Run) SweepStatus {
	points := r.Points
	if points == nil {
		points = []sweep.Point{}
	}
	return SweepStatus{
		ID:             r.ID,
		RequestID:      r.RequestID,
		State:          r.State,
		Range:          r.Range,
		Completed:      r.Done(),
		Total:          r.Total(),
		Points:         points,
		Recommendation: r.Recommendation,
		Model:          r.Model,
		Failure:        r.Failure,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// ElbowRequest carries a sweep to select from directly.
type ElbowRequest struct {
	Params []int     `json:"params" validate:"required"`
	Errors []float64 `json:"errors" validate:"required"`
}

// ElbowResponse is the selected point and the line it was measured against.
type ElbowResponse struct {
	Param     int       `json:"param"`
	Index     int       `json:"index"`
	Slope     float64   `json:"slope"`
	Intercept float64   `json:"intercept"`
	Distances []float64 `json:"distances"`
}

// Model describes a registered model.
type Model struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Algorithm string    `json:"algorithm"`
	Param     int       `json:"param"`
	URI       string    `json:"uri"`
	Columns   []string  `json:"columns,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats is a snapshot of service load.
type Stats struct {
	QueueSize     int    `json:"queue_size"`
	QueueCapacity int    `json:"queue_capacity"`
	Workers       int    `json:"workers"`
	Runs          int    `json:"runs"`
	ActiveRuns    int    `json:"active_runs"`
	DedupeSize    int64  `json:"dedupe_size"`
	Backend       string `json:"backend"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
