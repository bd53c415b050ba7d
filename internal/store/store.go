package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spectraml/spectrajobs/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrPhaseConflict = errors.New("job phase conflict")
var ErrAbsentJob = errors.New("referenced job does not exist")

// PhaseConflictError reports that a conditional phase mutation found the job
// in a different phase than required. It unwraps to ErrPhaseConflict.
type PhaseConflictError struct {
	JobID   uuid.UUID
	Current models.Phase
}

func (e *PhaseConflictError) Error() string {
	return fmt.Sprintf("job with ID=%s is in phase=%s", e.JobID, e.Current)
}

func (e *PhaseConflictError) Unwrap() error { return ErrPhaseConflict }

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJobMeta(ctx context.Context, id uuid.UUID, patch JobMetaPatch) (*models.Job, error)
	DeleteJobInPhases(ctx context.Context, id uuid.UUID, allowed []models.Phase) error
	ListJobs(ctx context.Context, offset, limit int) ([]*models.Job, error)
	CountJobs(ctx context.Context) (int, error)
	TransitionPhase(ctx context.Context, id uuid.UUID, from, to models.Phase, opts ...TransitionOption) (*models.Job, error)

	CreateLabelling(ctx context.Context, labelling *models.Labelling) error
	CreateLabellingBatch(ctx context.Context, batch []*models.Labelling) error
	GetLabelling(ctx context.Context, id uuid.UUID) (*models.Labelling, error)
	UpdateLabelling(ctx context.Context, id uuid.UUID, patch LabellingPatch) (*models.Labelling, error)
	UpdateLabellingBatch(ctx context.Context, ids []uuid.UUID, patches []LabellingPatch) error
	ListLabellingsByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Labelling, error)
}

// JobMetaPatch carries the user-editable job fields. Nil means unchanged.
type JobMetaPatch struct {
	Label       *string
	Description *string
}

// LabellingPatch carries the user-editable labelling fields. Nil means unchanged.
type LabellingPatch struct {
	UserLabel   *string
	UserComment *string
}

type transitionParams struct {
	StartedAt         *time.Time
	EndedAt           *time.Time
	ExecutionDuration *float64
}

// TransitionOption augments a phase transition with extra column writes
// applied atomically in the same conditional update.
type TransitionOption func(*transitionParams)

// WithExecutionMetrics records the worker-reported execution window and its
// duration alongside the terminal phase write.
func WithExecutionMetrics(startedAt, endedAt time.Time, duration float64) TransitionOption {
	return func(p *transitionParams) {
		p.StartedAt = &startedAt
		p.EndedAt = &endedAt
		p.ExecutionDuration = &duration
	}
}
