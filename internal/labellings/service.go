// Package labellings manages per-spectrum annotation records tied to jobs,
// including the all-or-nothing batch consistency rules.
package labellings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/spectraml/spectrajobs/internal/store"
	"github.com/spectraml/spectrajobs/pkg/models"
)

// ErrInvalidBatch reports caller-supplied parallel lists of unequal length.
// It is raised before any store access, so nothing is ever partially applied.
var ErrInvalidBatch = errors.New("labelling ids and edit payloads must have equal length")

// Service implements labelling operations over an injected store handle.
type Service struct {
	store store.Store
}

// NewService creates a labelling Service.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// InitializeInput carries the fields for a new labelling record.
type InitializeInput struct {
	JobID             uuid.UUID
	SpectrumFilename  string
	SpectrumSet       models.SpectrumSet
	SequenceIteration int
	ModelPrediction   *string
}

// ListResult holds all labellings of one job in spectrum-set priority order.
type ListResult struct {
	JobID      uuid.UUID           `json:"job_id"`
	Total      int                 `json:"total"`
	Labellings []*models.Labelling `json:"labellings"`
}

// Initialize creates a single labelling. Fails with store.ErrAbsentJob when
// the referenced job does not exist.
func (s *Service) Initialize(ctx context.Context, in InitializeInput) (*models.Labelling, error) {
	l := newLabelling(in)
	if err := s.store.CreateLabelling(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// InitializeBatch creates many labellings in one all-or-nothing operation:
// if any input references an absent job, no row is inserted.
func (s *Service) InitializeBatch(ctx context.Context, ins []InitializeInput) error {
	batch := make([]*models.Labelling, len(ins))
	for i, in := range ins {
		batch[i] = newLabelling(in)
	}
	return s.store.CreateLabellingBatch(ctx, batch)
}

// Retrieve fetches a single labelling record.
func (s *Service) Retrieve(ctx context.Context, id uuid.UUID) (*models.Labelling, error) {
	return s.store.GetLabelling(ctx, id)
}

// Edit mutates the user-writable fields of one labelling.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, patch store.LabellingPatch) (*models.Labelling, error) {
	return s.store.UpdateLabelling(ctx, id, patch)
}

// EditBatch applies parallel edit payloads to the labellings named by ids.
// A length mismatch is a caller mistake rejected up front with
// ErrInvalidBatch; an unknown id rejects the whole batch with no partial
// application.
func (s *Service) EditBatch(ctx context.Context, ids []uuid.UUID, patches []store.LabellingPatch) error {
	if len(ids) != len(patches) {
		return ErrInvalidBatch
	}
	return s.store.UpdateLabellingBatch(ctx, ids, patches)
}

// ListByJob returns every labelling of a job ordered ORACLE before
// PERFORMANCE_ESTIMATION before CANDIDATE, insertion order within a set.
func (s *Service) ListByJob(ctx context.Context, jobID uuid.UUID) (*ListResult, error) {
	labellings, err := s.store.ListLabellingsByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if labellings == nil {
		labellings = []*models.Labelling{}
	}
	return &ListResult{JobID: jobID, Total: len(labellings), Labellings: labellings}, nil
}

func newLabelling(in InitializeInput) *models.Labelling {
	return &models.Labelling{
		ID:                uuid.New(),
		JobID:             in.JobID,
		SpectrumFilename:  in.SpectrumFilename,
		SpectrumSet:       in.SpectrumSet,
		SequenceIteration: in.SequenceIteration,
		ModelPrediction:   in.ModelPrediction,
	}
}
