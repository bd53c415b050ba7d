// Package jobs is the job orchestrator: it owns the lifecycle state machine,
// validates every transition against the persisted phase, and coordinates
// the store and the execution queue.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spectraml/spectrajobs/internal/cache"
	"github.com/spectraml/spectrajobs/internal/queue"
	"github.com/spectraml/spectrajobs/internal/store"
	"github.com/spectraml/spectrajobs/pkg/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	phaseCacheTTL = time.Hour
)

// Service implements the job orchestration operations over injected store,
// queue, and cache handles.
type Service struct {
	store   store.Store
	queue   queue.Queue
	cache   cache.Cache
	rootDir string
}

// NewService creates a job Service. rootDir is the storage root under which
// per-job directories are derived.
func NewService(s store.Store, q queue.Queue, c cache.Cache, rootDir string) *Service {
	return &Service{store: s, queue: q, cache: c, rootDir: rootDir}
}

// InitializeInput carries the client-supplied fields for a new job.
type InitializeInput struct {
	Type        models.JobType
	Label       string
	Description *string
}

// ListResult is one page of job summaries plus the total record count.
type ListResult struct {
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
	Jobs   []*models.Job `json:"jobs"`
}

// DirPath derives the collision-resistant storage directory for a job from
// its label and id: the label is lowercased with spaces collapsed to
// underscores, and the id guarantees uniqueness.
func DirPath(rootDir, label string, id uuid.UUID) string {
	norm := strings.ReplaceAll(strings.ToLower(label), " ", "_")
	return fmt.Sprintf("%s/job_%s_%s", rootDir, norm, id)
}

// Initialize creates and persists a new job in the PENDING phase.
func (s *Service) Initialize(ctx context.Context, in InitializeInput) (*models.Job, error) {
	id := uuid.New()
	job := &models.Job{
		ID:          id,
		DirPath:     DirPath(s.rootDir, in.Label, id),
		Type:        in.Type,
		Phase:       models.PhasePending,
		Label:       in.Label,
		Description: in.Description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	s.cachePhase(ctx, job.ID, job.Phase)

	return job, nil
}

// Retrieve fetches the full record of an existing job.
func (s *Service) Retrieve(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.store.GetJob(ctx, id)
}

// Edit mutates the user-editable metadata of a job. Metadata edits are legal
// in any phase.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, patch store.JobMetaPatch) (*models.Job, error) {
	return s.store.UpdateJobMeta(ctx, id, patch)
}

// Remove deletes a job and, through the store's referential cascade, all of
// its labellings. Only jobs outside the PROCESSING phase may be removed.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteJobInPhases(ctx, id, removablePhases); err != nil {
		if conflict(err) {
			return fmt.Errorf("cannot remove job with ID=%s: %w", id, err)
		}
		return err
	}

	if cerr := s.cache.DeleteJobPhase(ctx, id); cerr != nil {
		slog.Warn("phase cache delete failed", "job_id", id, "error", cerr)
	}
	return nil
}

// Process applies a RUN or ABORT action. The phase write is a conditional
// update committed before the queue is touched, so a rolled-back transition
// can never leave a dispatched worker behind. The queue side effect itself
// is best-effort and never fails the request.
func (s *Service) Process(ctx context.Context, id uuid.UUID, action models.ProcessAction) (*models.Job, error) {
	job, err := s.transition(ctx, id, Action(action))
	if err != nil {
		return nil, err
	}

	switch action {
	case models.ProcessActionRun:
		// A crash or broker failure here leaves the job PROCESSING with no
		// worker; there is no reconciliation sweep, only this log line.
		if qerr := s.queue.Dispatch(ctx, job.ID, job.Type, job.DirPath); qerr != nil {
			slog.Error("dispatch failed after phase commit", "job_id", job.ID, "error", qerr)
		}
	case models.ProcessActionAbort:
		if qerr := s.queue.Cancel(ctx, job.ID); qerr != nil {
			slog.Warn("queue cancel failed", "job_id", job.ID, "error", qerr)
		}
	}

	return job, nil
}

// End finalizes a PROCESSING job as COMPLETED or ERROR with the
// worker-reported execution window. Both the client-facing route and the
// worker callback land here, so the two entry points cannot diverge.
func (s *Service) End(ctx context.Context, id uuid.UUID, action models.EndAction, startedAt, endedAt time.Time) (*models.Job, error) {
	duration := endedAt.Sub(startedAt).Seconds()
	return s.transition(ctx, id, Action(action),
		store.WithExecutionMetrics(startedAt, endedAt, duration))
}

// List returns one page of jobs ordered by creation time descending, newest
// first, plus the total count.
func (s *Service) List(ctx context.Context, offset, limit int) (*ListResult, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	total, err := s.store.CountJobs(ctx)
	if err != nil {
		return nil, err
	}
	page, err := s.store.ListJobs(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	if page == nil {
		page = []*models.Job{}
	}

	return &ListResult{Total: total, Offset: offset, Limit: limit, Jobs: page}, nil
}

// transition resolves the action against the shared rule table and applies
// the compare-and-swap phase write.
func (s *Service) transition(ctx context.Context, id uuid.UUID, action Action, opts ...store.TransitionOption) (*models.Job, error) {
	required, next, ok := Rule(action)
	if !ok {
		return nil, fmt.Errorf("unknown action %q", action)
	}

	job, err := s.store.TransitionPhase(ctx, id, required, next, opts...)
	if err != nil {
		if conflict(err) {
			return nil, fmt.Errorf("cannot apply action=%s on job with ID=%s: %w", action, id, err)
		}
		return nil, err
	}
	s.cachePhase(ctx, job.ID, job.Phase)

	return job, nil
}

func (s *Service) cachePhase(ctx context.Context, id uuid.UUID, phase models.Phase) {
	if err := s.cache.SetJobPhase(ctx, id, phase, phaseCacheTTL); err != nil {
		slog.Warn("phase cache write failed", "job_id", id, "error", err)
	}
}

func conflict(err error) bool {
	return errors.Is(err, store.ErrPhaseConflict)
}
