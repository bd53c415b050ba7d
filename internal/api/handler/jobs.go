package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spectraml/spectrajobs/internal/api/response"
	"github.com/spectraml/spectrajobs/internal/jobs"
	"github.com/spectraml/spectrajobs/internal/store"
	"github.com/spectraml/spectrajobs/pkg/models"
)

const maxLabelLength = 255

// JobService defines the orchestrator interface the job handlers depend on.
type JobService interface {
	Initialize(ctx context.Context, in jobs.InitializeInput) (*models.Job, error)
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Job, error)
	Edit(ctx context.Context, id uuid.UUID, patch store.JobMetaPatch) (*models.Job, error)
	Remove(ctx context.Context, id uuid.UUID) error
	Process(ctx context.Context, id uuid.UUID, action models.ProcessAction) (*models.Job, error)
	End(ctx context.Context, id uuid.UUID, action models.EndAction, startedAt, endedAt time.Time) (*models.Job, error)
	List(ctx context.Context, offset, limit int) (*jobs.ListResult, error)
}

// NewInitializeJobHandler returns the handler for POST /api/v1/jobs.
func NewInitializeJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type        string  `json:"type"`
			Label       string  `json:"label"`
			Description *string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		jobType := models.JobType(req.Type)
		if !jobType.Valid() {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"type must be DATA_PREPROCESSING or ACTIVE_ML", nil)
			return
		}
		if req.Label == "" || len(req.Label) > maxLabelLength {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"label is required and must be at most 255 characters", nil)
			return
		}

		job, err := svc.Initialize(r.Context(), jobs.InitializeInput{
			Type:        jobType,
			Label:       req.Label,
			Description: req.Description,
		})
		if err != nil {
			renderError(w, err)
			return
		}

		response.Created(w, job)
	}
}

// NewRetrieveJobHandler returns the handler for GET /api/v1/jobs/{jobID}.
func NewRetrieveJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		job, err := svc.Retrieve(r.Context(), id)
		if err != nil {
			renderError(w, err)
			return
		}

		response.JSON(w, job)
	}
}

// NewEditJobHandler returns the handler for PATCH /api/v1/jobs/{jobID}.
// Only label and description are editable; edits are legal in any phase.
func NewEditJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		var req struct {
			Label       *string `json:"label"`
			Description *string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Label != nil && (*req.Label == "" || len(*req.Label) > maxLabelLength) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"label must be non-empty and at most 255 characters", nil)
			return
		}

		job, err := svc.Edit(r.Context(), id, store.JobMetaPatch{
			Label:       req.Label,
			Description: req.Description,
		})
		if err != nil {
			renderError(w, err)
			return
		}

		response.JSON(w, job)
	}
}

// NewRemoveJobHandler returns the handler for DELETE /api/v1/jobs/{jobID}.
func NewRemoveJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		if err := svc.Remove(r.Context(), id); err != nil {
			renderError(w, err)
			return
		}

		response.NoContent(w)
	}
}

// NewProcessJobHandler returns the handler for
// POST /api/v1/jobs/{jobID}/process/{processAction}.
func NewProcessJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		action := models.ProcessAction(chi.URLParam(r, "processAction"))
		if !action.Valid() {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"process action must be RUN or ABORT", nil)
			return
		}

		job, err := svc.Process(r.Context(), id, action)
		if err != nil {
			renderError(w, err)
			return
		}

		response.Accepted(w, job)
	}
}

// NewEndJobHandler returns the handler for
// POST /api/v1/jobs/{jobID}/end/{endAction}. The same handler serves the
// worker-facing route, so both entry points share one transition path.
func NewEndJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		action := models.EndAction(chi.URLParam(r, "endAction"))
		if !action.Valid() {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"end action must be COMPLETE or ERROR", nil)
			return
		}

		var req struct {
			StartedAt string `json:"started_at"`
			EndedAt   string `json:"ended_at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		startedAt, err := time.Parse(time.RFC3339, req.StartedAt)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"started_at must be a valid RFC3339 timestamp", nil)
			return
		}
		endedAt, err := time.Parse(time.RFC3339, req.EndedAt)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"ended_at must be a valid RFC3339 timestamp", nil)
			return
		}
		if endedAt.Before(startedAt) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"ended_at must not be before started_at", nil)
			return
		}

		job, err := svc.End(r.Context(), id, action, startedAt.UTC(), endedAt.UTC())
		if err != nil {
			renderError(w, err)
			return
		}

		response.JSON(w, job)
	}
}

// NewListJobsHandler returns the handler for GET /api/v1/jobs.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, ok := queryInt(w, r, "offset", 0)
		if !ok {
			return
		}
		limit, ok := queryInt(w, r, "limit", 0)
		if !ok {
			return
		}

		result, err := svc.List(r.Context(), offset, limit)
		if err != nil {
			renderError(w, err)
			return
		}

		response.JSON(w, result)
	}
}

func jobIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, defaultVal int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			name+" must be a non-negative integer", nil)
		return 0, false
	}
	return v, true
}
