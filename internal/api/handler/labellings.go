package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spectraml/spectrajobs/internal/api/response"
	"github.com/spectraml/spectrajobs/internal/labellings"
	"github.com/spectraml/spectrajobs/internal/store"
	"github.com/spectraml/spectrajobs/pkg/models"
)

// LabellingService defines the coordinator interface the labelling handlers
// depend on.
type LabellingService interface {
	Initialize(ctx context.Context, in labellings.InitializeInput) (*models.Labelling, error)
	InitializeBatch(ctx context.Context, ins []labellings.InitializeInput) error
	Retrieve(ctx context.Context, id uuid.UUID) (*models.Labelling, error)
	Edit(ctx context.Context, id uuid.UUID, patch store.LabellingPatch) (*models.Labelling, error)
	EditBatch(ctx context.Context, ids []uuid.UUID, patches []store.LabellingPatch) error
	ListByJob(ctx context.Context, jobID uuid.UUID) (*labellings.ListResult, error)
}

type labellingCreateRequest struct {
	JobID             string  `json:"job_id"`
	SpectrumFilename  string  `json:"spectrum_filename"`
	SpectrumSet       string  `json:"spectrum_set"`
	SequenceIteration int     `json:"sequence_iteration"`
	ModelPrediction   *string `json:"model_prediction"`
}

func (req *labellingCreateRequest) toInput() (labellings.InitializeInput, string) {
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return labellings.InitializeInput{}, "job_id must be a valid UUID"
	}
	set := models.SpectrumSet(req.SpectrumSet)
	if !set.Valid() {
		return labellings.InitializeInput{}, "spectrum_set must be ORACLE, PERFORMANCE_ESTIMATION, or CANDIDATE"
	}
	if req.SpectrumFilename == "" {
		return labellings.InitializeInput{}, "spectrum_filename is required"
	}
	if req.SequenceIteration < 0 {
		return labellings.InitializeInput{}, "sequence_iteration must be non-negative"
	}
	return labellings.InitializeInput{
		JobID:             jobID,
		SpectrumFilename:  req.SpectrumFilename,
		SpectrumSet:       set,
		SequenceIteration: req.SequenceIteration,
		ModelPrediction:   req.ModelPrediction,
	}, ""
}

// NewInitializeLabellingHandler returns the handler for POST /api/v1/labellings.
func NewInitializeLabellingHandler(svc LabellingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req labellingCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		in, msg := req.toInput()
		if msg != "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", msg, nil)
			return
		}

		l, err := svc.Initialize(r.Context(), in)
		if err != nil {
			renderError(w, err)
			return
		}

		response.Created(w, l)
	}
}

// NewInitializeLabellingBatchHandler returns the handler for
// POST /api/v1/labellings/batch. The batch is all-or-nothing.
func NewInitializeLabellingBatchHandler(svc LabellingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqs []labellingCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if len(reqs) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "batch must not be empty", nil)
			return
		}

		ins := make([]labellings.InitializeInput, len(reqs))
		for i := range reqs {
			in, msg := reqs[i].toInput()
			if msg != "" {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", msg, nil)
				return
			}
			ins[i] = in
		}

		if err := svc.InitializeBatch(r.Context(), ins); err != nil {
			renderError(w, err)
			return
		}

		response.Created(w, map[string]int{"created": len(ins)})
	}
}

// NewRetrieveLabellingHandler returns the handler for
// GET /api/v1/labellings/{labellingID}.
func NewRetrieveLabellingHandler(svc LabellingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := labellingIDParam(w, r)
		if !ok {
			return
		}

		l, err := svc.Retrieve(r.Context(), id)
		if err != nil {
			renderError(w, err)
			return
		}

		response.JSON(w, l)
	}
}

// NewEditLabellingHandler returns the handler for
// PATCH /api/v1/labellings/{labellingID}. Only user_label and user_comment
// are writable after creation.
func NewEditLabellingHandler(svc LabellingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := labellingIDParam(w, r)
		if !ok {
			return
		}

		var req struct {
			UserLabel   *string `json:"user_label"`
			UserComment *string `json:"user_comment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		l, err := svc.Edit(r.Context(), id, store.LabellingPatch{
			UserLabel:   req.UserLabel,
			UserComment: req.UserComment,
		})
		if err != nil {
			renderError(w, err)
			return
		}

		response.JSON(w, l)
	}
}

// NewEditLabellingBatchHandler returns the handler for
// PATCH /api/v1/labellings/batch. Parallel id and edit lists of unequal
// length are rejected before any store access.
func NewEditLabellingBatchHandler(svc LabellingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			LabellingIDs []string `json:"labelling_ids"`
			Edits        []struct {
				UserLabel   *string `json:"user_label"`
				UserComment *string `json:"user_comment"`
			} `json:"edits"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		ids := make([]uuid.UUID, len(req.LabellingIDs))
		for i, raw := range req.LabellingIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"labelling_ids must be valid UUIDs", nil)
				return
			}
			ids[i] = id
		}

		patches := make([]store.LabellingPatch, len(req.Edits))
		for i, e := range req.Edits {
			patches[i] = store.LabellingPatch{UserLabel: e.UserLabel, UserComment: e.UserComment}
		}

		if err := svc.EditBatch(r.Context(), ids, patches); err != nil {
			renderError(w, err)
			return
		}

		response.NoContent(w)
	}
}

// NewListLabellingsHandler returns the handler for
// GET /api/v1/labellings?job_id={jobID}.
func NewListLabellingsHandler(svc LabellingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(r.URL.Query().Get("job_id"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_id must be a valid UUID", nil)
			return
		}

		result, err := svc.ListByJob(r.Context(), jobID)
		if err != nil {
			renderError(w, err)
			return
		}

		response.JSON(w, result)
	}
}

func labellingIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "labellingID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "labellingID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
