package handler

import (
	"errors"
	"net/http"

	"github.com/spectraml/spectrajobs/internal/api/response"
	"github.com/spectraml/spectrajobs/internal/labellings"
	"github.com/spectraml/spectrajobs/internal/store"
)

// renderError maps service errors onto the JSON error envelope. Business
// outcomes (not found, phase conflict, absent job, invalid batch) keep their
// diagnostic message; infrastructure failures are masked as a generic 500.
func renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrPhaseConflict):
		response.Error(w, http.StatusConflict, "PHASE_CONFLICT", err.Error(), nil)
	case errors.Is(err, store.ErrAbsentJob):
		response.Error(w, http.StatusNotFound, "ABSENT_JOB", err.Error(), nil)
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, labellings.ErrInvalidBatch):
		response.Error(w, http.StatusBadRequest, "INVALID_BATCH", err.Error(), nil)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
