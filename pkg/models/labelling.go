package models

import (
	"github.com/google/uuid"
)

// SpectrumSet classifies which dataset partition of an active-learning
// iteration a labelled spectrum belongs to.
type SpectrumSet string

const (
	SpectrumSetOracle                SpectrumSet = "ORACLE"
	SpectrumSetPerformanceEstimation SpectrumSet = "PERFORMANCE_ESTIMATION"
	SpectrumSetCandidate             SpectrumSet = "CANDIDATE"
)

// Valid reports whether s is a known spectrum set.
func (s SpectrumSet) Valid() bool {
	switch s {
	case SpectrumSetOracle, SpectrumSetPerformanceEstimation, SpectrumSetCandidate:
		return true
	}
	return false
}

// Labelling is a per-spectrum annotation record tied to exactly one job.
// Only user_label and user_comment are writable after creation; everything
// else is fixed when the owning job produces the spectrum.
type Labelling struct {
	ID                uuid.UUID   `db:"labelling_id"       json:"labelling_id"`
	JobID             uuid.UUID   `db:"job_id"             json:"job_id"`
	SpectrumFilename  string      `db:"spectrum_filename"  json:"spectrum_filename"`
	SpectrumSet       SpectrumSet `db:"spectrum_set"       json:"spectrum_set"`
	SequenceIteration int         `db:"sequence_iteration" json:"sequence_iteration"`
	ModelPrediction   *string     `db:"model_prediction"   json:"model_prediction,omitempty"`
	UserLabel         *string     `db:"user_label"         json:"user_label,omitempty"`
	UserComment       *string     `db:"user_comment"       json:"user_comment,omitempty"`
}
