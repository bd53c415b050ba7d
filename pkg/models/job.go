package models

import (
	"time"

	"github.com/google/uuid"
)

// Phase is a job lifecycle phase. Transitions only move forward along
// PENDING -> PROCESSING -> {COMPLETED, ERROR}, with PROCESSING -> ABORTED
// as a dispatcher-level cancel. Terminal phases are never left.
type Phase string

const (
	PhasePending    Phase = "PENDING"
	PhaseProcessing Phase = "PROCESSING"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseError      Phase = "ERROR"
	PhaseAborted    Phase = "ABORTED"
)

// Terminal reports whether no further transitions are permitted from p.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseError || p == PhaseAborted
}

// JobType identifies which worker handler executes a job.
type JobType string

const (
	JobTypeDataPreprocessing JobType = "DATA_PREPROCESSING"
	JobTypeActiveML          JobType = "ACTIVE_ML"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	return t == JobTypeDataPreprocessing || t == JobTypeActiveML
}

// ProcessAction is a client-requested dispatch action on a job.
type ProcessAction string

const (
	ProcessActionRun   ProcessAction = "RUN"
	ProcessActionAbort ProcessAction = "ABORT"
)

// Valid reports whether a is a known process action.
func (a ProcessAction) Valid() bool {
	return a == ProcessActionRun || a == ProcessActionAbort
}

// EndAction is a worker-reported job outcome.
type EndAction string

const (
	EndActionComplete EndAction = "COMPLETE"
	EndActionError    EndAction = "ERROR"
)

// Valid reports whether a is a known end action.
func (a EndAction) Valid() bool {
	return a == EndActionComplete || a == EndActionError
}

// Job is a unit of asynchronous ML work with an identity, type, and
// lifecycle phase. started_at, ended_at, and execution_duration are set
// exactly once, together, when a worker reports an end action.
type Job struct {
	ID                uuid.UUID  `db:"job_id"             json:"job_id"`
	DirPath           string     `db:"dir_path"           json:"dir_path"`
	Type              JobType    `db:"type"               json:"type"`
	Phase             Phase      `db:"phase"              json:"phase"`
	Label             string     `db:"label"              json:"label"`
	Description       *string    `db:"description"        json:"description,omitempty"`
	CreatedAt         time.Time  `db:"created_at"         json:"created_at"`
	StartedAt         *time.Time `db:"started_at"         json:"started_at,omitempty"`
	EndedAt           *time.Time `db:"ended_at"           json:"ended_at,omitempty"`
	ExecutionDuration *float64   `db:"execution_duration" json:"execution_duration,omitempty"`
}
