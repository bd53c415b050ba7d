// Package queue is the execution-queue boundary: it hands dispatched jobs to
// the external worker pool and issues best-effort cancel requests. The
// orchestrator treats both operations as fire-and-forget side effects.
package queue

import (
	"context"

	"github.com/google/uuid"
	"github.com/spectraml/spectrajobs/pkg/models"
)

// StartMessage is the payload delivered to a worker when a job is dispatched.
type StartMessage struct {
	JobID   uuid.UUID      `json:"job_id"`
	Type    models.JobType `json:"type"`
	DirPath string         `json:"dir_path"`
}

// AbortMessage is broadcast on the control exchange to request that workers
// stop an in-flight job. Delivery and effect are both best-effort.
type AbortMessage struct {
	JobID uuid.UUID `json:"job_id"`
}

// Queue dispatches jobs to the external worker pool. Implementations must be
// safe for concurrent use.
type Queue interface {
	// Dispatch enqueues a start message for the given job. At-least-once
	// delivery is assumed from the broker; the caller does not retry.
	Dispatch(ctx context.Context, jobID uuid.UUID, jobType models.JobType, dirPath string) error

	// Cancel requests termination of a dispatched job by id. Best-effort:
	// the worker may have already finished or may ignore the request.
	Cancel(ctx context.Context, jobID uuid.UUID) error
}
