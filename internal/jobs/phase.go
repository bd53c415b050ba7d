package jobs

import (
	"github.com/spectraml/spectrajobs/pkg/models"
)

// Action is any phase-mutating action applied to the job state machine,
// whether it arrives from a client (RUN, ABORT) or from a worker end report
// (COMPLETE, ERROR).
type Action string

const (
	ActionRun      Action = Action(models.ProcessActionRun)
	ActionAbort    Action = Action(models.ProcessActionAbort)
	ActionComplete Action = Action(models.EndActionComplete)
	ActionError    Action = Action(models.EndActionError)
)

// rules is the single transition table. Every call path that mutates a job
// phase, client-facing or worker-facing, goes through this table; it is
// never inlined anywhere else.
var rules = map[Action]struct {
	Required models.Phase
	Next     models.Phase
}{
	ActionRun:      {Required: models.PhasePending, Next: models.PhaseProcessing},
	ActionAbort:    {Required: models.PhaseProcessing, Next: models.PhaseAborted},
	ActionComplete: {Required: models.PhaseProcessing, Next: models.PhaseCompleted},
	ActionError:    {Required: models.PhaseProcessing, Next: models.PhaseError},
}

// Rule returns the phase an action requires and the phase it produces.
// ok is false for unknown actions.
func Rule(action Action) (required, next models.Phase, ok bool) {
	r, ok := rules[action]
	return r.Required, r.Next, ok
}

// removablePhases are the phases a job may be deleted from. PROCESSING jobs
// have a worker attached and must be aborted or finished first.
var removablePhases = []models.Phase{
	models.PhasePending,
	models.PhaseCompleted,
	models.PhaseError,
	models.PhaseAborted,
}
