package core

// Status represents the lifecycle state of a scenario run. A run starts
// CREATED, is moved to RUNNING by the orchestrator, and ends each Execute
// call in one of the four outcome states. COMPLETED and FAILED are terminal
// for the run; HALTED and PAUSED are recoverable via a later Execute call.
type Status string

const (
	// StatusCreated marks a freshly constructed state that has never run.
	StatusCreated Status = "created"
	// StatusRunning marks a state currently owned by an executing orchestrator,
	// or a checkpoint written mid-run.
	StatusRunning Status = "running"
	// StatusPaused marks a run suspended by an operator at a turn boundary.
	StatusPaused Status = "paused"
	// StatusHalted marks a recoverable stop: budget exhaustion or an explicit
	// stop request. The halt reason is kept in the state metadata.
	StatusHalted Status = "halted"
	// StatusCompleted marks a run that reached its configured turn count.
	StatusCompleted Status = "completed"
	// StatusFailed marks a run terminated by a phase error. Non-recoverable.
	StatusFailed Status = "failed"
)

// String returns the wire representation of the status.
func (s Status) String() string { return string(s) }

// IsTerminal reports whether no further turn may execute for this run.
func (s Status) IsTerminal() bool { return s == StatusCompleted || s == StatusFailed }

// CanResume reports whether an Execute call may accept a loaded state with
// this status as its starting point.
func (s Status) CanResume() bool {
	return s == StatusRunning || s == StatusHalted || s == StatusPaused
}

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusPaused, StatusHalted, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}
