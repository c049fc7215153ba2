// Package fleeterr implements the fleet manager's typed error taxonomy.
// Each kind carries a stable Code and kind-specific fields, following the
// classify-by-constant idiom used for LLM error classification elsewhere
// in this codebase's lineage, generalized into dedicated struct types so
// callers can carry structured fields instead of string matching.
package fleeterr

import "fmt"

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeInvalidState    Code = "invalid_state"
	CodeAgentNotFound   Code = "agent_not_found"
	CodeScheduleNotFound Code = "schedule_not_found"
	CodeJobNotFound     Code = "job_not_found"
	CodeConcurrencyLimit Code = "concurrency_limit"
	CodeConfiguration   Code = "configuration"
	CodeStateDir        Code = "state_dir"
	CodeShutdown        Code = "shutdown"
	CodeJobCancel       Code = "job_cancel"
	CodeJobFork         Code = "job_fork"
)

// InvalidStateError is raised when a control-plane operation is called in
// the wrong FleetManager state.
type InvalidStateError struct {
	Operation     string
	CurrentState  string
	ExpectedState string
	Cause         error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state for %s: current=%s expected=%s", e.Operation, e.CurrentState, e.ExpectedState)
}
func (e *InvalidStateError) Code() Code   { return CodeInvalidState }
func (e *InvalidStateError) Unwrap() error { return e.Cause }

// AgentNotFoundError is raised when an agent name is not in the resolved
// fleet.
type AgentNotFoundError struct {
	AgentName       string
	AvailableAgents []string
	Cause           error
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent not found: %s (available: %v)", e.AgentName, e.AvailableAgents)
}
func (e *AgentNotFoundError) Code() Code   { return CodeAgentNotFound }
func (e *AgentNotFoundError) Unwrap() error { return e.Cause }

// ScheduleNotFoundError is raised when a schedule name is not on a known
// agent.
type ScheduleNotFoundError struct {
	AgentName          string
	ScheduleName       string
	AvailableSchedules []string
	Cause              error
}

func (e *ScheduleNotFoundError) Error() string {
	return fmt.Sprintf("schedule not found: %s/%s (available: %v)", e.AgentName, e.ScheduleName, e.AvailableSchedules)
}
func (e *ScheduleNotFoundError) Code() Code   { return CodeScheduleNotFound }
func (e *ScheduleNotFoundError) Unwrap() error { return e.Cause }

// JobNotFoundError is raised when a job id is unknown to the store.
type JobNotFoundError struct {
	JobID string
	Cause error
}

func (e *JobNotFoundError) Error() string   { return fmt.Sprintf("job not found: %s", e.JobID) }
func (e *JobNotFoundError) Code() Code      { return CodeJobNotFound }
func (e *JobNotFoundError) Unwrap() error   { return e.Cause }

// ConcurrencyLimitError is raised when a trigger is blocked by an agent's
// max_concurrent cap.
type ConcurrencyLimitError struct {
	AgentName   string
	CurrentJobs int
	Limit       int
	Cause       error
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("concurrency limit reached for %s: %d/%d", e.AgentName, e.CurrentJobs, e.Limit)
}
func (e *ConcurrencyLimitError) Code() Code   { return CodeConcurrencyLimit }
func (e *ConcurrencyLimitError) Unwrap() error { return e.Cause }

// ConfigurationError is raised on parse/validate failure or duplicate
// agent names.
type ConfigurationError struct {
	ConfigPath       string
	ValidationErrors []string
	Cause            error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %v", e.ConfigPath, e.ValidationErrors)
}
func (e *ConfigurationError) Code() Code   { return CodeConfiguration }
func (e *ConfigurationError) Unwrap() error { return e.Cause }

// StateDirError is raised when the state directory cannot be created or
// accessed.
type StateDirError struct {
	StateDir string
	Cause    error
}

func (e *StateDirError) Error() string   { return fmt.Sprintf("state dir error at %s: %v", e.StateDir, e.Cause) }
func (e *StateDirError) Code() Code      { return CodeStateDir }
func (e *StateDirError) Unwrap() error   { return e.Cause }

// ShutdownError is raised when Stop times out or errors.
type ShutdownError struct {
	TimedOut bool
	Cause    error
}

func (e *ShutdownError) Error() string {
	if e.TimedOut {
		return "shutdown timed out waiting for in-flight jobs"
	}
	return fmt.Sprintf("shutdown error: %v", e.Cause)
}
func (e *ShutdownError) Code() Code   { return CodeShutdown }
func (e *ShutdownError) Unwrap() error { return e.Cause }

// JobCancelReason enumerates why a cancellation could not proceed.
type JobCancelReason string

const (
	CancelReasonNotRunning   JobCancelReason = "not_running"
	CancelReasonProcessError JobCancelReason = "process_error"
	CancelReasonTimeout      JobCancelReason = "timeout"
	CancelReasonUnknown      JobCancelReason = "unknown"
)

// JobCancelError is raised when a job cancellation request fails.
type JobCancelError struct {
	JobID  string
	Reason JobCancelReason
	Cause  error
}

func (e *JobCancelError) Error() string {
	return fmt.Sprintf("cannot cancel job %s: %s", e.JobID, e.Reason)
}
func (e *JobCancelError) Code() Code   { return CodeJobCancel }
func (e *JobCancelError) Unwrap() error { return e.Cause }

// JobForkReason enumerates why forking a job could not proceed.
type JobForkReason string

const (
	ForkReasonNoSession    JobForkReason = "no_session"
	ForkReasonJobNotFound  JobForkReason = "job_not_found"
	ForkReasonAgentNotFound JobForkReason = "agent_not_found"
	ForkReasonUnknown      JobForkReason = "unknown"
)

// JobForkError is raised when forking from a prior job fails.
type JobForkError struct {
	OriginalJobID string
	Reason        JobForkReason
	Cause         error
}

func (e *JobForkError) Error() string {
	return fmt.Sprintf("cannot fork from job %s: %s", e.OriginalJobID, e.Reason)
}
func (e *JobForkError) Code() Code   { return CodeJobFork }
func (e *JobForkError) Unwrap() error { return e.Cause }
