// Package domain holds the value types shared by the orchestrator, the
// runner, and the CLI: pipelines, jobs, log entries, and runner
// registrations. None of these types know how they are persisted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state of a Job in the state machine described by the
// store (see internal/store).
type JobStatus string

const (
	JobQueued    JobStatus = "Queued"
	JobRunning   JobStatus = "Running"
	JobSucceeded JobStatus = "Succeeded"
	JobFailed    JobStatus = "Failed"
	JobCancelled JobStatus = "Cancelled"
	JobTimedOut  JobStatus = "TimedOut"
)

// IsTerminal reports whether status is a sink state of the job state
// machine.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled, JobTimedOut:
		return true
	default:
		return false
	}
}

// JobResult is the outcome of a single stage-walk, reported by a runner
// when a job finishes.
type JobResult struct {
	Success      bool    `json:"success"`
	ExitCode     int     `json:"exit_code"`
	Output       *string `json:"output,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// Success exit code by convention.
const ExitSuccess = 0

// Failed exit code by convention, used unless a more specific one (e.g.
// a timeout) applies.
const ExitFailed = 1

// TimedOut exit code: matches the historical Unix convention this system
// inherited for command timeouts.
const ExitTimedOut = 124

func ResultSuccess() JobResult {
	return JobResult{Success: true, ExitCode: ExitSuccess}
}

func ResultSuccessWithOutput(output string) JobResult {
	return JobResult{Success: true, ExitCode: ExitSuccess, Output: &output}
}

// ResultFailed builds a failure result with the default exit code.
func ResultFailed(message string) JobResult {
	return JobResult{Success: false, ExitCode: ExitFailed, ErrorMessage: &message}
}

// ResultError builds a failure result with an explicit exit code (used
// for timeouts, which carry ExitTimedOut rather than ExitFailed).
func ResultError(message string, exitCode int) JobResult {
	return JobResult{Success: false, ExitCode: exitCode, ErrorMessage: &message}
}

// Job is a single execution instance of a Pipeline with a frozen input
// mapping. See the state machine in internal/store for the allowed
// transitions between statuses.
type Job struct {
	ID          uuid.UUID              `json:"id"`
	PipelineID  uuid.UUID              `json:"pipeline_id"`
	Status      JobStatus              `json:"status"`
	RequestedAt time.Time              `json:"requested_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	RunnerID    *string                `json:"runner_id,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
	Result      *JobResult             `json:"result,omitempty"`
}

// Clone returns a deep-enough copy safe to hand to a caller outside the
// store's lock: the parameter map and result are copied, not aliased.
func (j Job) Clone() Job {
	out := j
	if j.Parameters != nil {
		out.Parameters = make(map[string]interface{}, len(j.Parameters))
		for k, v := range j.Parameters {
			out.Parameters[k] = v
		}
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.RunnerID != nil {
		id := *j.RunnerID
		out.RunnerID = &id
	}
	if j.Result != nil {
		res := *j.Result
		out.Result = &res
	}
	return out
}
