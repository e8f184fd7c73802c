package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Quality tiers priced by the credit ledger.
const (
	QualityDraft    = "draft"
	QualityStandard = "std"
	Quality4K       = "4k"
)

// Job is one generation attempt tied to a project. Jobs are created by the
// submission API and mutated only by the orchestrator; a job walks
// queued -> running -> succeeded|failed exactly once and never leaves a
// terminal state.
type Job struct {
	ID          string
	ProjectID   string
	Model       string
	Quality     string
	Status      JobStatus
	CostCredits int
	FinishedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
