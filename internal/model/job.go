package model

import "time"

// JobStatus tracks the lifecycle of an ingestion job.
type JobStatus string

// Job statuses.
const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job records one ingestion run (a spreadsheet upload or an external
// sync pull). Transactions inserted by the run reference the job, which
// lets a later re-upload be reported as "this looks like job X repeated".
//
// A job with zero attributed transactions is a valid terminal state: job
// creation and row insertion are separate operations, and a crash between
// them leaves an empty job rather than orphaned rows.
type Job struct {
	CreatedAt   time.Time
	ID          string
	OwnerID     string
	Source      TransactionSource
	FileName    string
	Status      JobStatus
	Inserted    int
	Skipped     int
	ErrorCount  int
}
