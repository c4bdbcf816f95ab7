package models

import "time"

type JobState string

const (
	JobPending JobState = "pending"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// JobStatus follows a run submitted through the queue.
type JobStatus struct {
	ID          string
	State       JobState
	Path        string
	DatasetID   string
	RunID       string
	Errors      []string
	Attempts    int
	SubmittedAt time.Time
	UpdatedAt   time.Time
}

// Finished reports whether the job reached a terminal state.
func (s *JobStatus) Finished() bool {
	return s.State == JobDone || s.State == JobFailed
}
