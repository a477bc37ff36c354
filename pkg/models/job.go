package models

import "time"

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job tracks one asynchronous story generation. The API returns it from
// POST /api/stories/create; the client polls GET /api/jobs/{job_id} until
// status is completed or failed, then fetches the story by StoryID.
type Job struct {
	JobID       string     `db:"job_id"       json:"job_id"`
	SessionID   string     `db:"session_id"   json:"-"`
	Theme       string     `db:"theme"        json:"-"`
	Status      string     `db:"status"       json:"status"`
	StoryID     *int64     `db:"story_id"     json:"story_id,omitempty"`
	Error       *string    `db:"error"        json:"error,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// IsTerminal reports whether the job has reached completed or failed.
func (j *Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

func IsTerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}
