// internal/model/job.go
package model

import "time"

type JobStatus string

const (
    JobPending    JobStatus = "pending"
    JobProcessing JobStatus = "processing"
    JobSent       JobStatus = "sent"
    JobFailed     JobStatus = "failed"
)

// CampaignJob is one delivery attempt for one (campaign, user) pair.
// The row ID doubles as the queue idempotency key, so it is assigned
// exactly once, by the database, at creation.
type CampaignJob struct {
    ID          int        `db:"id" json:"id"`
    CampaignID  int        `db:"campaign_id" json:"campaign_id"`
    UserID      int        `db:"user_id" json:"user_id"`
    Status      JobStatus  `db:"status" json:"status"`
    Result      *string    `db:"result" json:"result,omitempty"`
    ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
    CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Terminal reports whether no further transition happens for this attempt.
func (s JobStatus) Terminal() bool {
    return s == JobSent || s == JobFailed
}
