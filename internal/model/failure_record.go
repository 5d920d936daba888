// internal/model/failure_record.go
package model

import "time"

// FailureRecord is one diagnostic entry for a job that ended in failed.
// Notified flips to true only after the alert webhook confirmed, which
// keeps re-delivery of the same failure idempotent.
type FailureRecord struct {
    ID         int       `db:"id" json:"id"`
    JobID      int       `db:"job_id" json:"job_id"`
    CampaignID int       `db:"campaign_id" json:"campaign_id"`
    Error      string    `db:"error" json:"error"`
    Notified   bool      `db:"notified" json:"notified"`
    CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
