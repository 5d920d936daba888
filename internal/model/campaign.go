// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
    CampaignDraft     CampaignStatus = "draft"
    CampaignScheduled CampaignStatus = "scheduled"
    CampaignActive    CampaignStatus = "active"
    CampaignPaused    CampaignStatus = "paused"
    CampaignCompleted CampaignStatus = "completed"
)

type Campaign struct {
    ID          int            `db:"id" json:"id"`
    Name        string         `db:"name" json:"name"`
    Status      CampaignStatus `db:"status" json:"status"`
    FlowID      int            `db:"flow_id" json:"flow_id"`
    SegmentID   *int           `db:"segment_id" json:"segment_id,omitempty"`
    ScheduledAt *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
    // CompletionNotified flips once, when the campaign-complete alert
    // goes out. It keeps redelivered terminal jobs from re-alerting.
    CompletionNotified bool       `db:"completion_notified" json:"completion_notified"`
    CreatedAt          time.Time  `db:"created_at" json:"created_at"`
    UpdatedAt          *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
