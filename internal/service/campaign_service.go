// internal/service/campaign_service.go
package service

import (
    "time"

    "github.com/unclebandit/flowsend-backend/internal/model"
    "github.com/unclebandit/flowsend-backend/internal/repository"
)

// CampaignService backs the thin management HTTP surface. Dispatch
// itself lives in Dispatcher.
type CampaignService struct {
    CampaignRepo repository.CampaignRepositoryInterface
    JobRepo      repository.JobRepositoryInterface
    FailureRepo  repository.FailureRecordRepositoryInterface
}

type CampaignDetails struct {
    ID          int                  `json:"id"`
    Name        string               `json:"name"`
    Status      model.CampaignStatus `json:"status"`
    FlowID      int                  `json:"flow_id"`
    SegmentID   *int                 `json:"segment_id,omitempty"`
    ScheduledAt *time.Time           `json:"scheduled_at,omitempty"`
    CreatedAt   time.Time            `json:"created_at"`
    UpdatedAt   *time.Time           `json:"updated_at"`
    Stats       map[string]int       `json:"stats"`
}

func (s *CampaignService) CreateCampaign(name string, flowID int, segmentID *int, scheduledAt *string) (*model.Campaign, error) {
    c := &model.Campaign{
        Name:      name,
        FlowID:    flowID,
        SegmentID: segmentID,
        Status:    model.CampaignDraft,
    }

    if scheduledAt != nil {
        t, err := time.Parse(time.RFC3339, *scheduledAt)
        if err != nil {
            return nil, err
        }
        c.ScheduledAt = &t
        c.Status = model.CampaignScheduled
    }

    if err := s.CampaignRepo.Create(c); err != nil {
        return nil, err
    }

    return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }
    if pageSize > 100 {
        pageSize = 100
    }
    offset := (page - 1) * pageSize

    ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
    if err != nil {
        return nil, nil, err
    }

    campaigns := make([]model.Campaign, len(ptrs))
    for i, c := range ptrs {
        campaigns[i] = *c
    }

    totalPages := (total + pageSize - 1) / pageSize
    pagination := map[string]int{
        "page":        page,
        "page_size":   pageSize,
        "total_count": total,
        "total_pages": totalPages,
    }

    return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(campaignID int) (*CampaignDetails, error) {
    campaign, err := s.CampaignRepo.GetByID(campaignID)
    if err != nil {
        return nil, err
    }

    byStatus, err := s.JobRepo.GetCampaignJobStats(campaignID)
    if err != nil {
        return nil, err
    }

    stats := map[string]int{"total": 0}
    for status, count := range byStatus {
        stats[status] = count
        stats["total"] += count
    }

    return &CampaignDetails{
        ID:          campaign.ID,
        Name:        campaign.Name,
        Status:      campaign.Status,
        FlowID:      campaign.FlowID,
        SegmentID:   campaign.SegmentID,
        ScheduledAt: campaign.ScheduledAt,
        CreatedAt:   campaign.CreatedAt,
        UpdatedAt:   campaign.UpdatedAt,
        Stats:       stats,
    }, nil
}

// ListJobs returns every job of a campaign, dispatch order.
func (s *CampaignService) ListJobs(campaignID int) ([]model.CampaignJob, error) {
    if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
        return nil, err
    }
    return s.JobRepo.FindByCampaign(campaignID)
}

// ListFailures returns the failure records of a campaign, newest first.
func (s *CampaignService) ListFailures(campaignID int) ([]model.FailureRecord, error) {
    if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
        return nil, err
    }
    return s.FailureRepo.ListByCampaign(campaignID)
}
