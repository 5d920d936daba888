// internal/service/dispatcher.go
package service

import (
    "context"
    "fmt"
    "log"

    appErrors "github.com/unclebandit/flowsend-backend/internal/errors"
    "github.com/unclebandit/flowsend-backend/internal/metrics"
    "github.com/unclebandit/flowsend-backend/internal/model"
    "github.com/unclebandit/flowsend-backend/internal/queue"
    "github.com/unclebandit/flowsend-backend/internal/repository"
)

// Dispatcher turns one start call into a set of pending jobs and queue
// items, then marks the campaign active.
type Dispatcher struct {
    CampaignRepo repository.CampaignRepositoryInterface
    JobRepo      repository.JobRepositoryInterface
    Resolver     RecipientResolver
    Queue        queue.Queue
}

// Result struct for Start
type DispatchResult struct {
    CampaignID    int   `json:"campaign_id"`
    TargetedCount int   `json:"targeted_count"`
    JobIDs        []int `json:"job_ids"`
}

// Start fans a campaign out to its recipients. Per recipient, in order:
// create the job record first (the database assigns the ID that becomes
// the queue de-duplication key), then enqueue under that key. Job
// creation returns the existing row on a retry, so calling Start again
// after a partial failure reuses the same keys instead of producing
// duplicate attempts.
func (d *Dispatcher) Start(ctx context.Context, campaignID int) (*DispatchResult, error) {
    campaign, err := d.CampaignRepo.GetByID(campaignID)
    if err != nil {
        return nil, err
    }

    if campaign.Status == model.CampaignActive || campaign.Status == model.CampaignCompleted {
        return nil, appErrors.NewCampaignAlreadyActive(campaignID, string(campaign.Status))
    }

    userIDs, err := d.Resolver.Resolve(ctx, campaign)
    if err != nil {
        // Nothing was created yet; the dispatch aborts cleanly.
        return nil, fmt.Errorf("resolving recipients for campaign %d: %w", campaignID, err)
    }

    result := &DispatchResult{
        CampaignID: campaignID,
        JobIDs:     []int{},
    }

    for _, userID := range userIDs {
        job, err := d.JobRepo.CreateJob(campaignID, userID)
        if err != nil {
            return nil, appErrors.NewPartialDispatch(campaignID, result.TargetedCount, err)
        }

        payload := queue.JobPayload{CampaignID: campaignID, UserID: userID}
        if err := d.Queue.Enqueue(ctx, job.ID, payload); err != nil {
            return nil, appErrors.NewPartialDispatch(campaignID, result.TargetedCount, err)
        }

        result.JobIDs = append(result.JobIDs, job.ID)
        result.TargetedCount++
        metrics.JobsDispatched.Inc()
    }

    // Only after every job is durably created and enqueued does the
    // campaign become active.
    if err := d.CampaignRepo.UpdateStatus(campaignID, model.CampaignActive); err != nil {
        return nil, appErrors.NewPartialDispatch(campaignID, result.TargetedCount, err)
    }

    log.Printf("🚀 Campaign %d started for %d users\n", campaignID, result.TargetedCount)
    return result, nil
}
