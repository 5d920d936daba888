package repository

import (
    "database/sql"
    "time"

    "github.com/unclebandit/flowsend-backend/internal/model"
)

// JobRepositoryInterface is the Job Store contract: source of truth for
// job status and for dispatch idempotency.
type JobRepositoryInterface interface {
    CreateJob(campaignID, userID int) (*model.CampaignJob, error)
    GetByID(id int) (*model.CampaignJob, error)
    GetByCampaignAndUser(campaignID, userID int) (*model.CampaignJob, error)
    FindByCampaign(campaignID int) ([]model.CampaignJob, error)
    UpdateStatus(id int, status model.JobStatus, result *string, processedAt *time.Time) error
    GetCampaignJobStats(campaignID int) (map[string]int, error)
}

type JobRepository struct {
    DB *sql.DB
}

// Idempotent insert: one job per (campaign, user). A retried dispatch
// gets the existing row back, ID included, so the queue key stays stable.
func (r *JobRepository) CreateJob(campaignID, userID int) (*model.CampaignJob, error) {
    existing, err := r.GetByCampaignAndUser(campaignID, userID)
    if err != nil {
        return nil, err
    }
    if existing != nil {
        return existing, nil
    }

    query := `
        INSERT INTO campaign_jobs (campaign_id, user_id, status, created_at)
        VALUES ($1, $2, 'pending', NOW())
        RETURNING id, status, created_at
    `
    var job model.CampaignJob
    err = r.DB.QueryRow(query, campaignID, userID).Scan(&job.ID, &job.Status, &job.CreatedAt)
    if err != nil {
        return nil, err
    }

    job.CampaignID = campaignID
    job.UserID = userID
    return &job, nil
}

func (r *JobRepository) GetByCampaignAndUser(campaignID, userID int) (*model.CampaignJob, error) {
    query := `SELECT id, campaign_id, user_id, status, result, processed_at, created_at
              FROM campaign_jobs
              WHERE campaign_id=$1 AND user_id=$2`
    var job model.CampaignJob
    err := r.DB.QueryRow(query, campaignID, userID).Scan(
        &job.ID, &job.CampaignID, &job.UserID, &job.Status,
        &job.Result, &job.ProcessedAt, &job.CreatedAt,
    )
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, nil
        }
        return nil, err
    }
    return &job, nil
}

func (r *JobRepository) GetByID(id int) (*model.CampaignJob, error) {
    query := `
        SELECT id, campaign_id, user_id, status, result, processed_at, created_at
        FROM campaign_jobs
        WHERE id=$1
    `
    var job model.CampaignJob
    err := r.DB.QueryRow(query, id).Scan(
        &job.ID, &job.CampaignID, &job.UserID, &job.Status,
        &job.Result, &job.ProcessedAt, &job.CreatedAt,
    )
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, nil
        }
        return nil, err
    }
    return &job, nil
}

func (r *JobRepository) FindByCampaign(campaignID int) ([]model.CampaignJob, error) {
    query := `
        SELECT id, campaign_id, user_id, status, result, processed_at, created_at
        FROM campaign_jobs
        WHERE campaign_id=$1
        ORDER BY id
    `
    rows, err := r.DB.Query(query, campaignID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    jobs := []model.CampaignJob{}
    for rows.Next() {
        var job model.CampaignJob
        if err := rows.Scan(
            &job.ID, &job.CampaignID, &job.UserID, &job.Status,
            &job.Result, &job.ProcessedAt, &job.CreatedAt,
        ); err != nil {
            return nil, err
        }
        jobs = append(jobs, job)
    }
    return jobs, rows.Err()
}

// UpdateStatus is a single atomic row update; concurrent writers to the
// same job serialize on the row lock.
func (r *JobRepository) UpdateStatus(id int, status model.JobStatus, result *string, processedAt *time.Time) error {
    query := `UPDATE campaign_jobs SET status=$1, result=COALESCE($2, result), processed_at=COALESCE($3, processed_at) WHERE id=$4`
    _, err := r.DB.Exec(query, status, result, processedAt, id)
    return err
}

func (r *JobRepository) GetCampaignJobStats(campaignID int) (map[string]int, error) {
    query := `SELECT status, COUNT(*) FROM campaign_jobs WHERE campaign_id=$1 GROUP BY status`
    rows, err := r.DB.Query(query, campaignID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    stats := map[string]int{"pending": 0, "processing": 0, "sent": 0, "failed": 0}
    for rows.Next() {
        var status string
        var count int
        if err := rows.Scan(&status, &count); err != nil {
            return nil, err
        }
        stats[status] = count
    }
    return stats, rows.Err()
}

var _ JobRepositoryInterface = (*JobRepository)(nil)
