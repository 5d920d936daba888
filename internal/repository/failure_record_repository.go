package repository

import (
    "database/sql"

    "github.com/unclebandit/flowsend-backend/internal/model"
)

type FailureRecordRepositoryInterface interface {
    Create(jobID, campaignID int, errText string) (*model.FailureRecord, error)
    GetByJobID(jobID int) (*model.FailureRecord, error)
    MarkNotified(id int) error
    ListByCampaign(campaignID int) ([]model.FailureRecord, error)
}

type FailureRecordRepository struct {
    DB *sql.DB
}

// Idempotent insert: one record per job. A redelivered failure gets the
// existing record back, notified flag included, so the alert is not
// raised twice for the same job.
func (r *FailureRecordRepository) Create(jobID, campaignID int, errText string) (*model.FailureRecord, error) {
    existing, err := r.GetByJobID(jobID)
    if err != nil {
        return nil, err
    }
    if existing != nil {
        return existing, nil
    }

    query := `
        INSERT INTO failure_records (job_id, campaign_id, error, notified, created_at)
        VALUES ($1, $2, $3, FALSE, NOW())
        RETURNING id, created_at
    `
    rec := &model.FailureRecord{
        JobID:      jobID,
        CampaignID: campaignID,
        Error:      errText,
        Notified:   false,
    }
    if err := r.DB.QueryRow(query, jobID, campaignID, errText).Scan(&rec.ID, &rec.CreatedAt); err != nil {
        return nil, err
    }
    return rec, nil
}

func (r *FailureRecordRepository) GetByJobID(jobID int) (*model.FailureRecord, error) {
    query := `SELECT id, job_id, campaign_id, error, notified, created_at
              FROM failure_records
              WHERE job_id=$1`
    var rec model.FailureRecord
    err := r.DB.QueryRow(query, jobID).Scan(&rec.ID, &rec.JobID, &rec.CampaignID, &rec.Error, &rec.Notified, &rec.CreatedAt)
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, nil
        }
        return nil, err
    }
    return &rec, nil
}

// MarkNotified flips the notified flag; the only mutation a failure
// record ever sees.
func (r *FailureRecordRepository) MarkNotified(id int) error {
    query := `UPDATE failure_records SET notified=TRUE WHERE id=$1`
    _, err := r.DB.Exec(query, id)
    return err
}

func (r *FailureRecordRepository) ListByCampaign(campaignID int) ([]model.FailureRecord, error) {
    query := `
        SELECT id, job_id, campaign_id, error, notified, created_at
        FROM failure_records
        WHERE campaign_id=$1
        ORDER BY id DESC
    `
    rows, err := r.DB.Query(query, campaignID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    records := []model.FailureRecord{}
    for rows.Next() {
        var rec model.FailureRecord
        if err := rows.Scan(&rec.ID, &rec.JobID, &rec.CampaignID, &rec.Error, &rec.Notified, &rec.CreatedAt); err != nil {
            return nil, err
        }
        records = append(records, rec)
    }
    return records, rows.Err()
}

var _ FailureRecordRepositoryInterface = (*FailureRecordRepository)(nil)
