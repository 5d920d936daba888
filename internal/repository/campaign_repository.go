package repository

import (
    "database/sql"
    "fmt"
    "time"

    appErrors "github.com/unclebandit/flowsend-backend/internal/errors"
    "github.com/unclebandit/flowsend-backend/internal/model"
)

type CampaignRepositoryInterface interface {
    Create(c *model.Campaign) error
    GetByID(id int) (*model.Campaign, error)
    ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)
    UpdateStatus(campaignID int, status model.CampaignStatus) error
    MarkCompletionNotified(campaignID int) (bool, error)
}

type CampaignRepository struct {
    DB *sql.DB
}

func (r *CampaignRepository) Create(c *model.Campaign) error {
    c.CreatedAt = time.Now()
    if c.Status == "" {
        c.Status = model.CampaignDraft
    }
    query := `
        INSERT INTO campaigns (name, status, flow_id, segment_id, scheduled_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
    return r.DB.QueryRow(query, c.Name, c.Status, c.FlowID, c.SegmentID, c.ScheduledAt, c.CreatedAt).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
    query := `
        SELECT id, name, status, flow_id, segment_id, scheduled_at, completion_notified, created_at, updated_at
        FROM campaigns WHERE id=$1
    `
    var c model.Campaign
    err := r.DB.QueryRow(query, id).Scan(&c.ID, &c.Name, &c.Status, &c.FlowID, &c.SegmentID, &c.ScheduledAt, &c.CompletionNotified, &c.CreatedAt, &c.UpdatedAt)
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewCampaignNotFound(id)
        }
        return nil, err
    }
    return &c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
    campaigns := []*model.Campaign{}
    query := `SELECT id, name, status, flow_id, segment_id, scheduled_at, completion_notified, created_at, updated_at FROM campaigns WHERE 1=1`
    args := []interface{}{}
    argPos := 1

    if status != "" {
        query += fmt.Sprintf(" AND status=$%d", argPos)
        args = append(args, status)
        argPos++
    }

    query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
    args = append(args, limit, offset)

    rows, err := r.DB.Query(query, args...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    for rows.Next() {
        c := &model.Campaign{}
        if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.FlowID, &c.SegmentID, &c.ScheduledAt, &c.CompletionNotified, &c.CreatedAt, &c.UpdatedAt); err != nil {
            return nil, 0, err
        }
        campaigns = append(campaigns, c)
    }

    countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
    argsCount := []interface{}{}
    if status != "" {
        countQuery += " AND status=$1"
        argsCount = append(argsCount, status)
    }

    var total int
    if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
        return nil, 0, err
    }

    return campaigns, total, nil
}

func (r *CampaignRepository) UpdateStatus(campaignID int, status model.CampaignStatus) error {
    query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
    _, err := r.DB.Exec(query, status, time.Now(), campaignID)
    return err
}

// MarkCompletionNotified flips the flag and reports whether this call
// was the one that flipped it. The guarded UPDATE makes the first-wins
// decision atomic across concurrent workers.
func (r *CampaignRepository) MarkCompletionNotified(campaignID int) (bool, error) {
    query := `UPDATE campaigns SET completion_notified=TRUE, updated_at=$1 WHERE id=$2 AND completion_notified=FALSE`
    res, err := r.DB.Exec(query, time.Now(), campaignID)
    if err != nil {
        return false, err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return affected > 0, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
