// internal/controller/campaign_controller.go
package controller

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"

    "github.com/go-chi/chi/v5"

    appErrors "github.com/unclebandit/flowsend-backend/internal/errors"
    "github.com/unclebandit/flowsend-backend/internal/service"
)

type CampaignController struct {
    CampaignService *service.CampaignService
    Dispatcher      *service.Dispatcher
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
    var body struct {
        Name        string  `json:"name"`
        FlowID      int     `json:"flow_id"`
        SegmentID   *int    `json:"segment_id"`
        ScheduledAt *string `json:"scheduled_at"`
    }
    if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
        http.Error(w, "invalid body", http.StatusBadRequest)
        return
    }
    if body.Name == "" || body.FlowID == 0 {
        http.Error(w, "name and flow_id are required", http.StatusBadRequest)
        return
    }

    campaign, err := c.CampaignService.CreateCampaign(body.Name, body.FlowID, body.SegmentID, body.ScheduledAt)
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusCreated)
    json.NewEncoder(w).Encode(campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
    status := r.URL.Query().Get("status")

    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }

    campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, status)
    if err != nil {
        http.Error(w, err.Error(), http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "data":       campaigns,
        "pagination": pagination,
    })
}

// StartCampaign triggers the dispatch fan-out. Individual delivery
// failures are never visible here; they surface later through job
// status queries or the failure-alert channel.
func (c *CampaignController) StartCampaign(w http.ResponseWriter, r *http.Request) {
    idStr := chi.URLParam(r, "id")
    id, err := strconv.Atoi(idStr)
    if err != nil {
        http.Error(w, "invalid campaign id", http.StatusBadRequest)
        return
    }

    result, err := c.Dispatcher.Start(r.Context(), id)
    if err != nil {
        var notFound *appErrors.ErrCampaignNotFound
        var alreadyActive *appErrors.ErrCampaignAlreadyActive
        switch {
        case errors.As(err, &notFound):
            http.Error(w, err.Error(), http.StatusNotFound)
        case errors.As(err, &alreadyActive):
            http.Error(w, err.Error(), http.StatusConflict)
        default:
            // Partial dispatch included: safe to retry the same call.
            http.Error(w, err.Error(), http.StatusInternalServerError)
        }
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusAccepted)
    json.NewEncoder(w).Encode(map[string]interface{}{
        "campaign_id":    result.CampaignID,
        "targeted_count": result.TargetedCount,
        "status":         "active",
    })
}
