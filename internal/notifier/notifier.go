package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/flowsend-backend/internal/metrics"
)

// FailureAlert is the payload posted when a job ends in failed.
type FailureAlert struct {
	AlertID    string `json:"alert_id"`
	JobID      int    `json:"job_id"`
	CampaignID int    `json:"campaign_id"`
	UserID     int    `json:"user_id"`
	Error      string `json:"error"`
}

// CompletionAlert is the payload posted when every job of a campaign
// has reached a terminal status.
type CompletionAlert struct {
	AlertID      string `json:"alert_id"`
	CampaignID   int    `json:"campaign_id"`
	TotalJobs    int    `json:"total_jobs"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
}

// Notifier delivers alerts to the external alerting channel. Callers
// treat both operations as best-effort; the pipeline never blocks on
// them and never lets their errors change job or campaign state.
type Notifier interface {
	NotifyJobFailure(ctx context.Context, alert FailureAlert) error
	NotifyCampaignComplete(ctx context.Context, alert CompletionAlert) error
}

// WebhookNotifier posts alerts to an n8n-style webhook endpoint.
type WebhookNotifier struct {
	BaseURL string
	Client  *http.Client
}

func NewWebhookNotifier(baseURL string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) NotifyJobFailure(ctx context.Context, alert FailureAlert) error {
	if alert.AlertID == "" {
		alert.AlertID = uuid.NewString()
	}
	err := n.post(ctx, "/job-failure", alert)
	if err != nil {
		metrics.AlertsDelivered.WithLabelValues("job_failure", "error").Inc()
		return err
	}
	metrics.AlertsDelivered.WithLabelValues("job_failure", "ok").Inc()
	return nil
}

func (n *WebhookNotifier) NotifyCampaignComplete(ctx context.Context, alert CompletionAlert) error {
	if alert.AlertID == "" {
		alert.AlertID = uuid.NewString()
	}
	err := n.post(ctx, "/campaign-complete", alert)
	if err != nil {
		metrics.AlertsDelivered.WithLabelValues("campaign_complete", "error").Inc()
		return err
	}
	metrics.AlertsDelivered.WithLabelValues("campaign_complete", "ok").Inc()
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

// Dispatch runs fn detached with its own timeout. Errors are logged and
// swallowed; nothing is observed by the caller. This is the named
// fire-and-forget contract the worker relies on.
func Dispatch(timeout time.Duration, kind string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("⚠️ %s alert not delivered: %v\n", kind, err)
		}
	}()
}

var _ Notifier = (*WebhookNotifier)(nil)
