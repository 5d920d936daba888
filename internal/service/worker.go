package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/unclebandit/flowsend-backend/internal/metrics"
	"github.com/unclebandit/flowsend-backend/internal/model"
	"github.com/unclebandit/flowsend-backend/internal/notifier"
	"github.com/unclebandit/flowsend-backend/internal/queue"
	"github.com/unclebandit/flowsend-backend/internal/repository"
)

// Worker processes dequeued campaign jobs: Processing on pickup, Sent
// or Failed on outcome, failure record plus detached alert on Failed.
type Worker struct {
	JobRepo       repository.JobRepositoryInterface
	FailureRepo   repository.FailureRecordRepositoryInterface
	CampaignRepo  repository.CampaignRepositoryInterface
	Sender        Sender
	Notifier      notifier.Notifier
	SendTimeout   time.Duration
	NotifyTimeout time.Duration
}

func NewWorker(jobRepo repository.JobRepositoryInterface, failureRepo repository.FailureRecordRepositoryInterface, campaignRepo repository.CampaignRepositoryInterface, sender Sender, n notifier.Notifier) *Worker {
	return &Worker{
		JobRepo:       jobRepo,
		FailureRepo:   failureRepo,
		CampaignRepo:  campaignRepo,
		Sender:        sender,
		Notifier:      n,
		SendTimeout:   10 * time.Second,
		NotifyTimeout: 5 * time.Second,
	}
}

type jobResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func encodeResult(success bool, errText string) *string {
	b, _ := json.Marshal(jobResult{Success: success, Error: errText})
	s := string(b)
	return &s
}

// Process implements queue.Handler. Returning an error hands the item
// back to the queue's retry policy; by then the job row already reads
// failed, so a redelivered attempt moves it failed -> processing. The
// failed status is the last known outcome while a retry is pending.
func (w *Worker) Process(ctx context.Context, key int, payload queue.JobPayload) error {
	job, err := w.JobRepo.GetByID(key)
	if err != nil {
		return err // transient store error, let the queue redeliver
	}
	if job == nil {
		log.Println("⚠️ no job record for queue key", key, ", dropping")
		return nil
	}

	now := time.Now()
	if err := w.JobRepo.UpdateStatus(job.ID, model.JobProcessing, nil, &now); err != nil {
		return err
	}

	timer := time.Now()
	sendCtx, cancel := context.WithTimeout(ctx, w.SendTimeout)
	sendErr := w.Sender.Send(sendCtx, payload.CampaignID, payload.UserID)
	cancel()
	metrics.JobDuration.Observe(time.Since(timer).Seconds())

	if sendErr != nil {
		if err := w.JobRepo.UpdateStatus(job.ID, model.JobFailed, encodeResult(false, sendErr.Error()), nil); err != nil {
			log.Println("⚠️ failed to mark job", job.ID, "failed:", err)
		}
		metrics.JobsProcessed.WithLabelValues("failed").Inc()

		w.recordFailure(job, sendErr)
		w.maybeNotifyCompletion(job.CampaignID)
		return sendErr
	}

	if err := w.JobRepo.UpdateStatus(job.ID, model.JobSent, encodeResult(true, ""), nil); err != nil {
		return err
	}
	metrics.JobsProcessed.WithLabelValues("sent").Inc()
	log.Println("✅ Job processed successfully:", job.ID)

	w.maybeNotifyCompletion(job.CampaignID)
	return nil
}

// recordFailure writes the diagnostic row and detaches the alert. The
// alert outcome is never allowed back into the processing path; its
// only durable effect is flipping the notified flag on success.
func (w *Worker) recordFailure(job *model.CampaignJob, sendErr error) {
	rec, err := w.FailureRepo.Create(job.ID, job.CampaignID, sendErr.Error())
	if err != nil {
		log.Println("⚠️ failed to create failure record for job", job.ID, ":", err)
		return
	}
	if rec.Notified {
		// Redelivered failure that was already alerted on.
		return
	}

	alert := notifier.FailureAlert{
		JobID:      job.ID,
		CampaignID: job.CampaignID,
		UserID:     job.UserID,
		Error:      sendErr.Error(),
	}
	recID := rec.ID
	notifier.Dispatch(w.NotifyTimeout, "job failure", func(ctx context.Context) error {
		if err := w.Notifier.NotifyJobFailure(ctx, alert); err != nil {
			return err
		}
		if err := w.FailureRepo.MarkNotified(recID); err != nil {
			log.Println("⚠️ failed to mark failure record", recID, "notified:", err)
		}
		return nil
	})
}

// maybeNotifyCompletion fires the campaign-complete alert once no job
// of the campaign is pending or processing. The campaign's own status
// is owned by collaborators outside this core and stays untouched.
// Like the failure alert, delivery is one-shot per campaign: a queue
// retry of the last failing job re-reaches the all-terminal state, and
// without the flag every such pass would alert again.
func (w *Worker) maybeNotifyCompletion(campaignID int) {
	stats, err := w.JobRepo.GetCampaignJobStats(campaignID)
	if err != nil {
		log.Println("⚠️ failed to fetch job stats for campaign", campaignID, ":", err)
		return
	}
	if stats["pending"]+stats["processing"] > 0 {
		return
	}

	first, err := w.CampaignRepo.MarkCompletionNotified(campaignID)
	if err != nil {
		log.Println("⚠️ failed to claim completion alert for campaign", campaignID, ":", err)
		return
	}
	if !first {
		return
	}

	alert := notifier.CompletionAlert{
		CampaignID:   campaignID,
		TotalJobs:    stats["sent"] + stats["failed"],
		SuccessCount: stats["sent"],
		FailureCount: stats["failed"],
	}
	notifier.Dispatch(w.NotifyTimeout, "campaign complete", func(ctx context.Context) error {
		return w.Notifier.NotifyCampaignComplete(ctx, alert)
	})
}
