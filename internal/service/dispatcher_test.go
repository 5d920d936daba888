package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	appErrors "github.com/unclebandit/flowsend-backend/internal/errors"
	"github.com/unclebandit/flowsend-backend/internal/model"
	"github.com/unclebandit/flowsend-backend/internal/notifier"
	"github.com/unclebandit/flowsend-backend/internal/queue"
	"github.com/unclebandit/flowsend-backend/internal/service"
)

// In-memory campaign repo
type memCampaignRepo struct {
	mu                 sync.Mutex
	campaigns          map[int]*model.Campaign
	completionNotified map[int]bool
}

func newMemCampaignRepo(campaigns ...*model.Campaign) *memCampaignRepo {
	m := &memCampaignRepo{
		campaigns:          map[int]*model.Campaign{},
		completionNotified: map[int]bool{},
	}
	for _, c := range campaigns {
		m.campaigns[c.ID] = c
	}
	return m
}

func (m *memCampaignRepo) Create(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = len(m.campaigns) + 1
	c.CreatedAt = time.Now()
	m.campaigns[c.ID] = c
	return nil
}

func (m *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	return nil, 0, nil
}

func (m *memCampaignRepo) UpdateStatus(campaignID int, status model.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

func (m *memCampaignRepo) MarkCompletionNotified(campaignID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completionNotified[campaignID] {
		return false, nil
	}
	m.completionNotified[campaignID] = true
	return true, nil
}

func (m *memCampaignRepo) status(id int) model.CampaignStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id].Status
}

// In-memory job store recording every status transition per job
type memJobRepo struct {
	mu          sync.Mutex
	nextID      int
	jobs        map[int]*model.CampaignJob
	transitions map[int][]model.JobStatus
	createErr   error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{
		jobs:        map[int]*model.CampaignJob{},
		transitions: map[int][]model.JobStatus{},
	}
}

func (m *memJobRepo) CreateJob(campaignID, userID int) (*model.CampaignJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, j := range m.jobs {
		if j.CampaignID == campaignID && j.UserID == userID {
			cp := *j
			return &cp, nil
		}
	}
	m.nextID++
	j := &model.CampaignJob{
		ID:         m.nextID,
		CampaignID: campaignID,
		UserID:     userID,
		Status:     model.JobPending,
		CreatedAt:  time.Now(),
	}
	m.jobs[j.ID] = j
	m.transitions[j.ID] = []model.JobStatus{model.JobPending}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) GetByID(id int) (*model.CampaignJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) GetByCampaignAndUser(campaignID, userID int) (*model.CampaignJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.CampaignID == campaignID && j.UserID == userID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memJobRepo) FindByCampaign(campaignID int) ([]model.CampaignJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := []model.CampaignJob{}
	for id := 1; id <= m.nextID; id++ {
		if j, ok := m.jobs[id]; ok && j.CampaignID == campaignID {
			jobs = append(jobs, *j)
		}
	}
	return jobs, nil
}

func (m *memJobRepo) UpdateStatus(id int, status model.JobStatus, result *string, processedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %d not found", id)
	}
	j.Status = status
	if result != nil {
		j.Result = result
	}
	if processedAt != nil {
		j.ProcessedAt = processedAt
	}
	m.transitions[id] = append(m.transitions[id], status)
	return nil
}

func (m *memJobRepo) GetCampaignJobStats(campaignID int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[string]int{"pending": 0, "processing": 0, "sent": 0, "failed": 0}
	for _, j := range m.jobs {
		if j.CampaignID == campaignID {
			stats[string(j.Status)]++
		}
	}
	return stats, nil
}

func (m *memJobRepo) history(id int) []model.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.JobStatus{}, m.transitions[id]...)
}

// In-memory failure record repo
type memFailureRepo struct {
	mu       sync.Mutex
	nextID   int
	records  map[int]*model.FailureRecord
	notified chan int
}

func newMemFailureRepo() *memFailureRepo {
	return &memFailureRepo{
		records:  map[int]*model.FailureRecord{},
		notified: make(chan int, 8),
	}
}

func (m *memFailureRepo) Create(jobID, campaignID int, errText string) (*model.FailureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.JobID == jobID {
			cp := *r
			return &cp, nil
		}
	}
	m.nextID++
	rec := &model.FailureRecord{
		ID:         m.nextID,
		JobID:      jobID,
		CampaignID: campaignID,
		Error:      errText,
		CreatedAt:  time.Now(),
	}
	m.records[rec.ID] = rec
	cp := *rec
	return &cp, nil
}

func (m *memFailureRepo) GetByJobID(jobID int) (*model.FailureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.JobID == jobID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memFailureRepo) MarkNotified(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		r.Notified = true
	}
	m.notified <- id
	return nil
}

func (m *memFailureRepo) ListByCampaign(campaignID int) ([]model.FailureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := []model.FailureRecord{}
	for id := 1; id <= m.nextID; id++ {
		if r, ok := m.records[id]; ok && r.CampaignID == campaignID {
			records = append(records, *r)
		}
	}
	return records, nil
}

// Resolver stub
type stubResolver struct {
	ids []int
	err error
}

func (s *stubResolver) Resolve(ctx context.Context, campaign *model.Campaign) ([]int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ids, nil
}

// Queue recording deliverable items; one deliverable per key, as the
// real queue guarantees.
type recordingQueue struct {
	mu          sync.Mutex
	deliverable []int
	payloads    map[int]queue.JobPayload
	failUser    int
	failErr     error
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{payloads: map[int]queue.JobPayload{}}
}

func (q *recordingQueue) Enqueue(ctx context.Context, key int, payload queue.JobPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failUser != 0 && payload.UserID == q.failUser {
		return q.failErr
	}
	if _, seen := q.payloads[key]; seen {
		return nil
	}
	q.payloads[key] = payload
	q.deliverable = append(q.deliverable, key)
	return nil
}

func (q *recordingQueue) Consume(ctx context.Context, handler queue.Handler) error {
	return nil
}

func (q *recordingQueue) keys() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]int{}, q.deliverable...)
}

// Notifier stub signalling each alert over a channel
type stubNotifier struct {
	failErr     error
	completeErr error
	failures    chan notifier.FailureAlert
	completions chan notifier.CompletionAlert
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{
		failures:    make(chan notifier.FailureAlert, 8),
		completions: make(chan notifier.CompletionAlert, 8),
	}
}

func (s *stubNotifier) NotifyJobFailure(ctx context.Context, alert notifier.FailureAlert) error {
	s.failures <- alert
	return s.failErr
}

func (s *stubNotifier) NotifyCampaignComplete(ctx context.Context, alert notifier.CompletionAlert) error {
	s.completions <- alert
	return s.completeErr
}

func newDispatcher(campaignRepo *memCampaignRepo, jobRepo *memJobRepo, resolver service.RecipientResolver, q queue.Queue) *service.Dispatcher {
	return &service.Dispatcher{
		CampaignRepo: campaignRepo,
		JobRepo:      jobRepo,
		Resolver:     resolver,
		Queue:        q,
	}
}

func TestStartCampaign(t *testing.T) {
	campaignRepo := newMemCampaignRepo(&model.Campaign{ID: 1, Name: "C1", Status: model.CampaignDraft})
	jobRepo := newMemJobRepo()
	q := newRecordingQueue()
	d := newDispatcher(campaignRepo, jobRepo, &stubResolver{ids: []int{10, 20}}, q)

	result, err := d.Start(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TargetedCount != 2 {
		t.Errorf("expected targeted count 2, got %d", result.TargetedCount)
	}

	jobs, _ := jobRepo.FindByCampaign(1)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	for _, j := range jobs {
		if j.Status != model.JobPending {
			t.Errorf("expected job %d pending, got %s", j.ID, j.Status)
		}
	}
	if jobs[0].UserID != 10 || jobs[1].UserID != 20 {
		t.Errorf("expected jobs in recipient order, got %d then %d", jobs[0].UserID, jobs[1].UserID)
	}

	if keys := q.keys(); len(keys) != 2 || keys[0] != jobs[0].ID || keys[1] != jobs[1].ID {
		t.Errorf("expected queue keys to equal job IDs, got %v", keys)
	}

	if campaignRepo.status(1) != model.CampaignActive {
		t.Errorf("expected campaign active, got %s", campaignRepo.status(1))
	}
}

func TestStartCampaignNotFound(t *testing.T) {
	d := newDispatcher(newMemCampaignRepo(), newMemJobRepo(), &stubResolver{}, newRecordingQueue())

	_, err := d.Start(context.Background(), 99)
	var notFound *appErrors.ErrCampaignNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

func TestStartCampaignAlreadyActive(t *testing.T) {
	campaignRepo := newMemCampaignRepo(&model.Campaign{ID: 1, Status: model.CampaignActive})
	jobRepo := newMemJobRepo()
	d := newDispatcher(campaignRepo, jobRepo, &stubResolver{ids: []int{10}}, newRecordingQueue())

	_, err := d.Start(context.Background(), 1)
	var alreadyActive *appErrors.ErrCampaignAlreadyActive
	if !errors.As(err, &alreadyActive) {
		t.Fatalf("expected ErrCampaignAlreadyActive, got %v", err)
	}
	if jobs, _ := jobRepo.FindByCampaign(1); len(jobs) != 0 {
		t.Errorf("expected no jobs created, got %d", len(jobs))
	}
}

func TestStartCampaignNoRecipients(t *testing.T) {
	campaignRepo := newMemCampaignRepo(&model.Campaign{ID: 1, Status: model.CampaignDraft})
	jobRepo := newMemJobRepo()
	q := newRecordingQueue()
	d := newDispatcher(campaignRepo, jobRepo, &stubResolver{ids: []int{}}, q)

	result, err := d.Start(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TargetedCount != 0 {
		t.Errorf("expected targeted count 0, got %d", result.TargetedCount)
	}
	if jobs, _ := jobRepo.FindByCampaign(1); len(jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(jobs))
	}
	if campaignRepo.status(1) != model.CampaignActive {
		t.Errorf("expected campaign active after empty dispatch, got %s", campaignRepo.status(1))
	}
}

func TestStartCampaignResolverFailure(t *testing.T) {
	campaignRepo := newMemCampaignRepo(&model.Campaign{ID: 1, Status: model.CampaignDraft})
	jobRepo := newMemJobRepo()
	d := newDispatcher(campaignRepo, jobRepo, &stubResolver{err: errors.New("users table unavailable")}, newRecordingQueue())

	_, err := d.Start(context.Background(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if jobs, _ := jobRepo.FindByCampaign(1); len(jobs) != 0 {
		t.Errorf("expected no jobs after resolver failure, got %d", len(jobs))
	}
	if campaignRepo.status(1) != model.CampaignDraft {
		t.Errorf("expected campaign to stay draft, got %s", campaignRepo.status(1))
	}
}

// A retried start after a mid-list enqueue failure must reuse the job
// IDs from the first attempt and never yield two deliverable queue
// items for the same key.
func TestStartCampaignRetryReusesJobIDs(t *testing.T) {
	campaignRepo := newMemCampaignRepo(&model.Campaign{ID: 1, Status: model.CampaignDraft})
	jobRepo := newMemJobRepo()
	q := newRecordingQueue()
	q.failUser = 20
	q.failErr = errors.New("broker unavailable")
	d := newDispatcher(campaignRepo, jobRepo, &stubResolver{ids: []int{10, 20}}, q)

	_, err := d.Start(context.Background(), 1)
	var partial *appErrors.ErrPartialDispatch
	if !errors.As(err, &partial) {
		t.Fatalf("expected ErrPartialDispatch, got %v", err)
	}
	if partial.Created != 1 {
		t.Errorf("expected 1 job dispatched before the failure, got %d", partial.Created)
	}
	if campaignRepo.status(1) != model.CampaignDraft {
		t.Errorf("expected campaign to stay draft after partial dispatch, got %s", campaignRepo.status(1))
	}

	firstJobs, _ := jobRepo.FindByCampaign(1)

	q.failUser = 0
	result, err := d.Start(context.Background(), 1)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.TargetedCount != 2 {
		t.Errorf("expected targeted count 2 on retry, got %d", result.TargetedCount)
	}

	retryJobs, _ := jobRepo.FindByCampaign(1)
	if len(retryJobs) != 2 {
		t.Fatalf("expected 2 jobs after retry, got %d", len(retryJobs))
	}
	for i, j := range firstJobs {
		if retryJobs[i].ID != j.ID {
			t.Errorf("expected retry to reuse job ID %d, got %d", j.ID, retryJobs[i].ID)
		}
	}
	if keys := q.keys(); len(keys) != 2 {
		t.Errorf("expected exactly one deliverable item per job, got keys %v", keys)
	}
	if campaignRepo.status(1) != model.CampaignActive {
		t.Errorf("expected campaign active after retry, got %s", campaignRepo.status(1))
	}
}
