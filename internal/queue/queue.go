package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// JobPayload is the wire shape of one work item. The queue key is the
// job's database ID and travels separately, as the broker message ID.
type JobPayload struct {
	CampaignID int `json:"campaign_id"`
	UserID     int `json:"user_id"`
}

// Handler processes one delivered work item. Returning an error hands
// the item back to the queue's retry policy.
type Handler func(ctx context.Context, key int, payload JobPayload) error

// Queue is the at-least-once work channel between dispatcher and
// worker. Enqueue with a key that was already enqueued must not create
// a second deliverable item.
type Queue interface {
	Enqueue(ctx context.Context, key int, payload JobPayload) error
	Consume(ctx context.Context, handler Handler) error
}

// InMemoryQueue is a single-process queue with key de-duplication and
// bounded retry, used in tests and when no broker is configured.
type InMemoryQueue struct {
	mu         sync.Mutex
	handler    Handler
	ctx        context.Context // consumer's, governs deliveries and retry waits
	seen       map[int]bool
	backlog    []item
	MaxRetries int
	RetryDelay time.Duration
	wg         sync.WaitGroup
}

type item struct {
	key     int
	payload JobPayload
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		seen:       make(map[int]bool),
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// Enqueue records the key and, once a consumer is attached, dispatches
// the item on its own goroutine. Re-enqueue of a known key is a no-op.
func (q *InMemoryQueue) Enqueue(ctx context.Context, key int, payload JobPayload) error {
	q.mu.Lock()
	if q.seen[key] {
		q.mu.Unlock()
		return nil
	}
	q.seen[key] = true
	handler := q.handler
	consumeCtx := q.ctx
	if handler == nil {
		q.backlog = append(q.backlog, item{key: key, payload: payload})
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	q.dispatch(consumeCtx, handler, key, payload)
	return nil
}

// Consume attaches the handler and drains anything enqueued before a
// consumer existed. Cancelling ctx stops deliveries and retry waits.
func (q *InMemoryQueue) Consume(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	if q.handler != nil {
		q.mu.Unlock()
		return fmt.Errorf("queue already has a consumer")
	}
	q.handler = handler
	q.ctx = ctx
	backlog := q.backlog
	q.backlog = nil
	q.mu.Unlock()

	for _, it := range backlog {
		q.dispatch(ctx, handler, it.key, it.payload)
	}
	return nil
}

func (q *InMemoryQueue) dispatch(ctx context.Context, handler Handler, key int, payload JobPayload) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.processJob(ctx, handler, key, payload)
	}()
}

// processJob retries with linear backoff, then drops, mirroring a
// broker's bounded redelivery.
func (q *InMemoryQueue) processJob(ctx context.Context, handler Handler, key int, payload JobPayload) {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			log.Printf("job %d abandoned, consumer stopped\n", key)
			return
		}
		err := handler(ctx, key, payload)
		if err == nil {
			return // ACK
		}

		log.Printf("job %d failed (attempt %d/%d): %v\n", key, attempt+1, q.MaxRetries, err)
		if attempt+1 >= q.MaxRetries {
			log.Printf("job %d permanently failed after %d attempts\n", key, q.MaxRetries)
			return
		}
		select {
		case <-time.After(time.Duration(attempt+1) * q.RetryDelay):
		case <-ctx.Done():
			log.Printf("job %d retry abandoned, consumer stopped\n", key)
			return
		}
	}
}

// Wait blocks until all in-flight deliveries have finished.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

var _ Queue = (*InMemoryQueue)(nil)
