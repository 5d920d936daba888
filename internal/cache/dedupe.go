package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeIndex remembers which job keys have already been enqueued so a
// retried dispatch cannot produce a second deliverable queue item for
// the same job. Unmark releases a key whose publish did not go through,
// otherwise a retried dispatch would skip the job entirely.
type DedupeIndex interface {
	MarkEnqueued(ctx context.Context, key int) (bool, error)
	Unmark(ctx context.Context, key int) error
}

const enqueuedKeyTTL = 7 * 24 * time.Hour

type RedisDedupeIndex struct {
	client *redis.Client
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unexpected error while pinging redis: %w", err)
	}
	return client, nil
}

func NewRedisDedupeIndex(client *redis.Client) *RedisDedupeIndex {
	return &RedisDedupeIndex{client: client}
}

func enqueuedKey(key int) string {
	return fmt.Sprintf("campaign_jobs:enqueued:%d", key)
}

// MarkEnqueued returns false when the key was already present. SETNX
// makes the check-and-set atomic across concurrent dispatchers.
func (i *RedisDedupeIndex) MarkEnqueued(ctx context.Context, key int) (bool, error) {
	return i.client.SetNX(ctx, enqueuedKey(key), 1, enqueuedKeyTTL).Result()
}

func (i *RedisDedupeIndex) Unmark(ctx context.Context, key int) error {
	return i.client.Del(ctx, enqueuedKey(key)).Err()
}

// InMemoryDedupeIndex backs tests and single-process runs.
type InMemoryDedupeIndex struct {
	mu   sync.Mutex
	seen map[int]bool
}

func NewInMemoryDedupeIndex() *InMemoryDedupeIndex {
	return &InMemoryDedupeIndex{seen: make(map[int]bool)}
}

func (i *InMemoryDedupeIndex) MarkEnqueued(ctx context.Context, key int) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.seen[key] {
		return false, nil
	}
	i.seen[key] = true
	return true, nil
}

func (i *InMemoryDedupeIndex) Unmark(ctx context.Context, key int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.seen, key)
	return nil
}

var _ DedupeIndex = (*RedisDedupeIndex)(nil)
var _ DedupeIndex = (*InMemoryDedupeIndex)(nil)
