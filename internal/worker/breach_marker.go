package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	breachKeyPrefix = "helpdesk:sla_breach:"
	// DefaultBreachMarkTTL bounds how long a reported breach is remembered.
	DefaultBreachMarkTTL = 30 * 24 * time.Hour
)

// BreachMarker remembers which deadlines were already reported. Mark returns
// true only for the first caller per ticket and deadline.
type BreachMarker interface {
	Mark(ctx context.Context, ticketID int64, dueAt time.Time) (bool, error)
}

// RedisBreachMarker shares marks between service instances.
type RedisBreachMarker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBreachMarker builds a marker on client. A non-positive ttl uses
// DefaultBreachMarkTTL.
func NewRedisBreachMarker(client *redis.Client, ttl time.Duration) *RedisBreachMarker {
	if ttl <= 0 {
		ttl = DefaultBreachMarkTTL
	}
	return &RedisBreachMarker{client: client, ttl: ttl}
}

// Format: helpdesk:sla_breach:{ticket_id}:{due_unix}
func breachKey(ticketID int64, dueAt time.Time) string {
	return fmt.Sprintf("%s%d:%d", breachKeyPrefix, ticketID, dueAt.Unix())
}

// Mark uses SETNX so concurrent monitors report a breach once.
func (m *RedisBreachMarker) Mark(ctx context.Context, ticketID int64, dueAt time.Time) (bool, error) {
	acquired, err := m.client.SetNX(ctx, breachKey(ticketID, dueAt), "1", m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark sla breach: %w", err)
	}
	return acquired, nil
}

// MemoryBreachMarker keeps marks in process memory. Marks expire after the
// ttl like their Redis counterparts; expired marks are pruned on Mark.
type MemoryBreachMarker struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	marks map[string]time.Time
}

// NewMemoryBreachMarker returns an empty marker. A non-positive ttl uses
// DefaultBreachMarkTTL.
func NewMemoryBreachMarker(ttl time.Duration) *MemoryBreachMarker {
	if ttl <= 0 {
		ttl = DefaultBreachMarkTTL
	}
	return &MemoryBreachMarker{ttl: ttl, now: time.Now, marks: make(map[string]time.Time)}
}

func (m *MemoryBreachMarker) Mark(_ context.Context, ticketID int64, dueAt time.Time) (bool, error) {
	key := breachKey(ticketID, dueAt)
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, expires := range m.marks {
		if !now.Before(expires) {
			delete(m.marks, k)
		}
	}
	if _, seen := m.marks[key]; seen {
		return false, nil
	}
	m.marks[key] = now.Add(m.ttl)
	return true, nil
}

func (m *MemoryBreachMarker) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.marks)
}
