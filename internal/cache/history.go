package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/partyroom/internal/models"
	"github.com/redis/go-redis/v9"
)

// History is the producer and consumer side of the action queue.
type History struct {
	rdb   *redis.Client
	queue string
}

func NewHistory(rdb *redis.Client, queue string) *History {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &History{rdb: rdb, queue: queue}
}

// RecordAction serializes the record and pushes it to the queue.
func (h *History) RecordAction(ctx context.Context, rec models.ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := h.rdb.RPush(ctx, h.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", h.queue, err)
	}
	return nil
}

// ErrMalformedRecord wraps a queue entry that is not an ActionRecord. The
// entry has already been removed from the queue.
var ErrMalformedRecord = errors.New("malformed action record")

// Pop blocks up to timeout for the next record. It returns (nil, nil) when
// the queue stayed empty.
func (h *History) Pop(ctx context.Context, timeout time.Duration) (*models.ActionRecord, error) {
	res, err := h.rdb.BLPop(ctx, timeout, h.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", h.queue, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	var rec models.ActionRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return &rec, nil
}
