package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"payment-gateway/internal/models"
)

const (
	// PaymentQueueKey is the Redis list backing the durable payment queue.
	PaymentQueueKey = "payments:queue"

	// PopTimeout bounds each BRPOP so a quiet queue still lets the
	// worker observe shutdown.
	PopTimeout = 2 * time.Second
)

// ErrStorageUnavailable marks a queue operation that failed at the
// transport layer, as opposed to an empty queue.
var ErrStorageUnavailable = errors.New("payment queue storage unavailable")

// PaymentQueue is a durable FIFO of pending payments backed by a Redis
// list. Push appends to the tail; Pop blocks on the head with a finite
// timeout. Delivery is at-least-once; the ledger's idempotency absorbs
// duplicates.
type PaymentQueue struct {
	client *Client
}

func NewPaymentQueue(client *Client) *PaymentQueue {
	return &PaymentQueue{client: client}
}

// Push appends a message to the tail of the queue.
func (q *PaymentQueue) Push(ctx context.Context, msg models.QueueMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	if err := q.client.rdb.LPush(ctx, PaymentQueueKey, data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Pop blocks on the head of the queue for up to PopTimeout. It returns
// (nil, nil) when the queue stayed empty for the whole window.
func (q *PaymentQueue) Pop(ctx context.Context) (*models.QueueMessage, error) {
	result, err := q.client.rdb.BRPop(ctx, PopTimeout, PaymentQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("%w: unexpected BRPOP result", ErrStorageUnavailable)
	}

	var msg models.QueueMessage
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue message: %w", err)
	}

	return &msg, nil
}

// Len returns the number of pending messages.
func (q *PaymentQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.rdb.LLen(ctx, PaymentQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return n, nil
}

// Purge drops every pending message. Used by the test-only purge endpoint.
func (q *PaymentQueue) Purge(ctx context.Context) error {
	if err := q.client.rdb.Del(ctx, PaymentQueueKey).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}
