package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"payment-gateway/internal/models"
)

const (
	defaultLedgerKey  = "ledger:default"
	fallbackLedgerKey = "ledger:fallback"

	defaultHistoryKey  = "ledger:default:history"
	fallbackHistoryKey = "ledger:fallback:history"
)

// ErrLedgerUnavailable marks a ledger operation that failed at the
// transport layer.
var ErrLedgerUnavailable = errors.New("ledger storage unavailable")

// saveScript persists a payment exactly once across both processor
// groups. The HEXISTS guard is what makes at-least-once queue delivery
// safe: a re-delivered message finds the entry and becomes a no-op.
//
// KEYS[1] = default hash, KEYS[2] = fallback hash,
// KEYS[3] = target group hash, KEYS[4] = target group history zset
// ARGV[1] = correlation id, ARGV[2] = payment JSON, ARGV[3] = processed_at score
var saveScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 or redis.call('HEXISTS', KEYS[2], ARGV[1]) == 1 then
	return 'duplicate'
end
redis.call('HSET', KEYS[3], ARGV[1], ARGV[2])
redis.call('ZADD', KEYS[4], ARGV[3], ARGV[1])
return 'saved'
`)

// Ledger records successfully processed payments, partitioned by the
// processor that handled them. Each group keeps a hash indexed by
// correlation id plus a time-ordered set keyed by processed_at for
// range-summary queries.
type Ledger struct {
	client *Client
}

func NewLedger(client *Client) *Ledger {
	return &Ledger{client: client}
}

func groupKeys(group models.ProcessorName) (hash, history string, err error) {
	switch group {
	case models.ProcessorDefault:
		return defaultLedgerKey, defaultHistoryKey, nil
	case models.ProcessorFallback:
		return fallbackLedgerKey, fallbackHistoryKey, nil
	default:
		return "", "", fmt.Errorf("unknown processor group %q", group)
	}
}

// Save persists a processed payment under its group. Saving the same
// correlation id twice, in either group, never double-counts.
func (l *Ledger) Save(ctx context.Context, payment models.Payment) error {
	if payment.ProcessedAt == nil || payment.ProcessedBy == "" {
		return fmt.Errorf("payment %s is not processed", payment.CorrelationID)
	}

	hash, history, err := groupKeys(models.ProcessorName(payment.ProcessedBy))
	if err != nil {
		return err
	}

	data, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}

	err = saveScript.Run(ctx, l.client.rdb,
		[]string{defaultLedgerKey, fallbackLedgerKey, hash, history},
		payment.CorrelationID.String(),
		string(data),
		payment.ProcessedAt.UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

// IsProcessed reports whether a correlation id already has a ledger
// entry in either group. This is the dedup check the workers run before
// dispatching a dequeued message.
func (l *Ledger) IsProcessed(ctx context.Context, correlationID string) (bool, error) {
	pipe := l.client.rdb.Pipeline()
	inDefault := pipe.HExists(ctx, defaultLedgerKey, correlationID)
	inFallback := pipe.HExists(ctx, fallbackLedgerKey, correlationID)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	return inDefault.Val() || inFallback.Val(), nil
}

// Summary returns the count and total amount of payments in a group
// whose processed_at falls in [from, to]. The total is rounded to two
// decimal places, half away from zero.
func (l *Ledger) Summary(ctx context.Context, group models.ProcessorName, from, to int64) (models.ProcessorSummary, error) {
	hash, history, err := groupKeys(group)
	if err != nil {
		return models.ProcessorSummary{}, err
	}

	ids, err := l.client.rdb.ZRangeByScore(ctx, history, &redis.ZRangeBy{
		Min: strconv.FormatInt(from, 10),
		Max: strconv.FormatInt(to, 10),
	}).Result()
	if err != nil {
		return models.ProcessorSummary{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	if len(ids) == 0 {
		return models.ProcessorSummary{}, nil
	}

	values, err := l.client.rdb.HMGet(ctx, hash, ids...).Result()
	if err != nil {
		return models.ProcessorSummary{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}

	var count int64
	total := decimal.Zero
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var payment models.Payment
		if err := json.Unmarshal([]byte(raw), &payment); err != nil {
			return models.ProcessorSummary{}, fmt.Errorf("corrupt ledger entry: %w", err)
		}
		count++
		total = total.Add(decimal.NewFromFloat(payment.Amount))
	}

	return models.ProcessorSummary{
		TotalRequests: count,
		TotalAmount:   total.Round(2).InexactFloat64(),
	}, nil
}

// Purge clears every ledger entry in both groups.
func (l *Ledger) Purge(ctx context.Context) error {
	err := l.client.rdb.Del(ctx,
		defaultLedgerKey, fallbackLedgerKey,
		defaultHistoryKey, fallbackHistoryKey,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}
