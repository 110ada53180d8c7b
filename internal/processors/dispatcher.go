package processors

import (
	"context"
	"log"
	"time"

	"payment-gateway/internal/circuitbreaker"
	"payment-gateway/internal/models"
	"payment-gateway/internal/redis"
	"payment-gateway/internal/registry"
)

// Dispatcher performs the actual payment dispatch: it stamps the
// payment, calls the chosen processor through its breaker, and persists
// the result to the ledger on success.
type Dispatcher struct {
	client *Client
	ledger *redis.Ledger
}

func NewDispatcher(client *Client, ledger *redis.Ledger) *Dispatcher {
	return &Dispatcher{
		client: client,
		ledger: ledger,
	}
}

// Process dispatches one payment to the chosen processor under its
// breaker. It returns (true, nil) when the processor accepted and the
// ledger recorded the payment, (false, nil) when the processor rejected
// it with a 4xx (terminal; the message must not be retried), and an
// error when the breaker refused the call, the dispatch failed, or the
// ledger write failed after a successful dispatch.
func (d *Dispatcher) Process(ctx context.Context, payment models.Payment, key registry.ProcessorKey, breaker *circuitbreaker.CircuitBreaker) (bool, error) {
	requestedAt := time.Now().UTC()
	payment.RequestedAt = &requestedAt

	result, err := breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return d.client.Dispatch(ctx, key.URL, payment.CorrelationID, payment.Amount, requestedAt)
	})
	if err != nil {
		return false, err
	}

	accepted, _ := result.(bool)
	if !accepted {
		log.Printf("Payment %s rejected by %s processor", payment.CorrelationID, key.Name)
		return false, nil
	}

	processedAt := time.Now().UTC()
	payment.ProcessedAt = &processedAt
	payment.ProcessedBy = string(key.Name)

	if err := d.ledger.Save(ctx, payment); err != nil {
		// The processor accepted but the ledger write failed; the
		// message will be retried and the ledger's idempotent save
		// keeps the summary from double-counting.
		return false, err
	}

	return true, nil
}
