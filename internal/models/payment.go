package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessorName identifies which external processor handled a payment.
type ProcessorName string

const (
	ProcessorDefault  ProcessorName = "default"
	ProcessorFallback ProcessorName = "fallback"
)

// Payment is the unit of work flowing from ingress to the ledger.
// RequestedAt is stamped immediately before each dispatch attempt,
// ProcessedAt and ProcessedBy only when a processor accepted it.
type Payment struct {
	CorrelationID uuid.UUID  `json:"correlationId"`
	Amount        float64    `json:"amount"`
	RequestedAt   *time.Time `json:"requestedAt,omitempty"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
	ProcessedBy   string     `json:"processedBy,omitempty"`
}

// QueueMessage wraps a payment for the durable queue. ID equals the
// payment's correlation id so re-queueing stays idempotent at the
// message layer.
type QueueMessage struct {
	ID      uuid.UUID `json:"id"`
	Payment Payment   `json:"payment"`
}

func NewQueueMessage(payment Payment) QueueMessage {
	return QueueMessage{
		ID:      payment.CorrelationID,
		Payment: payment,
	}
}

type PaymentRequest struct {
	CorrelationID uuid.UUID `json:"correlationId"`
	Amount        float64   `json:"amount"`
}

type PaymentResponse struct {
	Payment PaymentRequest `json:"payment"`
	Status  string         `json:"status"`
}

type ProcessorSummary struct {
	TotalRequests int64   `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

type PaymentSummaryResponse struct {
	Default  ProcessorSummary `json:"default"`
	Fallback ProcessorSummary `json:"fallback"`
}
