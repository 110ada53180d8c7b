package workers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"payment-gateway/internal/models"
	"payment-gateway/internal/redis"
)

// BridgeCapacity bounds the in-memory channel between the accept
// handler and the queue writer. When it fills, accepts fail fast
// instead of making clients wait on storage.
const BridgeCapacity = 100_000

var (
	// ErrBridgeFull is returned when the bridge has no room; the
	// ingress turns it into a 5xx.
	ErrBridgeFull = errors.New("ingress bridge is full")

	// ErrBridgeClosed is returned once shutdown has begun.
	ErrBridgeClosed = errors.New("ingress bridge is closed")
)

// Forwarder decouples accept latency from queue latency: the HTTP
// handler drops each accepted payment onto a bounded channel and a
// single goroutine drains it onto the durable queue, coalescing all
// queue writes into one writer.
type Forwarder struct {
	ch    chan models.Payment
	queue *redis.PaymentQueue

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewForwarder(queue *redis.PaymentQueue) *Forwarder {
	return &Forwarder{
		ch:    make(chan models.Payment, BridgeCapacity),
		queue: queue,
	}
}

// Start launches the forwarding goroutine.
func (f *Forwarder) Start() {
	f.wg.Add(1)
	go f.run()
	log.Println("Ingress forwarder started")
}

// Close rejects new payments, drains what is already buffered onto the
// queue, and waits for the forwarding goroutine to exit.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.ch)
	f.mu.Unlock()

	f.wg.Wait()
	log.Println("Ingress forwarder stopped")
}

// Enqueue hands a payment to the forwarder without blocking. It fails
// when the bridge is full or shutdown has begun.
func (f *Forwarder) Enqueue(payment models.Payment) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return ErrBridgeClosed
	}

	select {
	case f.ch <- payment:
		return nil
	default:
		return ErrBridgeFull
	}
}

func (f *Forwarder) run() {
	defer f.wg.Done()

	for payment := range f.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := f.queue.Push(ctx, models.NewQueueMessage(payment))
		cancel()
		if err != nil {
			log.Printf("Failed to push payment %s to queue: %v", payment.CorrelationID, err)
		}
	}
}
