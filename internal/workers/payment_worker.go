package workers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"payment-gateway/internal/circuitbreaker"
	"payment-gateway/internal/models"
	"payment-gateway/internal/processors"
	"payment-gateway/internal/redis"
	"payment-gateway/internal/router"
)

const (
	// emptyQueueBackoff is how long a worker sleeps after an empty pop
	// or a queue error before popping again.
	emptyQueueBackoff = 1 * time.Second

	// requeueBackoff keeps a worker from immediately re-popping the
	// message it just pushed back.
	requeueBackoff = 250 * time.Millisecond
)

// PaymentWorkerPool runs N workers over the cycle: pop, dedup-check,
// route, dispatch, requeue on failure. Workers log and swallow every
// error; they exit only when the pool stops.
type PaymentWorkerPool struct {
	queue      *redis.PaymentQueue
	ledger     *redis.Ledger
	dispatcher *processors.Dispatcher
	router     *router.Router
	workers    int
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewPaymentWorkerPool(workers int, queue *redis.PaymentQueue, ledger *redis.Ledger, dispatcher *processors.Dispatcher, rt *router.Router) *PaymentWorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &PaymentWorkerPool{
		queue:      queue,
		ledger:     ledger,
		dispatcher: dispatcher,
		router:     rt,
		workers:    workers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the workers.
func (wp *PaymentWorkerPool) Start() {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	log.Printf("Started %d payment workers", wp.workers)
}

// Stop cancels the workers and waits for each to finish its current
// message. Nothing in flight is lost: an unfinished message either
// stays on the durable queue or is requeued by its worker.
func (wp *PaymentWorkerPool) Stop() {
	wp.cancel()
	wp.wg.Wait()
	log.Println("Payment worker pool stopped")
}

func (wp *PaymentWorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	log.Printf("Payment worker %d started", workerID)

	for {
		if wp.ctx.Err() != nil {
			log.Printf("Payment worker %d stopped", workerID)
			return
		}

		msg, err := wp.queue.Pop(wp.ctx)
		if err != nil {
			if wp.ctx.Err() != nil {
				log.Printf("Payment worker %d stopped", workerID)
				return
			}
			log.Printf("Worker %d failed to pop from queue: %v", workerID, err)
			time.Sleep(emptyQueueBackoff)
			continue
		}
		if msg == nil {
			continue
		}

		wp.handle(*msg, workerID)
	}
}

// handle runs the dedup check and the attempt loop for one message.
func (wp *PaymentWorkerPool) handle(msg models.QueueMessage, workerID int) {
	correlationID := msg.Payment.CorrelationID.String()

	processed, err := wp.ledger.IsProcessed(wp.ctx, correlationID)
	if err != nil {
		// Process anyway: the idempotent ledger save still blocks a
		// double count if this turns out to be a duplicate.
		log.Printf("Worker %d dedup check failed for %s: %v", workerID, correlationID, err)
	}
	if processed {
		log.Printf("Worker %d skipping already processed payment %s", workerID, correlationID)
		return
	}

	done := false

	for !done {
		key, breaker, ok := wp.router.Choose()
		if !ok {
			break
		}
		if breaker.State() == circuitbreaker.StateOpen {
			break
		}

		_, err := wp.dispatcher.Process(wp.ctx, msg.Payment, key, breaker)
		if err == nil {
			// Accepted and persisted, or rejected with a 4xx; both are
			// terminal for this message.
			done = true
			break
		}

		if errors.Is(err, circuitbreaker.ErrOpenState) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			break
		}
		if errors.Is(err, redis.ErrLedgerUnavailable) {
			// The dispatch went through but the write did not; requeue
			// and let the next attempt re-stamp and re-save.
			log.Printf("Worker %d ledger write failed for %s: %v", workerID, correlationID, err)
			break
		}

		log.Printf("Worker %d dispatch to %s failed for %s: %v", workerID, key.Name, correlationID, err)
	}

	if !done {
		// Requeue with a fresh context so a message in flight during
		// shutdown still makes it back onto the durable queue.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := wp.queue.Push(ctx, msg); err != nil {
			log.Printf("Worker %d failed to requeue payment %s: %v", workerID, correlationID, err)
		}
		cancel()
		time.Sleep(requeueBackoff)
	}
}
