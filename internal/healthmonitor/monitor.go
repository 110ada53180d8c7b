package healthmonitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"payment-gateway/internal/processors"
	"payment-gateway/internal/registry"
)

// ProbeInterval is the cadence of the health loop. The processors
// publish a 5-second rate limit on their health endpoint; probing
// faster is a contract violation.
const ProbeInterval = 5 * time.Second

// HealthMonitor is a single long-lived task that probes each
// processor's service-health endpoint and writes the outcome into the
// registry. It never terminates on error; failures are logged and the
// loop waits out the interval.
type HealthMonitor struct {
	client   *processors.Client
	registry *registry.Registry
	keys     []registry.ProcessorKey
	interval time.Duration
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(client *processors.Client, reg *registry.Registry, keys []registry.ProcessorKey) *HealthMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &HealthMonitor{
		client:   client,
		registry: reg,
		keys:     keys,
		interval: ProbeInterval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the monitoring goroutine.
func (hm *HealthMonitor) Start() {
	hm.wg.Add(1)
	go hm.monitor()
	log.Println("Health monitor started")
}

// Stop stops the monitoring goroutine and waits for it to exit.
func (hm *HealthMonitor) Stop() {
	hm.cancel()
	hm.wg.Wait()
	log.Println("Health monitor stopped")
}

func (hm *HealthMonitor) monitor() {
	defer hm.wg.Done()

	hm.probeAll()

	ticker := time.NewTicker(hm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hm.probeAll()
		case <-hm.ctx.Done():
			return
		}
	}
}

func (hm *HealthMonitor) probeAll() {
	for _, key := range hm.keys {
		hm.probe(key)
	}
}

// probe runs one health check and applies its outcome:
//   - 2xx with a parseable body updates health and min response time;
//   - 2xx with an unparseable body leaves the entry untouched;
//   - anything else marks the processor Failing with zero latency.
func (hm *HealthMonitor) probe(key registry.ProcessorKey) {
	ctx, cancel := context.WithTimeout(hm.ctx, hm.interval)
	defer cancel()

	health, err := hm.client.CheckHealth(ctx, key.URL)
	if err != nil {
		if errors.Is(err, processors.ErrBadHealthPayload) {
			log.Printf("Health probe for %s returned a bad payload, keeping last entry: %v", key.Name, err)
			return
		}

		log.Printf("Health probe for %s failed: %v", key.Name, err)
		hm.registry.Update(registry.ProcessorEntry{
			Key:             key,
			Health:          registry.Failing,
			MinResponseTime: 0,
		})
		return
	}

	status := registry.Healthy
	if health.Failing {
		status = registry.Failing
	}

	hm.registry.Update(registry.ProcessorEntry{
		Key:             key,
		Health:          status,
		MinResponseTime: health.MinResponseTime,
	})
}
