package server

import (
	"fmt"
	"net/http"
	"time"

	"payment-gateway/internal/circuitbreaker"
	"payment-gateway/internal/config"
	"payment-gateway/internal/healthmonitor"
	"payment-gateway/internal/models"
	"payment-gateway/internal/processors"
	"payment-gateway/internal/redis"
	"payment-gateway/internal/registry"
	"payment-gateway/internal/router"
	"payment-gateway/internal/workers"
)

// Server owns every long-lived component and knows how to shut them
// down in the right order.
type Server struct {
	cfg           *config.Config
	redisClient   *redis.Client
	queue         *redis.PaymentQueue
	ledger        *redis.Ledger
	forwarder     *workers.Forwarder
	workerPool    *workers.PaymentWorkerPool
	healthMonitor *healthmonitor.HealthMonitor
}

// New wires the full dispatch pipeline and returns the HTTP server
// alongside the component owner. Background tasks are already running
// when it returns.
func New(cfg *config.Config) (*http.Server, *Server, error) {
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	queue := redis.NewPaymentQueue(redisClient)
	ledger := redis.NewLedger(redisClient)

	defaultKey := registry.ProcessorKey{Name: models.ProcessorDefault, URL: cfg.DefaultPaymentProcessorURL}
	fallbackKey := registry.ProcessorKey{Name: models.ProcessorFallback, URL: cfg.FallbackPaymentProcessorURL}

	reg := registry.New(defaultKey, fallbackKey)
	breakers := circuitbreaker.NewProcessorBreakers()
	rt := router.New(reg, breakers)

	processorClient := processors.NewClient()
	dispatcher := processors.NewDispatcher(processorClient, ledger)

	healthMonitor := healthmonitor.New(processorClient, reg, []registry.ProcessorKey{defaultKey, fallbackKey})
	healthMonitor.Start()

	forwarder := workers.NewForwarder(queue)
	forwarder.Start()

	workerPool := workers.NewPaymentWorkerPool(cfg.WorkerCount, queue, ledger, dispatcher, rt)
	workerPool.Start()

	appServer := &Server{
		cfg:           cfg,
		redisClient:   redisClient,
		queue:         queue,
		ledger:        ledger,
		forwarder:     forwarder,
		workerPool:    workerPool,
		healthMonitor: healthMonitor,
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  cfg.ServerKeepalive,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return httpServer, appServer, nil
}

// Shutdown stops everything: the bridge first so new requests fail
// fast, then the workers once their current message is done, then the
// monitor and the Redis pool. In-flight messages survive on the
// durable queue.
func (s *Server) Shutdown() {
	if s.forwarder != nil {
		s.forwarder.Close()
	}
	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if s.healthMonitor != nil {
		s.healthMonitor.Stop()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
}
