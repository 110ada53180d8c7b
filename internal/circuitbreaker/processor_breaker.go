package circuitbreaker

import (
	"time"

	"payment-gateway/internal/models"
)

// Fixed per-processor policies. The default processor trips fast and
// recovers fast so traffic promotes to the fallback quickly under a
// real outage; the fallback is far less tolerant of failures and stays
// open longer, since there is nothing left to promote to.
var (
	defaultConfig = Config{
		FailureRateThreshold: 0.5,
		MinThroughput:        5,
		ProbeInterval:        10,
		Cooldown:             3 * time.Second,
	}

	fallbackConfig = Config{
		FailureRateThreshold: 0.1,
		MinThroughput:        5,
		ProbeInterval:        10,
		Cooldown:             10 * time.Second,
	}
)

// ProcessorBreakers holds the circuit breaker for each payment
// processor. Both breakers are shared by all workers.
type ProcessorBreakers struct {
	defaultBreaker  *CircuitBreaker
	fallbackBreaker *CircuitBreaker
}

// NewProcessorBreakers creates breakers for both processors with their
// fixed policies.
func NewProcessorBreakers() *ProcessorBreakers {
	return &ProcessorBreakers{
		defaultBreaker:  New("default-processor", defaultConfig),
		fallbackBreaker: New("fallback-processor", fallbackConfig),
	}
}

// ForProcessor returns the breaker guarding the named processor.
func (pb *ProcessorBreakers) ForProcessor(name models.ProcessorName) *CircuitBreaker {
	if name == models.ProcessorFallback {
		return pb.fallbackBreaker
	}
	return pb.defaultBreaker
}

// Default returns the default processor's breaker.
func (pb *ProcessorBreakers) Default() *CircuitBreaker {
	return pb.defaultBreaker
}

// Fallback returns the fallback processor's breaker.
func (pb *ProcessorBreakers) Fallback() *CircuitBreaker {
	return pb.fallbackBreaker
}
