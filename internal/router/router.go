package router

import (
	"payment-gateway/internal/circuitbreaker"
	"payment-gateway/internal/models"
	"payment-gateway/internal/registry"
)

// maxResponseTimeMs is the latency ceiling above which a processor is
// not worth dispatching to, even when healthy.
const maxResponseTimeMs = 100

// Router picks a processor for the next dispatch attempt from the
// current registry snapshot and breaker states. It holds no state of
// its own; every decision is a pure function of its collaborators.
type Router struct {
	registry *registry.Registry
	breakers *circuitbreaker.ProcessorBreakers
}

func New(reg *registry.Registry, breakers *circuitbreaker.ProcessorBreakers) *Router {
	return &Router{
		registry: reg,
		breakers: breakers,
	}
}

// Choose returns the processor to dispatch to and its breaker, or
// ok=false when no processor should receive traffic right now.
//
// The fallback is considered only while the default's breaker is fully
// open. A default that is merely slow or self-reporting failure, with a
// breaker still closed, yields no processor at all: the worker stalls
// and requeues, keeping traffic on the cheaper default once it
// recovers.
func (r *Router) Choose() (registry.ProcessorKey, *circuitbreaker.CircuitBreaker, bool) {
	defaultState := r.breakers.Default().State()

	if entry, ok := r.registry.Get(models.ProcessorDefault); ok &&
		entry.Health == registry.Healthy &&
		entry.MinResponseTime < maxResponseTimeMs &&
		defaultState != circuitbreaker.StateOpen {
		return entry.Key, r.breakers.Default(), true
	}

	if defaultState == circuitbreaker.StateOpen {
		if entry, ok := r.registry.Get(models.ProcessorFallback); ok &&
			entry.Health == registry.Healthy &&
			entry.MinResponseTime < maxResponseTimeMs &&
			r.breakers.Fallback().State() != circuitbreaker.StateOpen {
			return entry.Key, r.breakers.Fallback(), true
		}
	}

	return registry.ProcessorKey{}, nil, false
}
