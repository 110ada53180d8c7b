package registry

import (
	"sync"

	"payment-gateway/internal/models"
)

// HealthStatus is a processor's self-reported liveness as of the last
// successful probe.
type HealthStatus int

const (
	Healthy HealthStatus = iota
	Failing
)

func (h HealthStatus) String() string {
	if h == Healthy {
		return "healthy"
	}
	return "failing"
}

// ProcessorKey is a processor's immutable identity, fixed at startup
// and shared by reference for the life of the process.
type ProcessorKey struct {
	Name models.ProcessorName
	URL  string
}

// ProcessorEntry is the mutable view of a processor: identity plus the
// health and minimum response time from its latest probe.
type ProcessorEntry struct {
	Key             ProcessorKey
	Health          HealthStatus
	MinResponseTime int64
}

// Registry holds the current entry for each processor. Workers read
// concurrently while the health monitor replaces entries; each read or
// write holds the guard only long enough to copy a whole entry, so
// readers never observe a torn one.
type Registry struct {
	mu      sync.RWMutex
	entries map[models.ProcessorName]ProcessorEntry
}

// New creates a registry with both processors present and marked
// Failing until the first probe lands.
func New(defaultKey, fallbackKey ProcessorKey) *Registry {
	return &Registry{
		entries: map[models.ProcessorName]ProcessorEntry{
			defaultKey.Name:  {Key: defaultKey, Health: Failing},
			fallbackKey.Name: {Key: fallbackKey, Health: Failing},
		},
	}
}

// Get returns a snapshot of a processor's entry.
func (r *Registry) Get(name models.ProcessorName) (ProcessorEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	return entry, ok
}

// Update replaces a processor's entry atomically.
func (r *Registry) Update(entry ProcessorEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.Key.Name] = entry
}
