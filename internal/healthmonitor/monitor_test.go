package healthmonitor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-gateway/internal/models"
	"payment-gateway/internal/processors"
	"payment-gateway/internal/registry"
)

func newMonitor(defaultURL string) (*HealthMonitor, *registry.Registry, registry.ProcessorKey) {
	key := registry.ProcessorKey{Name: models.ProcessorDefault, URL: defaultURL}
	fallback := registry.ProcessorKey{Name: models.ProcessorFallback, URL: "http://unused"}
	reg := registry.New(key, fallback)
	hm := New(processors.NewClient(), reg, []registry.ProcessorKey{key})
	return hm, reg, key
}

func healthEndpoint(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/payments/service-health", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestProbeHealthy(t *testing.T) {
	srv := healthEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"failing": false, "minResponseTime": 37}`))
	})

	hm, reg, key := newMonitor(srv.URL)
	hm.probe(key)

	entry, ok := reg.Get(models.ProcessorDefault)
	require.True(t, ok)
	assert.Equal(t, registry.Healthy, entry.Health)
	assert.EqualValues(t, 37, entry.MinResponseTime)
}

func TestProbeSelfReportedFailing(t *testing.T) {
	srv := healthEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"failing": true, "minResponseTime": 12}`))
	})

	hm, reg, key := newMonitor(srv.URL)
	hm.probe(key)

	entry, ok := reg.Get(models.ProcessorDefault)
	require.True(t, ok)
	assert.Equal(t, registry.Failing, entry.Health)
	assert.EqualValues(t, 12, entry.MinResponseTime)
}

func TestProbeNon2xxMarksFailing(t *testing.T) {
	srv := healthEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	hm, reg, key := newMonitor(srv.URL)

	// Seed a healthy entry so the overwrite is observable.
	reg.Update(registry.ProcessorEntry{Key: key, Health: registry.Healthy, MinResponseTime: 20})

	hm.probe(key)

	entry, ok := reg.Get(models.ProcessorDefault)
	require.True(t, ok)
	assert.Equal(t, registry.Failing, entry.Health)
	assert.EqualValues(t, 0, entry.MinResponseTime)
}

func TestProbeTransportErrorMarksFailing(t *testing.T) {
	srv := healthEndpoint(t, func(w http.ResponseWriter, r *http.Request) {})
	url := srv.URL
	srv.Close()

	hm, reg, key := newMonitor(url)
	reg.Update(registry.ProcessorEntry{Key: key, Health: registry.Healthy, MinResponseTime: 20})

	hm.probe(key)

	entry, ok := reg.Get(models.ProcessorDefault)
	require.True(t, ok)
	assert.Equal(t, registry.Failing, entry.Health)
	assert.EqualValues(t, 0, entry.MinResponseTime)
}

func TestProbeBadPayloadLeavesEntryUnchanged(t *testing.T) {
	srv := healthEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	hm, reg, key := newMonitor(srv.URL)
	reg.Update(registry.ProcessorEntry{Key: key, Health: registry.Healthy, MinResponseTime: 20})

	hm.probe(key)

	entry, ok := reg.Get(models.ProcessorDefault)
	require.True(t, ok)
	assert.Equal(t, registry.Healthy, entry.Health)
	assert.EqualValues(t, 20, entry.MinResponseTime)
}

func TestStartStop(t *testing.T) {
	srv := healthEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"failing": false, "minResponseTime": 5}`))
	})

	hm, reg, _ := newMonitor(srv.URL)
	hm.Start()
	defer hm.Stop()

	// The monitor probes immediately on start.
	assert.Eventually(t, func() bool {
		entry, ok := reg.Get(models.ProcessorDefault)
		return ok && entry.Health == registry.Healthy
	}, time.Second, 10*time.Millisecond)
}
