package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-gateway/internal/models"
)

func testRegistry() *Registry {
	return New(
		ProcessorKey{Name: models.ProcessorDefault, URL: "http://default"},
		ProcessorKey{Name: models.ProcessorFallback, URL: "http://fallback"},
	)
}

func TestBothEntriesExistFromStartup(t *testing.T) {
	reg := testRegistry()

	entry, ok := reg.Get(models.ProcessorDefault)
	require.True(t, ok)
	assert.Equal(t, "http://default", entry.Key.URL)
	assert.Equal(t, Failing, entry.Health)

	entry, ok = reg.Get(models.ProcessorFallback)
	require.True(t, ok)
	assert.Equal(t, "http://fallback", entry.Key.URL)
	assert.Equal(t, Failing, entry.Health)
}

func TestUpdateReplacesWholeEntry(t *testing.T) {
	reg := testRegistry()

	reg.Update(ProcessorEntry{
		Key:             ProcessorKey{Name: models.ProcessorDefault, URL: "http://default"},
		Health:          Healthy,
		MinResponseTime: 42,
	})

	entry, ok := reg.Get(models.ProcessorDefault)
	require.True(t, ok)
	assert.Equal(t, Healthy, entry.Health)
	assert.EqualValues(t, 42, entry.MinResponseTime)
}

func TestUnknownProcessor(t *testing.T) {
	reg := testRegistry()

	_, ok := reg.Get("other")
	assert.False(t, ok)
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	reg := testRegistry()
	key := ProcessorKey{Name: models.ProcessorDefault, URL: "http://default"}

	stop := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			health := Healthy
			if i%2 == 1 {
				health = Failing
			}
			reg.Update(ProcessorEntry{Key: key, Health: health, MinResponseTime: int64(i)})
		}
	}()

	var readers sync.WaitGroup
	for r := 0; r < 8; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 1000; i++ {
				entry, ok := reg.Get(models.ProcessorDefault)
				assert.True(t, ok)
				// The key is immutable; a torn entry would lose it.
				assert.Equal(t, key, entry.Key)
			}
		}()
	}

	readers.Wait()
	close(stop)
	<-writerDone
}
