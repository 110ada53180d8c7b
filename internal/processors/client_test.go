package processors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchAccepted(t *testing.T) {
	var got dispatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	id := uuid.New()
	requestedAt := time.Now().UTC()

	accepted, err := NewClient().Dispatch(context.Background(), srv.URL, id, 250.00, requestedAt)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, id, got.CorrelationID)
	assert.Equal(t, 250.00, got.Amount)
}

func TestDispatchClientReject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	accepted, err := NewClient().Dispatch(context.Background(), srv.URL, uuid.New(), 1.00, time.Now())
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestDispatchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient().Dispatch(context.Background(), srv.URL, uuid.New(), 1.00, time.Now())
	assert.ErrorIs(t, err, ErrServerError)
}

func TestDispatchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient().Dispatch(context.Background(), url, uuid.New(), 1.00, time.Now())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrServerError)
}

func TestDispatchTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewClient().Dispatch(context.Background(), srv.URL, uuid.New(), 1.00, time.Now())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/payments/service-health", r.URL.Path)
		w.Write([]byte(`{"failing": false, "minResponseTime": 42}`))
	}))
	defer srv.Close()

	health, err := NewClient().CheckHealth(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, health.Failing)
	assert.EqualValues(t, 42, health.MinResponseTime)
}

func TestCheckHealthBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`garbage`))
	}))
	defer srv.Close()

	_, err := NewClient().CheckHealth(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrBadHealthPayload)
}

func TestCheckHealthNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient().CheckHealth(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadHealthPayload)
}
