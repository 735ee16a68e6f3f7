package meter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg ClientConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	client, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestGetSnapshot_Success(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"serialNumber":"TEST1234","readingTime":"2024-10-26T21:40:28.1234567","lastIndex":100,"voltageValue":220,"currentValue":10}`))
	}, ClientConfig{})

	snapshot, err := client.GetSnapshot(context.Background(), "TEST1234")
	require.NoError(t, err)

	assert.Equal(t, "/meter/TEST1234", gotPath)
	assert.Equal(t, "TEST1234", snapshot.SerialNumber)
	assert.Equal(t, 100.0, snapshot.LastIndex)
	assert.Equal(t, 220.0, snapshot.VoltageValue)
	assert.Equal(t, 10.0, snapshot.CurrentValue)
	assert.True(t, snapshot.ReadingTime.Equal(time.Date(2024, 10, 26, 21, 40, 28, 123456700, time.UTC)))
}

func TestGetSnapshot_BaseURLWithPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"serialNumber":"ABC"}`))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL + "/api/", Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GetSnapshot(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, "/api/meter/ABC", gotPath)
}

func TestGetSnapshot_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, ClientConfig{})

	_, err := client.GetSnapshot(context.Background(), "MISSING1")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "Not Found")
}

func TestGetSnapshot_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, ClientConfig{})

	_, err := client.GetSnapshot(context.Background(), "TEST1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestGetSnapshot_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"serialNumber":`))
	}, ClientConfig{})

	_, err := client.GetSnapshot(context.Background(), "TEST1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestGetSnapshot_Timeout(t *testing.T) {
	done := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}, ClientConfig{Timeout: 50 * time.Millisecond})
	defer close(done)

	_, err := client.GetSnapshot(context.Background(), "TEST1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestGetSnapshot_RateLimitCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"serialNumber":"TEST1234"}`))
	}, ClientConfig{RateLimit: 0.001, Burst: 1})

	_, err := client.GetSnapshot(context.Background(), "TEST1234")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.GetSnapshot(ctx, "TEST1234")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "localhost"}, zap.NewNop())
	assert.Error(t, err)
}
