package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) Config {
	return Config{
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		RetryWaitMin:    time.Millisecond,
		RetryWaitMax:    5 * time.Millisecond,
		MaxConnsPerHost: 4,
	}
}

func countingServer(t *testing.T, status func(n int32) int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		w.WriteHeader(status(n))
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func get(t *testing.T, rt http.RoundTripper, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	return rt.RoundTrip(req)
}

func TestRetryTransport_RetriesServerErrors(t *testing.T) {
	srv, calls := countingServer(t, func(n int32) int {
		if n < 3 {
			return http.StatusBadGateway
		}
		return http.StatusOK
	})

	resp, err := get(t, &RetryTransport{Config: fastConfig(3)}, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryTransport_ReturnsLastResponseWhenExhausted(t *testing.T) {
	srv, calls := countingServer(t, func(int32) int { return http.StatusServiceUnavailable })

	resp, err := get(t, &RetryTransport{Config: fastConfig(2)}, srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryTransport_DoesNotRetryClientErrorsOr501(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusNotImplemented} {
		srv, calls := countingServer(t, func(int32) int { return status })

		resp, err := get(t, &RetryTransport{Config: fastConfig(3)}, srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, status, resp.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	}
}

func TestRetryTransport_DoesNotRetryPost(t *testing.T) {
	srv, calls := countingServer(t, func(int32) int { return http.StatusInternalServerError })

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("{}"))
	require.NoError(t, err)
	resp, err := (&RetryTransport{Config: fastConfig(3)}).RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryTransport_ContextCanceled(t *testing.T) {
	srv, _ := countingServer(t, func(int32) int { return http.StatusBadGateway })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = (&RetryTransport{Config: fastConfig(3)}).RoundTrip(req)
	require.Error(t, err)
}

func TestNew_ComposesChain(t *testing.T) {
	srv, _ := countingServer(t, func(int32) int { return http.StatusOK })

	client := New(fastConfig(1), DefaultCircuitBreakerConfig("test-chain"), testLogger())
	_, ok := client.Transport.(*BreakerTransport)
	assert.True(t, ok)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
