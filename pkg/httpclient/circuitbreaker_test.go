package httpclient

import (
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCBConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      50 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func TestBreakerTransport_PassesThroughSuccess(t *testing.T) {
	srv, _ := countingServer(t, func(int32) int { return http.StatusOK })
	bt := NewBreakerTransport(nil, testCBConfig("cb-ok"), testLogger())

	resp, err := get(t, bt, srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gobreaker.StateClosed, bt.State())
}

func TestBreakerTransport_TripsOnServerErrorsButReturnsResponse(t *testing.T) {
	srv, calls := countingServer(t, func(int32) int { return http.StatusInternalServerError })
	bt := NewBreakerTransport(nil, testCBConfig("cb-trip"), testLogger())

	for i := 0; i < 3; i++ {
		resp, err := get(t, bt, srv.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateOpen, bt.State())

	_, err := get(t, bt, srv.URL)
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBreakerTransport_ClientErrorsDoNotTrip(t *testing.T) {
	srv, _ := countingServer(t, func(int32) int { return http.StatusNotFound })
	bt := NewBreakerTransport(nil, testCBConfig("cb-4xx"), testLogger())

	for i := 0; i < 5; i++ {
		resp, err := get(t, bt, srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, bt.State())
}

func TestBreakerTransport_RecoversAfterTimeout(t *testing.T) {
	var healthy atomic.Bool
	srv, _ := countingServer(t, func(int32) int {
		if healthy.Load() {
			return http.StatusOK
		}
		return http.StatusBadGateway
	})
	bt := NewBreakerTransport(nil, testCBConfig("cb-recover"), testLogger())

	for i := 0; i < 3; i++ {
		resp, err := get(t, bt, srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	require.Equal(t, gobreaker.StateOpen, bt.State())

	healthy.Store(true)
	require.Eventually(t, func() bool { return bt.State() == gobreaker.StateHalfOpen },
		time.Second, 10*time.Millisecond)

	resp, err := get(t, bt, srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gobreaker.StateClosed, bt.State())
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	assert.Error(t, RegisterMetrics(reg))
}
