package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
)

var serializationFailure = &pgconn.PgError{Code: "40001", Message: "could not serialize access"}

func newTestRefresher(t *testing.T, stats *mockStatsRepository, cache *mockRankingCache, attempts int) (*StatsRefresher, *recordingPublisher, *RefreshMetrics) {
	t.Helper()
	metrics, err := NewRefreshMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	events := &recordingPublisher{}
	cfg := RefresherConfig{
		Interval:       10 * time.Millisecond,
		Window:         7 * 24 * time.Hour,
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
	var r *StatsRefresher
	if cache == nil {
		r = NewStatsRefresher(stats, nil, events, metrics, cfg, newTestLogger())
	} else {
		r = NewStatsRefresher(stats, cache, events, metrics, cfg, newTestLogger())
	}
	r.now = func() time.Time { return refreshAt }
	return r, events, metrics
}

func TestRefresh_Success(t *testing.T) {
	stats := &mockStatsRepository{}
	cache := &mockRankingCache{}
	stats.On("Refresh", mock.Anything, refreshAt, 7*24*time.Hour).
		Return(&domain.StatsRefresh{RefreshedAt: refreshAt, ChannelCount: 3}, nil).Once()
	cache.On("Invalidate", mock.Anything).Return(nil).Once()

	r, events, metrics := newTestRefresher(t, stats, cache, 3)
	ref, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ref.Attempts)
	assert.Equal(t, []string{"channel_stats.refreshed"}, events.Events())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("success")))
	assert.Equal(t, float64(refreshAt.Unix()), testutil.ToFloat64(metrics.lastSuccess))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.channels))

	stats.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestRefresh_RetriesTransientFailures(t *testing.T) {
	stats := &mockStatsRepository{}
	stats.On("Refresh", mock.Anything, refreshAt, mock.Anything).Return(nil, serializationFailure).Twice()
	stats.On("Refresh", mock.Anything, refreshAt, mock.Anything).
		Return(&domain.StatsRefresh{RefreshedAt: refreshAt}, nil).Once()

	r, _, _ := newTestRefresher(t, stats, nil, 3)
	ref, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ref.Attempts)
	stats.AssertNumberOfCalls(t, "Refresh", 3)
}

func TestRefresh_GivesUpAfterMaxAttempts(t *testing.T) {
	stats := &mockStatsRepository{}
	stats.On("Refresh", mock.Anything, refreshAt, mock.Anything).Return(nil, serializationFailure)

	r, events, metrics := newTestRefresher(t, stats, nil, 2)
	_, err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, serializationFailure)
	stats.AssertNumberOfCalls(t, "Refresh", 2)
	assert.Empty(t, events.Events())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("failure")))
}

func TestRefresh_PermanentFailureIsNotRetried(t *testing.T) {
	stats := &mockStatsRepository{}
	stats.On("Refresh", mock.Anything, refreshAt, mock.Anything).
		Return(nil, &pgconn.PgError{Code: "42P01", Message: "relation does not exist"})

	r, _, _ := newTestRefresher(t, stats, nil, 5)
	_, err := r.Refresh(context.Background())
	require.Error(t, err)
	stats.AssertNumberOfCalls(t, "Refresh", 1)
}

func TestRefresh_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	stats := &mockStatsRepository{}
	stats.On("Refresh", mock.Anything, refreshAt, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&domain.StatsRefresh{RefreshedAt: refreshAt}, nil).Once()

	r, _, metrics := newTestRefresher(t, stats, nil, 1)
	done := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background())
		done <- err
	}()
	require.Eventually(t, r.running.Load, time.Second, time.Millisecond)

	_, err := r.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("skipped")))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, r.running.Load())
}

func TestRefresh_CacheFailureDoesNotFail(t *testing.T) {
	stats := &mockStatsRepository{}
	cache := &mockRankingCache{}
	stats.On("Refresh", mock.Anything, refreshAt, mock.Anything).
		Return(&domain.StatsRefresh{RefreshedAt: refreshAt}, nil)
	cache.On("Invalidate", mock.Anything).Return(errors.New("redis down"))

	r, _, _ := newTestRefresher(t, stats, cache, 1)
	_, err := r.Refresh(context.Background())
	assert.NoError(t, err)
}

func TestRun_RefreshesOnScheduleAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	stats := &mockStatsRepository{}
	stats.On("Refresh", mock.Anything, refreshAt, mock.Anything).
		Run(func(mock.Arguments) { calls.Add(1) }).
		Return(&domain.StatsRefresh{RefreshedAt: refreshAt}, nil)

	r, _, _ := newTestRefresher(t, stats, nil, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
