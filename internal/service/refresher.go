package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shinshin4n4n/tube-review-sub001/internal/domain"
	"github.com/shinshin4n4n/tube-review-sub001/internal/repository"
	"github.com/shinshin4n4n/tube-review-sub001/pkg/database"
)

// ErrRefreshInProgress is returned when a refresh is already running in
// this process.
var ErrRefreshInProgress = errors.New("stats refresh already in progress")

// RefresherConfig controls the stats refresh schedule and retry policy.
type RefresherConfig struct {
	Interval time.Duration
	// Window is how far back a review counts as recent.
	Window time.Duration
	// MaxAttempts bounds tries per refresh, the first one included.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// RefreshMetrics records refresh outcomes.
type RefreshMetrics struct {
	runs        *prometheus.CounterVec
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
	channels    prometheus.Gauge
}

// NewRefreshMetrics creates and registers refresh metrics on reg.
func NewRefreshMetrics(reg prometheus.Registerer) (*RefreshMetrics, error) {
	m := &RefreshMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_stats_refresh_runs_total",
			Help: "Channel stats refresh runs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "channel_stats_refresh_duration_seconds",
			Help:    "Wall time of channel stats refreshes, retries included.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "channel_stats_refresh_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh.",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "channel_stats_channels",
			Help: "Channels in the current stats table.",
		}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.duration, m.lastSuccess, m.channels} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *RefreshMetrics) observe(outcome string, elapsed time.Duration, ref *domain.StatsRefresh) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	if outcome == "skipped" {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	if ref != nil {
		m.lastSuccess.Set(float64(ref.RefreshedAt.Unix()))
		m.channels.Set(float64(ref.ChannelCount))
	}
}

// StatsRefresher recomputes the channel stats table from scratch on a
// schedule. The store swaps the table atomically, so readers see either
// the previous or the new stats and a failed run changes nothing.
type StatsRefresher struct {
	stats    repository.ChannelStatsRepository
	cache    repository.RankingCache
	producer EventPublisher
	metrics  *RefreshMetrics
	cfg      RefresherConfig
	logger   *slog.Logger
	running  atomic.Bool
	now      func() time.Time
}

// NewStatsRefresher creates a refresher. cache and metrics may be nil.
func NewStatsRefresher(
	stats repository.ChannelStatsRepository,
	cache repository.RankingCache,
	producer EventPublisher,
	metrics *RefreshMetrics,
	cfg RefresherConfig,
	logger *slog.Logger,
) *StatsRefresher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	return &StatsRefresher{
		stats:    stats,
		cache:    cache,
		producer: producer,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Refresh runs one full recompute, retrying transient store failures with
// exponential backoff up to MaxAttempts tries.
func (r *StatsRefresher) Refresh(ctx context.Context) (*domain.StatsRefresh, error) {
	if !r.running.CompareAndSwap(false, true) {
		r.metrics.observe("skipped", 0, nil)
		return nil, ErrRefreshInProgress
	}
	defer r.running.Store(false)

	start := time.Now()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff

	attempts := 0
	ref, err := backoff.Retry(ctx, func() (*domain.StatsRefresh, error) {
		attempts++
		ref, err := r.stats.Refresh(ctx, r.now(), r.cfg.Window)
		if err == nil {
			return ref, nil
		}
		if database.IsTransient(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			r.logger.WarnContext(ctx, "stats refresh attempt failed, retrying",
				slog.Int("attempt", attempts),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}),
	)
	elapsed := time.Since(start)
	if err != nil {
		r.metrics.observe("failure", elapsed, nil)
		r.logger.ErrorContext(ctx, "stats refresh failed",
			slog.Int("attempts", attempts),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("refresh channel stats: %w", err)
	}
	ref.Attempts = attempts
	r.metrics.observe("success", elapsed, ref)

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.WarnContext(ctx, "ranking cache invalidation failed", slog.String("error", err.Error()))
		}
	}

	r.logger.InfoContext(ctx, "channel stats refreshed",
		slog.Int("channels", ref.ChannelCount),
		slog.Int("attempts", attempts),
		slog.Duration("duration", elapsed),
	)
	if err := r.producer.PublishStatsRefreshed(ctx, ref); err != nil {
		r.logger.ErrorContext(ctx, "failed to publish channel_stats.refreshed event",
			slog.String("error", err.Error()),
		)
	}
	return ref, nil
}

// Run refreshes immediately and then every Interval until ctx is done.
func (r *StatsRefresher) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "stats refresher started",
		slog.Duration("interval", r.cfg.Interval),
		slog.Duration("window", r.cfg.Window),
	)
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.Refresh(ctx); err != nil && errors.Is(err, ErrRefreshInProgress) {
			r.logger.DebugContext(ctx, "scheduled stats refresh skipped, one is already running")
		}
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "stats refresher stopped")
			return nil
		case <-ticker.C:
		}
	}
}
