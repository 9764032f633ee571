package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is the subset of pgxpool statistics exported as metrics.
type PoolStats struct {
	Acquired        int32
	Idle            int32
	Total           int32
	Max             int32
	AcquireCount    int64
	AcquireSeconds  float64
	EmptyAcquires   int64
	CanceledAcquire int64
}

type poolMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(PoolStats) float64
}

// PoolStatsCollector exports connection pool statistics on every scrape.
type PoolStatsCollector struct {
	stats   func() PoolStats
	service string
	metrics []poolMetric
}

// NewPoolStatsCollector reads statistics from pool.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	return newPoolStatsCollector(func() PoolStats {
		s := pool.Stat()
		return PoolStats{
			Acquired:        s.AcquiredConns(),
			Idle:            s.IdleConns(),
			Total:           s.TotalConns(),
			Max:             s.MaxConns(),
			AcquireCount:    s.AcquireCount(),
			AcquireSeconds:  s.AcquireDuration().Seconds(),
			EmptyAcquires:   s.EmptyAcquireCount(),
			CanceledAcquire: s.CanceledAcquireCount(),
		}
	}, service)
}

func newPoolStatsCollector(stats func() PoolStats, service string) *PoolStatsCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("db_pool_"+name, help, []string{"service"}, nil)
	}
	gauge, counter := prometheus.GaugeValue, prometheus.CounterValue

	return &PoolStatsCollector{
		stats:   stats,
		service: service,
		metrics: []poolMetric{
			{desc("acquired_connections", "Connections currently checked out."), gauge,
				func(s PoolStats) float64 { return float64(s.Acquired) }},
			{desc("idle_connections", "Connections currently idle."), gauge,
				func(s PoolStats) float64 { return float64(s.Idle) }},
			{desc("total_connections", "Connections currently open."), gauge,
				func(s PoolStats) float64 { return float64(s.Total) }},
			{desc("max_connections", "Configured connection ceiling."), gauge,
				func(s PoolStats) float64 { return float64(s.Max) }},
			{desc("acquire_count_total", "Connection acquisitions."), counter,
				func(s PoolStats) float64 { return float64(s.AcquireCount) }},
			{desc("acquire_duration_seconds_total", "Time spent acquiring connections."), counter,
				func(s PoolStats) float64 { return s.AcquireSeconds }},
			{desc("empty_acquire_count_total", "Acquisitions that had to wait for a connection."), counter,
				func(s PoolStats) float64 { return float64(s.EmptyAcquires) }},
			{desc("canceled_acquire_count_total", "Acquisitions canceled by their context."), counter,
				func(s PoolStats) float64 { return float64(s.CanceledAcquire) }},
		},
	}
}

func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s), c.service)
	}
}

// RegisterPoolMetrics registers a collector for pool with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	return reg.Register(NewPoolStatsCollector(pool, service))
}
