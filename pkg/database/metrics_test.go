package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Collect(t *testing.T) {
	c := newPoolStatsCollector(func() PoolStats {
		return PoolStats{Acquired: 3, Idle: 2, Total: 5, Max: 25, AcquireCount: 40}
	}, "tube-review")

	expected := `
# HELP db_pool_acquired_connections Connections currently checked out.
# TYPE db_pool_acquired_connections gauge
db_pool_acquired_connections{service="tube-review"} 3
# HELP db_pool_acquire_count_total Connection acquisitions.
# TYPE db_pool_acquire_count_total counter
db_pool_acquire_count_total{service="tube-review"} 40
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"db_pool_acquired_connections", "db_pool_acquire_count_total")
	require.NoError(t, err)
}

func TestPoolStatsCollector_DescribesEveryMetric(t *testing.T) {
	c := newPoolStatsCollector(func() PoolStats { return PoolStats{} }, "svc")

	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}
	assert.Len(t, names, len(c.metrics))
	assert.Equal(t, len(c.metrics), testutil.CollectAndCount(c))
}

func TestRegisterPoolMetrics_RejectsDuplicate(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := newPoolStatsCollector(func() PoolStats { return PoolStats{} }, "svc")
	require.NoError(t, reg.Register(c))
	assert.Error(t, reg.Register(newPoolStatsCollector(func() PoolStats { return PoolStats{} }, "svc")))
}
