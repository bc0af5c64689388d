package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "promocode")
	require.NotNil(t, c)

	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)

	var all []string
	for d := range ch {
		all = append(all, d.String())
	}
	require.Len(t, all, 8)

	joined := strings.Join(all, "\n")
	for _, name := range []string{
		"db_pool_acquired_connections",
		"db_pool_idle_connections",
		"db_pool_total_connections",
		"db_pool_max_connections",
		"db_pool_acquire_count_total",
		"db_pool_acquire_duration_seconds_total",
		"db_pool_empty_acquire_count_total",
		"db_pool_canceled_acquire_count_total",
	} {
		assert.Contains(t, joined, `"`+name+`"`)
	}
}

func TestRegisterPoolMetrics_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPoolMetrics(reg, nil, "promocode"))
	assert.Error(t, RegisterPoolMetrics(reg, nil, "promocode"))
}
