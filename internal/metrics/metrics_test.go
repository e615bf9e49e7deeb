package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.RecordGenerated("backfill", 360)
	m.RecordGenerated("tick", 2)
	m.RecordGenerated("tick", 0)
	m.RecordBackfill("success", 150*time.Millisecond)
	m.RecordBackfill("skipped", time.Millisecond)
	m.RecordJob("live-tick", "error", time.Second)
	m.SetQueueDepth(3)
	m.RecordDispatchRejected()

	assert.Equal(t, 360.0, testutil.ToFloat64(m.measurementsGenerated.WithLabelValues("backfill")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.measurementsGenerated.WithLabelValues("tick")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backfillRuns.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("live-tick", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchRejected))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordGenerated("tick", 1)
		m.RecordBackfill("error", time.Second)
		m.RecordTickZone("success")
		m.RecordJob("x", "success", 0)
		m.SetQueueDepth(1)
		m.RecordDispatchRejected()
		m.RecordPublishError()
	})
}
