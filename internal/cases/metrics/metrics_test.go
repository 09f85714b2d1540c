package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncCreated("Corrective")
	m.IncCreated("Corrective")
	m.IncRestored("Preventive", true)
	m.IncCompensation("delete", false)
	m.AddPurged("archive", 3)
	m.AddPurged("archive", 0)
	m.ObserveOperation("create", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CasesCreated.WithLabelValues("Corrective")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CasesRestored.WithLabelValues("Preventive", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArchiveCompensations.WithLabelValues("delete", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RetentionPurged.WithLabelValues("archive")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.OperationDuration))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncCreated("Corrective")
		m.IncArchived("Corrective")
		m.IncRestored("Corrective", false)
		m.IncAllocationConflict("Corrective")
		m.IncCompensation("restore", true)
		m.ObserveOperation("get", time.Now())
		m.AddPurged("audit", 1)
	})
}
