package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the case lifecycle module.
// All methods are safe on a nil receiver.
type Metrics struct {
	CasesCreated         *prometheus.CounterVec
	CasesArchived        *prometheus.CounterVec
	CasesRestored        *prometheus.CounterVec
	AllocationConflicts  *prometheus.CounterVec
	ArchiveCompensations *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	RetentionPurged      *prometheus.CounterVec
}

// New registers the case metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		CasesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casedesk_cases_created_total",
			Help: "Total number of cases created by type",
		}, []string{"type"}),

		CasesArchived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casedesk_cases_archived_total",
			Help: "Total number of cases moved to the archive by type",
		}, []string{"type"}),

		CasesRestored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casedesk_cases_restored_total",
			Help: "Total number of cases restored from the archive, split by whether a new number was assigned",
		}, []string{"type", "renumbered"}),

		AllocationConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casedesk_allocation_conflicts_total",
			Help: "Case number allocations that lost a race or found the number taken",
		}, []string{"type"}),

		ArchiveCompensations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casedesk_archive_compensations_total",
			Help: "Compensating actions run after a partial archive or restore failure",
		}, []string{"step", "outcome"}), // step: "delete", "restore"; outcome: "ok", "failed"

		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casedesk_case_operation_duration_seconds",
			Help:    "Duration of case lifecycle operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		RetentionPurged: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casedesk_retention_purged_total",
			Help: "Entries removed by the retention sweep",
		}, []string{"target"}), // target: "archive", "audit"
	}
}

func (m *Metrics) IncCreated(caseType string) {
	if m != nil {
		m.CasesCreated.WithLabelValues(caseType).Inc()
	}
}

func (m *Metrics) IncArchived(caseType string) {
	if m != nil {
		m.CasesArchived.WithLabelValues(caseType).Inc()
	}
}

func (m *Metrics) IncRestored(caseType string, renumbered bool) {
	if m != nil {
		m.CasesRestored.WithLabelValues(caseType, strconv.FormatBool(renumbered)).Inc()
	}
}

func (m *Metrics) IncAllocationConflict(caseType string) {
	if m != nil {
		m.AllocationConflicts.WithLabelValues(caseType).Inc()
	}
}

// IncCompensation records a compensating action and whether it succeeded.
func (m *Metrics) IncCompensation(step string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.ArchiveCompensations.WithLabelValues(step, outcome).Inc()
}

// ObserveOperation records the duration of operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m != nil {
		m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) AddPurged(target string, n int) {
	if m != nil && n > 0 {
		m.RetentionPurged.WithLabelValues(target).Add(float64(n))
	}
}
