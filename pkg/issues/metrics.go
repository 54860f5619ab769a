package issues

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InstrumentedStore wraps a Store, recording per-operation latency into a
// prometheus HistogramVec the way the teacher instruments its MCP gateway
// handlers (pkg/gateway) with per-route histograms.
type InstrumentedStore struct {
	inner    *Store
	duration *prometheus.HistogramVec
}

// NewInstrumentedStore registers a "swissarmyhammer_issue_operation_duration_seconds"
// histogram (labelled by operation) against reg and returns a wrapper around inner.
func NewInstrumentedStore(inner *Store, reg prometheus.Registerer) *InstrumentedStore {
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "swissarmyhammer",
		Subsystem: "issue_store",
		Name:      "operation_duration_seconds",
		Help:      "Latency of issue store operations by operation name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	if reg != nil {
		reg.MustRegister(duration)
	}
	return &InstrumentedStore{inner: inner, duration: duration}
}

func (s *InstrumentedStore) observe(operation string, start time.Time) {
	s.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedStore) CreateIssue(name, content string) (Issue, error) {
	defer s.timeIt("create_issue")()
	return s.inner.CreateIssue(name, content)
}

func (s *InstrumentedStore) GetIssue(nameOrNumber string) (Issue, error) {
	defer s.timeIt("get_issue")()
	return s.inner.GetIssue(nameOrNumber)
}

func (s *InstrumentedStore) UpdateIssue(nameOrNumber, newContent string) (Issue, error) {
	defer s.timeIt("update_issue")()
	return s.inner.UpdateIssue(nameOrNumber, newContent)
}

func (s *InstrumentedStore) MarkComplete(nameOrNumber string) (Issue, error) {
	defer s.timeIt("mark_complete")()
	return s.inner.MarkComplete(nameOrNumber)
}

func (s *InstrumentedStore) ListIssues() ([]Issue, error) {
	defer s.timeIt("list_issues")()
	return s.inner.ListIssues()
}

func (s *InstrumentedStore) timeIt(operation string) func() {
	start := time.Now()
	return func() { s.observe(operation, start) }
}
