package workflow

import (
	"sort"
	"sync"
	"time"
)

// trendCap bounds the global trend series' point count, evicting the oldest
// point (FIFO) once exceeded, ported from the "capped at a fixed point
// count" requirement in spec §4.8.
const trendCap = 1000

// TransitionRecord is one completed state-to-state move, used for the
// global trend series.
type TransitionRecord struct {
	Workflow string
	From     string
	To       string
	Label    string
	At       time.Time
}

// workflowSummary aggregates per-workflow state-duration data.
type workflowSummary struct {
	totalTransitions int
	stateDurations   map[string]time.Duration
	lastUpdated      time.Time
}

// Metrics accumulates per-state durations and a global transition trend,
// with age/count-bounded cleanup mirroring
// original_source/swissarmyhammer/src/workflow/metrics/cleanup.rs.
type Metrics struct {
	mu sync.Mutex

	trend     []TransitionRecord
	summaries map[string]*workflowSummary

	MaxWorkflowSummaryAge time.Duration
	MaxTrendPoints        int
}

// NewMetrics constructs a Metrics with the spec's defaults: a 1000-point
// trend cap and a 30-day workflow summary retention window.
func NewMetrics() *Metrics {
	return &Metrics{
		summaries:             make(map[string]*workflowSummary),
		MaxWorkflowSummaryAge: 30 * 24 * time.Hour,
		MaxTrendPoints:        trendCap,
	}
}

// RecordStateDuration accumulates time spent executing a state's action into
// that workflow's summary.
func (m *Metrics) RecordStateDuration(workflowName, stateID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.summaryLocked(workflowName)
	s.stateDurations[stateID] += d
	s.lastUpdated = time.Now()
}

// RecordTransition appends a transition to the global trend series,
// evicting the oldest point if the cap is exceeded.
func (m *Metrics) RecordTransition(workflowName, from, to, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.summaryLocked(workflowName)
	s.totalTransitions++
	s.lastUpdated = time.Now()

	cap := m.MaxTrendPoints
	if cap <= 0 {
		cap = trendCap
	}
	m.trend = append(m.trend, TransitionRecord{Workflow: workflowName, From: from, To: to, Label: label, At: time.Now()})
	if len(m.trend) > cap {
		m.trend = m.trend[len(m.trend)-cap:]
	}
}

func (m *Metrics) summaryLocked(workflowName string) *workflowSummary {
	s, ok := m.summaries[workflowName]
	if !ok {
		s = &workflowSummary{stateDurations: make(map[string]time.Duration)}
		m.summaries[workflowName] = s
	}
	return s
}

// TrendLen returns the current number of retained trend points.
func (m *Metrics) TrendLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trend)
}

// StateDuration returns the accumulated duration recorded for a workflow's
// state.
func (m *Metrics) StateDuration(workflowName, stateID string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[workflowName]
	if !ok {
		return 0
	}
	return s.stateDurations[stateID]
}

// CleanupOldMetrics removes workflow summaries whose last update is older
// than MaxWorkflowSummaryAge, and trims the trend series back to
// MaxTrendPoints. It returns the number of workflow summaries removed.
func (m *Metrics) CleanupOldMetrics() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.MaxWorkflowSummaryAge)
	removed := 0

	var stale []string
	for name, s := range m.summaries {
		if s.lastUpdated.Before(cutoff) {
			stale = append(stale, name)
		}
	}
	sort.Strings(stale)
	for _, name := range stale {
		delete(m.summaries, name)
		removed++
	}

	cap := m.MaxTrendPoints
	if cap <= 0 {
		cap = trendCap
	}
	if len(m.trend) > cap {
		m.trend = m.trend[len(m.trend)-cap:]
	}
	return removed
}
