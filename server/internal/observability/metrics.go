package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects counters for advisor and gateway operations.
type Metrics struct {
	mu sync.Mutex

	adviseTotal    atomic.Int64
	adviseFailed   atomic.Int64
	embeddingCalls atomic.Int64
	completionCall atomic.Int64

	durations    []time.Duration
	maxDurations int
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

var globalMetrics = NewMetrics(1000)

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordAdvise records one advisory request.
func (m *Metrics) RecordAdvise() {
	m.adviseTotal.Add(1)
}

// RecordAdviseFailure records one failed advisory request.
func (m *Metrics) RecordAdviseFailure() {
	m.adviseFailed.Add(1)
}

// RecordEmbeddingCall records one embedding gateway call.
func (m *Metrics) RecordEmbeddingCall() {
	m.embeddingCalls.Add(1)
}

// RecordCompletionCall records one completion gateway call.
func (m *Metrics) RecordCompletionCall() {
	m.completionCall.Add(1)
}

// RecordDuration records the duration of one advisory request. Only the most
// recent maxDurations samples are kept.
func (m *Metrics) RecordDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, d)
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"advise_total":     m.adviseTotal.Load(),
		"advise_failed":    m.adviseFailed.Load(),
		"embedding_calls":  m.embeddingCalls.Load(),
		"completion_calls": m.completionCall.Load(),
	}
}
