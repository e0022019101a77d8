package worker

import (
	"sync"
	"time"
)

// WorkerMetrics accumulates per-job counters for the worker's lifetime.
// Safe for concurrent use.
type WorkerMetrics struct {
	mu            sync.Mutex
	total         int64
	succeeded     int64
	failed        int64
	totalDuration time.Duration
}

func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{}
}

// Record adds one finished job to the counters.
func (m *WorkerMetrics) Record(success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	if success {
		m.succeeded++
	} else {
		m.failed++
	}
	m.totalDuration += duration
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Total             int64   `json:"total_jobs"`
	Succeeded         int64   `json:"succeeded"`
	Failed            int64   `json:"failed"`
	SuccessRate       float64 `json:"success_rate"`
	AverageDurationMs float64 `json:"average_duration_ms"`
}

func (m *WorkerMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		Total:     m.total,
		Succeeded: m.succeeded,
		Failed:    m.failed,
	}
	if m.total > 0 {
		snap.SuccessRate = float64(m.succeeded) / float64(m.total)
		snap.AverageDurationMs = float64(m.totalDuration.Milliseconds()) / float64(m.total)
	}
	return snap
}
