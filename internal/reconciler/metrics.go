package reconciler

import (
	"sync/atomic"
	"time"
)

// ServiceMetrics accumulates lifetime counters across reconciliation
// runs on this instance.
type ServiceMetrics struct {
	TotalRuns       atomic.Int64
	TotalProcessed  atomic.Int64
	TotalUpdated    atomic.Int64
	TotalSkipped    atomic.Int64
	TotalFailed     atomic.Int64
	TotalDurationMs atomic.Int64
	LastRunTime     atomic.Int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{}
}

func (m *ServiceMetrics) RecordRun(s *Summary, duration time.Duration) {
	m.TotalRuns.Add(1)
	m.TotalProcessed.Add(int64(s.Processed))
	m.TotalUpdated.Add(int64(s.Updated))
	m.TotalSkipped.Add(int64(s.Skipped))
	m.TotalFailed.Add(int64(s.Failed))
	m.TotalDurationMs.Add(duration.Milliseconds())
	m.LastRunTime.Store(time.Now().Unix())
}

func (m *ServiceMetrics) AvgRunDurationMs() int64 {
	runs := m.TotalRuns.Load()
	if runs == 0 {
		return 0
	}
	return m.TotalDurationMs.Load() / runs
}

func (m *ServiceMetrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total_runs":          m.TotalRuns.Load(),
		"total_processed":     m.TotalProcessed.Load(),
		"total_updated":       m.TotalUpdated.Load(),
		"total_skipped":       m.TotalSkipped.Load(),
		"total_failed":        m.TotalFailed.Load(),
		"avg_run_duration_ms": m.AvgRunDurationMs(),
		"last_run_time":       m.LastRunTime.Load(),
	}
}
