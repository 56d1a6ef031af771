package stream

import "sync/atomic"

// Metrics holds process-lifetime streaming counters. Cheap atomics, read by
// the status route.
type Metrics struct {
	ActiveStreams atomic.Int64
	TotalStreams  atomic.Int64
	BytesServed   atomic.Int64
	HealEvents    atomic.Int64
	HealFailures  atomic.Int64
}

var metrics Metrics

// Stats returns the shared counter set.
func Stats() *Metrics {
	return &metrics
}

// MetricsSnapshot is the JSON shape exposed by the status route.
type MetricsSnapshot struct {
	ActiveStreams int64 `json:"active_streams"`
	TotalStreams  int64 `json:"total_streams"`
	BytesServed   int64 `json:"bytes_served"`
	HealEvents    int64 `json:"heal_events"`
	HealFailures  int64 `json:"heal_failures"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ActiveStreams: m.ActiveStreams.Load(),
		TotalStreams:  m.TotalStreams.Load(),
		BytesServed:   m.BytesServed.Load(),
		HealEvents:    m.HealEvents.Load(),
		HealFailures:  m.HealFailures.Load(),
	}
}
