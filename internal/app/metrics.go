package app

import "sync/atomic"

// Metrics counts the session's notable events. Counters are atomic so
// request goroutines and bus handlers can bump them freely.
type Metrics struct {
	GoalRequests      atomic.Int64
	StaleResponses    atomic.Int64
	ClientRestarts    atomic.Int64
	ClientCrashes     atomic.Int64
	DiagnosticsEvents atomic.Int64
	VersionChanges    atomic.Int64
}

// NewMetrics creates a zeroed metrics set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	GoalRequests      int64
	StaleResponses    int64
	ClientRestarts    int64
	ClientCrashes     int64
	DiagnosticsEvents int64
	VersionChanges    int64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		GoalRequests:      m.GoalRequests.Load(),
		StaleResponses:    m.StaleResponses.Load(),
		ClientRestarts:    m.ClientRestarts.Load(),
		ClientCrashes:     m.ClientCrashes.Load(),
		DiagnosticsEvents: m.DiagnosticsEvents.Load(),
		VersionChanges:    m.VersionChanges.Load(),
	}
}
