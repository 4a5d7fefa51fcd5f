package tickpool

import (
	"sync/atomic"
	"time"
)

// MetricsPolicy defines hooks used by the Scheduler to report
// queueing and execution activity.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
type MetricsPolicy interface {
	// IncSubmitted is called once per accepted Submit.
	IncSubmitted()

	// ObserveExecuted is called after a job ran. wait is the time the job
	// spent in the queue, run is how long it executed.
	ObserveExecuted(wait, run time.Duration)

	// AddDropped is called on shutdown with the number of queued jobs
	// that never started.
	AddDropped(n int64)
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes are optimized for hot paths.
// Reads are intended for cold-path observation.
type AtomicMetrics struct {
	submitted atomic.Uint64

	_ cachePad // avoid false sharing

	executed atomic.Uint64
	waitNs   atomic.Int64
	runNs    atomic.Int64
	maxWait  atomic.Int64

	_ cachePad

	dropped atomic.Int64
}

// Submitted returns the total number of accepted jobs.
func (m *AtomicMetrics) Submitted() uint64 { return m.submitted.Load() }

// Executed returns the total number of executed jobs.
func (m *AtomicMetrics) Executed() uint64 { return m.executed.Load() }

// Dropped returns the number of jobs discarded by shutdown.
func (m *AtomicMetrics) Dropped() int64 { return m.dropped.Load() }

// MeanWait returns the average time executed jobs spent queued.
func (m *AtomicMetrics) MeanWait() time.Duration {
	n := m.executed.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(m.waitNs.Load() / int64(n))
}

// MeanRun returns the average execution time of executed jobs.
func (m *AtomicMetrics) MeanRun() time.Duration {
	n := m.executed.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(m.runNs.Load() / int64(n))
}

// MaxWait returns the longest observed queue wait.
func (m *AtomicMetrics) MaxWait() time.Duration { return time.Duration(m.maxWait.Load()) }

func (m *AtomicMetrics) IncSubmitted() { m.submitted.Add(1) }

func (m *AtomicMetrics) ObserveExecuted(wait, run time.Duration) {
	m.executed.Add(1)
	m.waitNs.Add(int64(wait))
	m.runNs.Add(int64(run))
	for {
		cur := m.maxWait.Load()
		if int64(wait) <= cur || m.maxWait.CompareAndSwap(cur, int64(wait)) {
			return
		}
	}
}

func (m *AtomicMetrics) AddDropped(n int64) { m.dropped.Add(n) }

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
type NoopMetrics struct{}

func (m *NoopMetrics) IncSubmitted()                     {}
func (m *NoopMetrics) ObserveExecuted(_, _ time.Duration) {}
func (m *NoopMetrics) AddDropped(int64)                  {}
