package tickpool

import (
	"runtime"
)

const (
	// DefaultQueueCapacity is the initial size of the job ring buffer.
	DefaultQueueCapacity = 256

	// DefaultSpinBudget is how many lock attempts a SpinLock makes before yielding.
	DefaultSpinBudget = 64
)

// Options configure a Scheduler.
//
// All zero values are replaced with sensible defaults in FillDefaults.
type Options struct {
	// Workers is the number of worker goroutines. Each one is locked to its
	// own OS thread for its whole life.
	Workers int

	// PinWorkers restricts worker i to logical CPU i % NumCPU where the
	// platform allows it.
	PinWorkers bool

	// QueueCapacity is the initial size of the job queue. The queue grows
	// when full; it never rejects work.
	QueueCapacity int

	// Metrics receives queueing and execution events. Defaults to NoopMetrics.
	Metrics MetricsPolicy

	// OnInternalError is called for lifecycle anomalies such as a second
	// Init or failed CPU pinning. It never receives job failures: a job
	// that panics takes the process down.
	OnInternalError func(error)
}

// FillDefaults replaces zero values with defaults.
func (o *Options) FillDefaults() {
	if o.Workers <= 0 {
		// leave one core to the driving thread
		o.Workers = max(runtime.NumCPU()-1, 1)
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.Metrics == nil {
		o.Metrics = &NoopMetrics{}
	}
}
