package taskqueue

import (
	"errors"
	"strconv"
)

var (
	// ErrNilTask is returned when a task or task function is nil.
	ErrNilTask = errors.New("taskqueue: task is nil")

	// ErrNegativeImpact is returned when a task is registered with impact < 0.
	ErrNegativeImpact = errors.New("taskqueue: negative impact")

	// ErrInvalidPriority is returned for a priority outside Low..Instant.
	ErrInvalidPriority = errors.New("taskqueue: invalid priority")

	// ErrInvalidAffinity is returned for an unknown thread affinity.
	ErrInvalidAffinity = errors.New("taskqueue: invalid affinity")

	// ErrBandDrained is returned when a task targets a band that has
	// already been executed. Reset the queue to start a new batch.
	ErrBandDrained = errors.New("taskqueue: priority band already drained")
)

// Priority is the band a task runs in. Higher bands drain first.
type Priority int8

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical

	// PriorityInstant drains before every other band, on the first step,
	// inline on the calling goroutine and in registration order, whatever
	// the task's affinity.
	PriorityInstant
)

const numBands = int(PriorityInstant) + 1

// Valid reports whether p is a known band.
func (p Priority) Valid() bool { return p >= PriorityLow && p <= PriorityInstant }

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	case PriorityInstant:
		return "instant"
	default:
		return "priority(" + strconv.Itoa(int(p)) + ")"
	}
}

// Affinity says which goroutine may run a task.
type Affinity uint8

const (
	// MainThread tasks run inline on the goroutine that calls Step.
	MainThread Affinity = iota

	// AnyThread tasks are submitted to the executor and may run on any worker.
	AnyThread
)

func (a Affinity) Valid() bool { return a == MainThread || a == AnyThread }

func (a Affinity) String() string {
	switch a {
	case MainThread:
		return "main"
	case AnyThread:
		return "any"
	default:
		return "affinity(" + strconv.Itoa(int(a)) + ")"
	}
}

// Task is a unit of work on the shared resource of a Queue.
type Task[T any] interface {
	Execute(res *T)
}

// TaskFunc adapts a function to Task.
type TaskFunc[T any] func(res *T)

// Execute calls f(res).
func (f TaskFunc[T]) Execute(res *T) { f(res) }

type entry[T any] struct {
	task     Task[T]
	affinity Affinity
	impact   int64
}

func isNilTask[T any](t Task[T]) bool {
	if t == nil {
		return true
	}
	f, ok := t.(TaskFunc[T])
	return ok && f == nil
}
