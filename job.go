package tickpool

import (
	"sync/atomic"

	"github.com/aradilov/ringbuffer"
)

// jobFreeListSize bounds how many finished job nodes are kept for reuse.
// Must be a power of two.
const jobFreeListSize = 1024

// freeJobs recycles the job nodes created by Scheduler.Go across all
// schedulers. When it is full, released nodes are left to the garbage
// collector.
var freeJobs = ringbuffer.NewMPMC[*Job](jobFreeListSize)

// JobFunc is a function that receives an explicit argument when the job runs.
type JobFunc[T any] func(T)

// Job is a single unit of work.
//
// A Job is created free-standing with NewJob or NewExplicitJob and handed to
// Scheduler.Submit, which takes ownership of it. The job runs exactly once
// on some worker. It stays marked as submitted afterwards, so submitting it
// again fails with ErrJobSubmitted.
type Job struct {
	fn        func()
	handle    JobHandle
	submitted atomic.Bool

	// pooled nodes are never seen by callers and return to freeJobs.
	pooled bool
}

// NewJob wraps fn into a Job.
func NewJob(fn func()) *Job {
	j := acquireJob()
	j.fn = fn
	return j
}

// NewExplicitJob creates a Job that calls fn with payload. The payload is
// captured at creation time.
func NewExplicitJob[T any](fn JobFunc[T], payload T) *Job {
	if fn == nil {
		return NewJob(nil)
	}
	return NewJob(func() { fn(payload) })
}

// Handle returns the handle assigned at submission, or NullHandle before it.
func (j *Job) Handle() JobHandle { return j.handle }

func (j *Job) run() { j.fn() }

func acquireJob() *Job {
	if j, ok := freeJobs.Dequeue(); ok {
		return j
	}
	return &Job{}
}

// finishJob drops the closure of a job that has left the scheduler. Only
// pooled nodes are reset and recycled; a caller-owned job keeps its
// submitted mark.
func finishJob(j *Job) {
	j.fn = nil
	if j.pooled {
		releaseJob(j)
	}
}

func releaseJob(j *Job) {
	j.fn = nil
	j.handle = NullHandle
	j.pooled = false
	j.submitted.Store(false)
	_ = freeJobs.Enqueue(j)
}
