package taskqueue

import (
	"context"
	"math"
	"sync/atomic"

	lg "github.com/Andrej220/go-utils/zlog"

	"github.com/azargarov/tickpool"
)

// Executor runs AnyThread tasks. *tickpool.Scheduler implements it.
type Executor interface {
	Submit(j *tickpool.Job) (tickpool.JobHandle, error)
	AwaitJobs(hs ...tickpool.JobHandle)
}

// Queue is a batch of tasks over a shared resource of type T, drained one
// priority band per Step.
//
// Register, Step, StepMixed, Drain, Invoke and Reset belong to a single
// driving goroutine. Progress, Done, Current, Len and TotalImpact may be
// read from anywhere, including from running tasks.
type Queue[T any] struct {
	exec Executor
	ctx  context.Context

	bands   [numBands][]entry[T]
	current atomic.Int32 // next band to drain; -1 once done
	count   atomic.Int64
	total   atomic.Int64
	impact  atomic.Int64 // impact of tasks that have returned
	started bool

	handles  []tickpool.JobHandle
	inflight []*dispatched[T]
	overlap  *overlapGuard
}

// dispatched is an AnyThread task handed to the executor. ran is set by the
// job after the task returned.
type dispatched[T any] struct {
	e   entry[T]
	ran atomic.Bool
}

// New returns an empty queue. AnyThread tasks are submitted to exec; with
// a nil exec every task runs inline on the goroutine calling Step.
func New[T any](exec Executor, opts ...Option) *Queue[T] {
	c := newConfig(opts)
	q := &Queue[T]{
		exec: exec,
		ctx:  c.ctx,
	}
	if c.overlapCheck {
		q.overlap = newOverlapGuard()
	}
	q.current.Store(int32(numBands - 1))
	return q
}

// Register adds task to band prio. Invalid registrations are logged,
// leave the queue unchanged and return the reason.
//
// A task may be registered into any band that has not started draining
// yet, so follow-up work can be added between steps.
func (q *Queue[T]) Register(task Task[T], prio Priority, aff Affinity, impact int) error {
	var err error
	switch {
	case isNilTask(task):
		err = ErrNilTask
	case impact < 0:
		err = ErrNegativeImpact
	case !prio.Valid():
		err = ErrInvalidPriority
	case !aff.Valid():
		err = ErrInvalidAffinity
	case int32(prio) > q.current.Load():
		err = ErrBandDrained
	}
	if err != nil {
		lg.FromContext(q.ctx).Warn("task registration rejected",
			lg.String("reason", err.Error()),
			lg.String("priority", prio.String()),
			lg.String("affinity", aff.String()),
			lg.Int("impact", impact))
		return err
	}

	q.bands[prio] = append(q.bands[prio], entry[T]{task: task, affinity: aff, impact: int64(impact)})
	q.count.Add(1)
	q.total.Add(int64(impact))
	return nil
}

// RegisterFunc is Register for a plain function.
func (q *Queue[T]) RegisterFunc(fn func(res *T), prio Priority, aff Affinity, impact int) error {
	if fn == nil {
		return q.Register(nil, prio, aff, impact)
	}
	return q.Register(TaskFunc[T](fn), prio, aff, impact)
}

// Step drains the highest non-empty band that has not run yet and reports
// whether the whole queue is done. MainThread tasks of the band run inline
// first, then AnyThread tasks are submitted and awaited. The Instant band
// runs entirely inline on the first call.
func (q *Queue[T]) Step(res *T) bool { return q.step(res, false) }

// StepMixed is Step with the AnyThread tasks submitted before the
// MainThread tasks run, so both groups overlap in time. Both groups have
// returned before StepMixed does.
func (q *Queue[T]) StepMixed(res *T) bool { return q.step(res, true) }

// Drain calls StepMixed until the queue is done.
func (q *Queue[T]) Drain(res *T) {
	for !q.StepMixed(res) {
	}
}

// Invoke drains the whole queue under a batch name and resets it, leaving
// the queue ready for the next batch.
func (q *Queue[T]) Invoke(res *T, name string) {
	logger := lg.FromContext(q.ctx).With(lg.String("batch", name))
	if q.Len() == 0 {
		logger.Warn("invoking an empty task queue")
	} else {
		logger.Info("running task queue",
			lg.Int("tasks", q.Len()),
			lg.Int("impact", int(q.TotalImpact())))
	}
	q.Drain(res)
	logger.Info("task queue finished")
	q.Reset()
}

func (q *Queue[T]) step(res *T, mixed bool) bool {
	if !q.started {
		q.started = true
		if q.Len() > 0 {
			lg.FromContext(q.ctx).Info("task queue started",
				lg.Int("tasks", q.Len()),
				lg.Int("impact", int(q.TotalImpact())))
		}
	}

	q.skipEmpty()
	cur := q.current.Load()
	if cur < 0 {
		return true
	}

	prio := Priority(cur)
	if q.overlap != nil {
		q.overlap.enter(prio)
	}

	band := q.bands[prio]
	if prio == PriorityInstant {
		for i := range band {
			q.runInline(band[i], res)
		}
	} else if mixed {
		q.dispatch(band, res)
		q.runMain(band, res)
		q.await(res)
	} else {
		q.runMain(band, res)
		q.dispatch(band, res)
		q.await(res)
	}

	done := !q.pendingBelow(cur)
	if done {
		q.current.Store(-1)
	} else {
		q.current.Store(cur - 1)
	}

	lg.FromContext(q.ctx).Info("task band drained",
		lg.String("band", prio.String()),
		lg.Int("tasks", len(band)),
		lg.Any("progress", q.Progress()))
	return done
}

func (q *Queue[T]) skipEmpty() {
	for cur := q.current.Load(); cur >= 0 && len(q.bands[cur]) == 0; cur = q.current.Load() {
		q.current.Add(-1)
	}
}

func (q *Queue[T]) pendingBelow(cur int32) bool {
	for i := cur - 1; i >= 0; i-- {
		if len(q.bands[i]) > 0 {
			return true
		}
	}
	return false
}

func (q *Queue[T]) runMain(band []entry[T], res *T) {
	for i := range band {
		if band[i].affinity == MainThread {
			q.runInline(band[i], res)
		}
	}
}

func (q *Queue[T]) runInline(e entry[T], res *T) {
	e.task.Execute(res)
	q.impact.Add(e.impact)
}

// dispatch submits the band's AnyThread tasks. A task the executor refuses
// runs inline instead, so the band still completes.
func (q *Queue[T]) dispatch(band []entry[T], res *T) {
	for i := range band {
		e := band[i]
		if e.affinity != AnyThread {
			continue
		}
		if q.exec == nil {
			q.runInline(e, res)
			continue
		}
		d := &dispatched[T]{e: e}
		h, err := q.exec.Submit(tickpool.NewJob(func() {
			d.e.task.Execute(res)
			q.impact.Add(d.e.impact)
			d.ran.Store(true)
		}))
		if err != nil {
			lg.FromContext(q.ctx).Warn("task submission failed; running inline",
				lg.Any("error", err))
			q.runInline(e, res)
			continue
		}
		q.handles = append(q.handles, h)
		q.inflight = append(q.inflight, d)
	}
}

// await waits for the dispatched jobs. Jobs the executor dropped without
// running them, as a scheduler does on shutdown, run inline so the band
// never advances with unfinished tasks.
func (q *Queue[T]) await(res *T) {
	if len(q.handles) == 0 {
		return
	}
	q.exec.AwaitJobs(q.handles...)

	dropped := 0
	for _, d := range q.inflight {
		if !d.ran.Load() {
			dropped++
			q.runInline(d.e, res)
		}
	}
	if dropped > 0 {
		lg.FromContext(q.ctx).Warn("dispatched tasks were dropped by the executor; ran inline",
			lg.Int("tasks", dropped))
	}

	clear(q.handles)
	q.handles = q.handles[:0]
	clear(q.inflight)
	q.inflight = q.inflight[:0]
}

// Progress returns the fraction of registered impact whose tasks have
// returned. It never decreases within a batch, stays below 1 until the
// queue is done and is exactly 1 from then on. An empty queue reports 0
// until its first step.
func (q *Queue[T]) Progress() float64 {
	if q.Done() {
		return 1
	}
	total := q.total.Load()
	if total == 0 {
		return 0
	}
	p := float64(q.impact.Load()) / float64(total)
	if p >= 1 {
		return math.Nextafter(1, 0)
	}
	return p
}

// Done reports whether every band has been drained.
func (q *Queue[T]) Done() bool { return q.current.Load() < 0 }

// Current returns the highest band that has not been drained yet. ok is
// false once the queue is done.
func (q *Queue[T]) Current() (p Priority, ok bool) {
	cur := q.current.Load()
	if cur < 0 {
		return 0, false
	}
	return Priority(cur), true
}

// Len returns the number of tasks registered in this batch.
func (q *Queue[T]) Len() int { return int(q.count.Load()) }

// TotalImpact returns the summed impact of all registered tasks.
func (q *Queue[T]) TotalImpact() int64 { return q.total.Load() }

// Conflicts returns the overlaps recorded by Claim since the last Reset.
// It is always empty without WithOverlapCheck.
func (q *Queue[T]) Conflicts() []Conflict {
	if q.overlap == nil {
		return nil
	}
	return q.overlap.snapshot()
}

// Claim marks region of the resource as touched by the calling task. It
// returns false, and records a Conflict, when another task of the same band
// already claimed it. A region that is not comparable, such as a slice,
// cannot be tracked and is reported the same way. Without WithOverlapCheck
// Claim always returns true.
func (q *Queue[T]) Claim(region any) bool {
	if q.overlap == nil {
		return true
	}
	if q.overlap.claim(region) {
		return true
	}
	lg.FromContext(q.ctx).Warn("overlapping claim within a band",
		lg.Any("region", region))
	return false
}

// Reset discards every task and returns the queue to its initial state.
// It must not be called while a step is running.
func (q *Queue[T]) Reset() {
	for i := range q.bands {
		clear(q.bands[i])
		q.bands[i] = q.bands[i][:0]
	}
	q.count.Store(0)
	q.total.Store(0)
	q.impact.Store(0)
	q.started = false
	if q.overlap != nil {
		q.overlap.reset()
	}
	q.current.Store(int32(numBands - 1))
}
