package tickpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"go.uber.org/multierr"
)

// Scheduler runs jobs on a fixed set of workers that are kept hot while
// a tick is in progress and parked between ticks.
//
// A Scheduler is constructed once, started with Init and stopped with
// Shutdown. It is safe for concurrent use.
type Scheduler struct {
	opts Options

	// ctx carries the logger. Set by Init.
	ctx context.Context

	queueMu SpinLock
	queue   *jobQueue
	closed  bool // guarded by queueMu

	worked  *workedSet
	handles handleCounter
	cycle   *cycle

	lifeMu      sync.Mutex
	initialized atomic.Bool
	stopOnce    sync.Once
	joined      chan struct{}
	wg          sync.WaitGroup

	running   atomic.Int32
	submitted atomic.Uint64
	executed  atomic.Uint64
	dropped   atomic.Uint64
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Workers     int
	Running     int32
	Submitted   uint64
	Executed    uint64
	Dropped     uint64
	Queued      int
	InFlight    int
	Hibernating bool
}

// New creates a stopped Scheduler. Call Init to start the workers.
func New(opts Options) *Scheduler {
	opts.FillDefaults()
	return &Scheduler{
		opts:   opts,
		ctx:    context.Background(),
		queue:  newJobQueue(opts.QueueCapacity),
		worked: newWorkedSet(opts.QueueCapacity),
		cycle:  newCycle(),
	}
}

// Init starts the workers and blocks until each of them is running.
//
// Only the first call has an effect. Later calls log a warning, report
// ErrAlreadyInitialized to OnInternalError and return it. ctx is used for
// logging for the whole life of the Scheduler.
func (s *Scheduler) Init(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.initialized.Load() {
		lg.FromContext(ctx).Warn("scheduler init refused: already initialized",
			lg.Int("workers", s.opts.Workers))
		s.reportInternalError(ErrAlreadyInitialized)
		return ErrAlreadyInitialized
	}
	s.ctx = ctx
	logger := lg.FromContext(ctx)

	ready := make(chan error, s.opts.Workers)
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i, ready)
	}

	var pinErr error
	for i := 0; i < s.opts.Workers; i++ {
		pinErr = multierr.Append(pinErr, <-ready)
	}
	if pinErr != nil {
		logger.Warn("worker pinning failed; workers run unpinned",
			lg.Int("failed", len(multierr.Errors(pinErr))),
			lg.Any("error", pinErr))
		s.reportInternalError(pinErr)
	}

	s.initialized.Store(true)
	logger.Info("scheduler started",
		lg.Int("workers", s.opts.Workers),
		lg.Any("pinned", s.opts.PinWorkers && pinErr == nil))
	return nil
}

// Shutdown stops the workers and waits for them to exit.
//
// A job that is already running finishes; queued jobs that never started
// are dropped and removed from the worked set so pending awaits return.
// If ctx expires first, Shutdown returns ctx.Err() and the workers keep
// shutting down in the background; calling Shutdown again waits for them.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if !s.initialized.Load() {
		return ErrNotInitialized
	}
	s.stopOnce.Do(func() {
		s.lifeMu.Lock()
		defer s.lifeMu.Unlock()

		s.queueMu.Lock()
		s.closed = true
		s.queueMu.Unlock()

		s.cycle.stop()

		s.joined = make(chan struct{})
		go func() {
			defer close(s.joined)
			s.wg.Wait()
			s.dropPending()
		}()
	})

	select {
	case <-s.joined:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop is Shutdown without a deadline.
func (s *Scheduler) Stop() { _ = s.Shutdown(context.Background()) }

// Submit takes ownership of j and queues it. It never blocks on execution.
func (s *Scheduler) Submit(j *Job) (JobHandle, error) {
	if j == nil {
		return NullHandle, ErrNilFunc
	}
	if j.submitted.Load() {
		return NullHandle, ErrJobSubmitted
	}
	if j.fn == nil {
		return NullHandle, ErrNilFunc
	}
	if !s.initialized.Load() {
		return NullHandle, ErrNotInitialized
	}
	if !j.submitted.CompareAndSwap(false, true) {
		return NullHandle, ErrJobSubmitted
	}

	h := s.handles.next()
	j.handle = h
	s.worked.add(h, time.Now())

	s.queueMu.Lock()
	if s.closed {
		s.queueMu.Unlock()
		s.worked.remove(h)
		j.handle = NullHandle
		j.submitted.Store(false)
		return NullHandle, ErrPoolClosed
	}
	s.queue.Push(j)
	s.queueMu.Unlock()

	s.submitted.Add(1)
	s.opts.Metrics.IncSubmitted()
	return h, nil
}

// Go submits fn as a new Job. The job node is recycled after it has run.
func (s *Scheduler) Go(fn func()) (JobHandle, error) {
	j := NewJob(fn)
	j.pooled = true
	h, err := s.Submit(j)
	if err != nil {
		releaseJob(j)
	}
	return h, err
}

// AwaitJob blocks until the job identified by h has finished.
func (s *Scheduler) AwaitJob(h JobHandle) { s.AwaitJobs(h) }

// AwaitJobs blocks until none of hs is queued or running.
//
// It polls the worked set and yields between scans; there is no timeout.
// Handles that are null or already finished are ignored.
func (s *Scheduler) AwaitJobs(hs ...JobHandle) {
	if len(hs) == 0 {
		return
	}
	for s.worked.containsAny(hs) {
		runtime.Gosched()
	}
}

// AwaitAll blocks until no job is queued or running.
func (s *Scheduler) AwaitAll() {
	for s.worked.len() > 0 {
		runtime.Gosched()
	}
}

// WakeUp brings the workers back to the active state. Idempotent.
func (s *Scheduler) WakeUp() { s.cycle.wake() }

// Hibernate parks the workers until deadline. Each worker sleeps for
// roughly budget, then spins until deadline for a precise start of the
// next tick, then waits for WakeUp. Jobs queued meanwhile wait too.
func (s *Scheduler) Hibernate(deadline time.Time, budget time.Duration) {
	s.cycle.hibernate(deadline, budget)
}

// IsHibernating reports whether the workers are parked.
func (s *Scheduler) IsHibernating() bool { return s.cycle.state() == stateHibernating }

// Workers returns the configured number of workers.
func (s *Scheduler) Workers() int { return s.opts.Workers }

// Pending returns the number of jobs queued or running.
func (s *Scheduler) Pending() int { return s.worked.len() }

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.queueMu.Lock()
	queued := s.queue.Len()
	s.queueMu.Unlock()
	return Stats{
		Workers:     s.opts.Workers,
		Running:     s.running.Load(),
		Submitted:   s.submitted.Load(),
		Executed:    s.executed.Load(),
		Dropped:     s.dropped.Load(),
		Queued:      queued,
		InFlight:    s.worked.len(),
		Hibernating: s.IsHibernating(),
	}
}

func (s *Scheduler) worker(id int, ready chan<- error) {
	defer s.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var pinErr error
	if s.opts.PinWorkers {
		cpu := id % runtime.NumCPU()
		if err := PinToCPU(cpu); err != nil {
			pinErr = fmt.Errorf("worker %d on cpu %d: %w", id, cpu, err)
		}
	}
	ready <- pinErr

	s.running.Add(1)
	defer s.running.Add(-1)

	idle := newIdler(s.cycle)
	defer idle.close()

	for {
		switch s.cycle.state() {
		case stateShutdown:
			return
		case stateHibernating:
			idle.idle()
		default:
			if !s.runNext() {
				runtime.Gosched()
			}
		}
	}
}

// runNext pops the queue head and runs it. A panicking job is not
// recovered.
func (s *Scheduler) runNext() bool {
	s.queueMu.Lock()
	j, ok := s.queue.Pop()
	s.queueMu.Unlock()
	if !ok {
		return false
	}

	start := time.Now()
	j.run()
	ran := time.Since(start)

	queuedAt, _ := s.worked.remove(j.handle)
	s.executed.Add(1)
	s.opts.Metrics.ObserveExecuted(start.Sub(queuedAt), ran)
	finishJob(j)
	return true
}

// dropPending discards jobs still queued after the workers exited.
func (s *Scheduler) dropPending() {
	s.queueMu.Lock()
	jobs := s.queue.Drain()
	s.queueMu.Unlock()

	for _, j := range jobs {
		s.worked.remove(j.handle)
		finishJob(j)
	}

	n := len(jobs)
	logger := lg.FromContext(s.ctx)
	if n > 0 {
		s.dropped.Add(uint64(n))
		s.opts.Metrics.AddDropped(int64(n))
		logger.Warn("scheduler stopped with queued jobs; dropped", lg.Int("dropped", n))
		return
	}
	logger.Info("scheduler stopped", lg.Int("executed", int(s.executed.Load())))
}
