package tickpool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// workerState is derived from the scheduler flags on every worker loop
// iteration. There are no other transitions.
//
//	ACTIVE        hibernating=false, shutdown=false
//	              pop the queue head and run it, or yield when empty
//	HIBERNATING   hibernating=true, shutdown=false
//	              once per Hibernate call: sleep min(budget, deadline-now),
//	              then spin until the deadline; afterwards poll the flags.
//	              WakeUp cuts both phases short
//	SHUTDOWN      shutdown=true
//	              leave the loop
type workerState uint8

const (
	stateActive workerState = iota
	stateHibernating
	stateShutdown
)

func (s workerState) String() string {
	switch s {
	case stateActive:
		return "active"
	case stateHibernating:
		return "hibernating"
	case stateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// cycle holds the flags and timing shared by all workers.
//
// Deadlines are stored as offsets from base so comparisons use the
// monotonic clock.
type cycle struct {
	base time.Time

	hibernating atomic.Bool
	shutdown    atomic.Bool
	_           cachePad

	epoch    atomic.Uint64
	deadline atomic.Int64 // ns since base
	budget   atomic.Int64 // ns

	// mu serializes flag transitions; workers only read.
	mu sync.Mutex
	// woken is closed by the WakeUp that ends the current epoch.
	woken atomic.Pointer[chan struct{}]
	// done is closed on shutdown.
	done chan struct{}
}

func newCycle() *cycle {
	c := &cycle{base: time.Now(), done: make(chan struct{})}
	ch := make(chan struct{})
	close(ch)
	c.woken.Store(&ch)
	return c
}

func (c *cycle) state() workerState {
	if c.shutdown.Load() {
		return stateShutdown
	}
	if c.hibernating.Load() {
		return stateHibernating
	}
	return stateActive
}

func (c *cycle) now() int64 { return int64(time.Since(c.base)) }

// hibernate publishes the timing for a new epoch and raises the flag.
func (c *cycle) hibernate(deadline time.Time, budget time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown.Load() {
		return
	}
	c.deadline.Store(int64(deadline.Sub(c.base)))
	c.budget.Store(int64(budget))
	if !c.hibernating.Load() {
		ch := make(chan struct{})
		c.woken.Store(&ch)
	}
	c.epoch.Add(1)
	c.hibernating.Store(true)
}

// wake clears the flag. It is a no-op when not hibernating.
func (c *cycle) wake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown.Load() || !c.hibernating.Load() {
		return
	}
	c.hibernating.Store(false)
	close(*c.woken.Load())
}

// stop raises shutdown. It must be called once.
func (c *cycle) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown.Store(true)
	c.hibernating.Store(true)
	close(c.done)
}

// idler is the per-worker half of the hibernate cycle.
type idler struct {
	c      *cycle
	served uint64
	timer  *time.Timer
}

func newIdler(c *cycle) *idler {
	t := time.NewTimer(time.Hour)
	stopAndDrainTimer(t)
	return &idler{c: c, timer: t}
}

// idle runs one HIBERNATING step. It returns early as soon as the worker
// is woken or shut down.
func (w *idler) idle() {
	// epoch before woken: hibernate publishes them in the opposite order
	epoch := w.c.epoch.Load()
	woken := *w.c.woken.Load()
	if epoch == w.served {
		runtime.Gosched()
		return
	}
	w.served = epoch

	deadline := w.c.deadline.Load()
	sleep := time.Duration(min(w.c.budget.Load(), deadline-w.c.now()))
	if sleep > 0 && !w.sleep(sleep, woken) {
		return
	}
	for w.c.state() == stateHibernating && w.c.now() < deadline {
		runtime.Gosched()
	}
}

// sleep blocks for d unless the workers are woken or shut down first.
// It reports whether the full duration elapsed.
func (w *idler) sleep(d time.Duration, woken <-chan struct{}) bool {
	w.timer.Reset(d)
	select {
	case <-w.timer.C:
		return true
	case <-woken:
	case <-w.c.done:
	}
	stopAndDrainTimer(w.timer)
	return false
}

func (w *idler) close() { stopAndDrainTimer(w.timer) }

// stopAndDrainTimer makes t safe for Reset.
func stopAndDrainTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
