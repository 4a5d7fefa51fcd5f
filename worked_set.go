package tickpool

import (
	"sync/atomic"
	"time"
)

// workedSet tracks every job that is queued or running.
//
// It has its own lock so status queries never wait behind dispatch.
// size mirrors len(jobs) for lock-free emptiness checks.
type workedSet struct {
	mu   SpinLock
	jobs map[JobHandle]time.Time // handle -> enqueue time
	size atomic.Int64
}

func newWorkedSet(capacity int) *workedSet {
	return &workedSet{jobs: make(map[JobHandle]time.Time, capacity)}
}

func (w *workedSet) add(h JobHandle, queuedAt time.Time) {
	w.mu.Lock()
	w.jobs[h] = queuedAt
	w.mu.Unlock()
	w.size.Add(1)
}

// remove deletes h and returns its enqueue time.
func (w *workedSet) remove(h JobHandle) (time.Time, bool) {
	w.mu.Lock()
	at, ok := w.jobs[h]
	if ok {
		delete(w.jobs, h)
	}
	w.mu.Unlock()
	if ok {
		w.size.Add(-1)
	}
	return at, ok
}

// containsAny reports whether at least one of hs is still tracked.
func (w *workedSet) containsAny(hs []JobHandle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range hs {
		if _, ok := w.jobs[h]; ok {
			return true
		}
	}
	return false
}

func (w *workedSet) len() int { return int(w.size.Load()) }
