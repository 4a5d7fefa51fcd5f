package tickpool

import (
	"runtime"
	"sync/atomic"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	"golang.org/x/sys/cpu"
)

type cachePad = cpu.CacheLinePad

const (
	spinBackoffInitial = 2 * time.Microsecond
	spinBackoffMax     = 200 * time.Microsecond

	// yields before the lock starts sleeping between attempts
	spinYieldRounds = 16
)

// SpinLock is a test-and-test-and-set lock for very short critical sections.
//
// Lock first spins on the flag, then yields the processor, and only under
// sustained contention falls back to short jittered sleeps. The zero value
// is an unlocked lock. SpinLock satisfies sync.Locker.
type SpinLock struct {
	locked atomic.Bool
	_      cachePad
}

// TryLock acquires the lock if it is free and reports whether it did.
func (l *SpinLock) TryLock() bool {
	return !l.locked.Load() && l.locked.CompareAndSwap(false, true)
}

// Lock acquires the lock, waiting as long as needed.
func (l *SpinLock) Lock() {
	for i := 0; i < DefaultSpinBudget; i++ {
		if l.TryLock() {
			return
		}
	}
	for i := 0; i < spinYieldRounds; i++ {
		runtime.Gosched()
		if l.TryLock() {
			return
		}
	}
	l.lockSlow()
}

func (l *SpinLock) lockSlow() {
	bo := boff.New(spinBackoffInitial, spinBackoffMax, time.Now().UnixNano())
	for !l.TryLock() {
		time.Sleep(bo.Next())
	}
}

// Unlock releases the lock. Unlocking an unlocked SpinLock is a bug and
// is not detected.
func (l *SpinLock) Unlock() {
	l.locked.Store(false)
}
