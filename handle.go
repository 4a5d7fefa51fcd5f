package tickpool

import (
	"strconv"
	"sync/atomic"
)

// JobHandle identifies a submitted Job while it is queued or running.
//
// Handles come from a 64-bit counter owned by the Scheduler and are never
// reused within its lifetime, so awaiting a stale handle simply returns.
type JobHandle uint64

// NullHandle is never assigned to a submitted job.
const NullHandle JobHandle = 0

// IsNull reports whether h is the null handle.
func (h JobHandle) IsNull() bool { return h == NullHandle }

func (h JobHandle) String() string {
	if h == NullHandle {
		return "job(null)"
	}
	return "job(" + strconv.FormatUint(uint64(h), 10) + ")"
}

// handleCounter hands out handles starting at 1.
type handleCounter struct {
	last atomic.Uint64
}

func (c *handleCounter) next() JobHandle {
	return JobHandle(c.last.Add(1))
}
