// Package tickpool provides a job scheduler for fixed-timestep
// applications: a fixed set of workers that pick up short jobs with very
// low latency while a tick is running and stay almost idle between ticks.
//
// Design goals
//
//   - Sub-millisecond pickup of jobs submitted during a tick
//   - Near-zero CPU use between ticks
//   - Handle-based completion tracking without per-job channels
//   - Status queries that never wait behind dispatch
//
// Rather than optimizing for throughput of long-running work, tickpool
// optimizes for many small jobs that must finish within the current tick.
// It is not a general-purpose goroutine pool.
//
// Architecture overview
//
//  1. Jobs
//     A Job wraps a closure (NewJob) or a function plus an explicit
//     argument (NewExplicitJob). Submit takes ownership; the job runs
//     exactly once and its node is recycled through a bounded free list.
//
//  2. Queue and worked set
//     Submitted jobs go into a FIFO ring and into the worked set, each
//     guarded by its own SpinLock. Any active worker may take the head of
//     the ring. A job leaves the worked set only after it has run, which
//     is what AwaitJob, AwaitJobs and AwaitAll poll for.
//
//  3. Hibernate cycle
//     The tick driver calls WakeUp at the start of a tick and
//     Hibernate(deadline, budget) at its end. Active workers spin on the
//     queue. Hibernating workers sleep for roughly budget, then spin until
//     deadline so they are hot again the moment the next tick starts.
//     See workerState for the state machine.
//
// Handles
//
// JobHandle values come from a 64-bit counter and are never reused by a
// Scheduler, so a stale handle cannot alias a newer job.
//
// Error handling
//
// Submit rejects nil jobs, jobs submitted twice and submissions outside
// the Init/Shutdown window. Lifecycle anomalies (a second Init, failed CPU
// pinning) are logged and passed to Options.OnInternalError. Jobs are not
// recovered: a panic in a job is a bug in that job and ends the process.
//
// CPU pinning
//
// Every worker is locked to an OS thread. With Options.PinWorkers on
// Linux, worker i is also restricted to logical CPU i % NumCPU.
//
// The priority-ordered task layer built on top of the Scheduler lives in
// the taskqueue package.
package tickpool
