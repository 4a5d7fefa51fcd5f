// Package taskqueue runs a batch of heterogeneous tasks over one shared
// resource in priority order, reporting weighted progress as it goes.
//
// A Queue[T] is filled during setup with Register, then driven from a
// single goroutine (usually the main loop, once per tick) with Step or
// StepMixed until it reports done:
//
//	q := taskqueue.New[World](sched)
//	q.RegisterFunc(loadTerrain, taskqueue.PriorityCritical, taskqueue.AnyThread, 40)
//	q.RegisterFunc(uploadTextures, taskqueue.PriorityHigh, taskqueue.MainThread, 10)
//	for !q.StepMixed(&world) {
//		render(q.Progress())
//	}
//
// Bands
//
// Each call drains exactly one non-empty band, highest first. No task of a
// lower band starts before every task of the current band has returned.
// PriorityInstant is special: it drains on the first call, inline and in
// registration order, whatever the affinity.
//
// Affinity
//
// MainThread tasks always run on the goroutine that calls Step. AnyThread
// tasks become tickpool jobs and may run on any worker. With a nil
// Executor, or when the executor refuses a job, they run inline too.
//
// Caller contract
//
// The queue never locks the resource. Tasks of one band may run at the
// same time, so they must touch disjoint parts of it or synchronize
// themselves. WithOverlapCheck together with Claim detects violations in
// tests.
package taskqueue
