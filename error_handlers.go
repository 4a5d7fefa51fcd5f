package tickpool

import (
	"errors"
)

var (
	// ErrNilFunc is returned when a submitted Job has no function to run.
	ErrNilFunc = errors.New("tickpool: job func is nil")

	// ErrJobSubmitted is returned when a Job is submitted a second time.
	ErrJobSubmitted = errors.New("tickpool: job already submitted")

	// ErrNotInitialized is returned by Submit and Shutdown before Init.
	ErrNotInitialized = errors.New("tickpool: scheduler not initialized")

	// ErrAlreadyInitialized is returned by every Init after the first.
	ErrAlreadyInitialized = errors.New("tickpool: scheduler already initialized")

	// ErrPoolClosed is returned by Submit after Shutdown.
	ErrPoolClosed = errors.New("tickpool: scheduler closed")

	// ErrPinUnsupported is reported when worker pinning is requested on a
	// platform without thread affinity support.
	ErrPinUnsupported = errors.New("tickpool: cpu pinning not supported on this platform")
)

// reportInternalError reports a lifecycle anomaly.
//
// If no handler is registered, the error is only logged by the caller.
func (s *Scheduler) reportInternalError(e error) {
	if s.opts.OnInternalError != nil {
		s.opts.OnInternalError(e)
	}
}
