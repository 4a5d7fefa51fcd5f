package tickpool_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	tp "github.com/azargarov/tickpool"
)

func newTestOptions(workers int) tp.Options {
	return tp.Options{
		Workers:       workers,
		QueueCapacity: 16,
	}
}

func newTestScheduler(t *testing.T, opts tp.Options) *tp.Scheduler {
	t.Helper()

	s := tp.New(opts)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
	}
	t.Fatal("condition not satisfied before timeout")
}

// awaitWithin runs fn and fails the test if it does not return in time.
func awaitWithin(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("did not return within %s", timeout)
	}
}
