package taskqueue_test

import (
	"bytes"
	"context"
	"runtime"
	"strconv"
	"sync"
	"testing"

	"github.com/azargarov/tickpool"
)

func newTestScheduler(t *testing.T, workers int) *tickpool.Scheduler {
	t.Helper()

	s := tickpool.New(tickpool.Options{Workers: workers, QueueCapacity: 16})
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

// goroutineID parses the id from the current goroutine's stack header.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	b = b[:bytes.IndexByte(b, ' ')]
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// eventLog records task start and end events from any goroutine.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(ev string) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) index(ev string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.events {
		if e == ev {
			return i
		}
	}
	return -1
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// resource is the shared state the test tasks work on.
type resource struct {
	mu    sync.Mutex
	cells map[string]int
}

func newResource() *resource { return &resource{cells: make(map[string]int)} }

func (r *resource) set(k string, v int) {
	r.mu.Lock()
	r.cells[k] = v
	r.mu.Unlock()
}

// refusingExecutor rejects every job.
type refusingExecutor struct{ calls int }

func (e *refusingExecutor) Submit(*tickpool.Job) (tickpool.JobHandle, error) {
	e.calls++
	return tickpool.NullHandle, tickpool.ErrPoolClosed
}

func (e *refusingExecutor) AwaitJobs(...tickpool.JobHandle) {}
