package tickpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tp "github.com/azargarov/tickpool"
	"github.com/azargarov/tickpool/internal/logtest"
)

func TestFillDefaults(t *testing.T) {
	var o tp.Options
	o.FillDefaults()

	if o.Workers <= 0 {
		t.Fatal("expected Workers to be set by FillDefaults")
	}
	if o.QueueCapacity <= 0 {
		t.Fatal("expected QueueCapacity to be set by FillDefaults")
	}
	if o.Metrics == nil {
		t.Fatal("expected Metrics to be set by FillDefaults")
	}
}

func TestSubmit_RunsJobAndAssignsHandles(t *testing.T) {
	s := newTestScheduler(t, newTestOptions(2))

	var ran atomic.Int32
	var handles []tp.JobHandle
	for i := 0; i < 8; i++ {
		h, err := s.Submit(tp.NewJob(func() { ran.Add(1) }))
		require.NoError(t, err)
		require.False(t, h.IsNull())
		if len(handles) > 0 {
			assert.Greater(t, uint64(h), uint64(handles[len(handles)-1]), "handles must increase")
		}
		handles = append(handles, h)
	}

	awaitWithin(t, time.Second, func() { s.AwaitJobs(handles...) })
	assert.Equal(t, int32(8), ran.Load())
	assert.Zero(t, s.Pending())
}

func TestNewExplicitJob_PassesPayload(t *testing.T) {
	s := newTestScheduler(t, newTestOptions(1))

	got := make(chan string, 1)
	h, err := s.Submit(tp.NewExplicitJob(func(name string) { got <- name }, "atlas"))
	require.NoError(t, err)

	s.AwaitJob(h)
	assert.Equal(t, "atlas", <-got)
}

func TestAwaitJob_ReturnsAfterJobLeftWorkedSet(t *testing.T) {
	s := newTestScheduler(t, newTestOptions(2))

	var finished atomic.Bool
	h, err := s.Submit(tp.NewJob(func() {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	}))
	require.NoError(t, err)

	awaitWithin(t, time.Second, func() { s.AwaitJob(h) })
	assert.True(t, finished.Load())
}

func TestAwaitJob_NullAndStaleHandlesReturn(t *testing.T) {
	s := newTestScheduler(t, newTestOptions(1))

	h, err := s.Go(func() {})
	require.NoError(t, err)
	s.AwaitJob(h)

	awaitWithin(t, time.Second, func() {
		s.AwaitJob(tp.NullHandle)
		s.AwaitJob(h)
		s.AwaitJobs()
	})
}

func TestAwaitAll_WaitsForEveryJob(t *testing.T) {
	s := newTestScheduler(t, newTestOptions(4))

	const n = 200
	var ran atomic.Int32
	for i := 0; i < n; i++ {
		_, err := s.Go(func() {
			time.Sleep(100 * time.Microsecond)
			ran.Add(1)
		})
		require.NoError(t, err)
	}

	awaitWithin(t, 5*time.Second, s.AwaitAll)
	assert.Equal(t, int32(n), ran.Load())
	assert.Zero(t, s.Pending())
}

func TestSubmit_ConcurrentProducers(t *testing.T) {
	s := newTestScheduler(t, newTestOptions(3))

	const producers, perProducer = 8, 250
	var ran atomic.Int64
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hs := make([]tp.JobHandle, 0, perProducer)
			for i := 0; i < perProducer; i++ {
				h, err := s.Go(func() { ran.Add(1) })
				if err != nil {
					t.Errorf("submit: %v", err)
					return
				}
				hs = append(hs, h)
			}
			s.AwaitJobs(hs...)
		}()
	}

	awaitWithin(t, 5*time.Second, wg.Wait)
	assert.Equal(t, int64(producers*perProducer), ran.Load())

	st := s.Stats()
	assert.Equal(t, uint64(producers*perProducer), st.Submitted)
	assert.Equal(t, uint64(producers*perProducer), st.Executed)
	assert.Zero(t, st.Queued)
}

func TestSubmit_Rejections(t *testing.T) {
	t.Run("NilJob", func(t *testing.T) {
		s := newTestScheduler(t, newTestOptions(1))

		_, err := s.Submit(nil)
		assert.ErrorIs(t, err, tp.ErrNilFunc)
		_, err = s.Submit(tp.NewJob(nil))
		assert.ErrorIs(t, err, tp.ErrNilFunc)
		_, err = s.Go(nil)
		assert.ErrorIs(t, err, tp.ErrNilFunc)
	})

	t.Run("SubmittedTwice", func(t *testing.T) {
		s := newTestScheduler(t, newTestOptions(1))

		release := make(chan struct{})
		j := tp.NewJob(func() { <-release })
		h, err := s.Submit(j)
		require.NoError(t, err)

		_, err = s.Submit(j)
		assert.ErrorIs(t, err, tp.ErrJobSubmitted)

		close(release)
		awaitWithin(t, time.Second, func() { s.AwaitJob(h) })
	})

	t.Run("SubmittedAfterRun", func(t *testing.T) {
		s := newTestScheduler(t, newTestOptions(1))

		var first, second atomic.Int32
		j1 := tp.NewJob(func() { first.Add(1) })
		h, err := s.Submit(j1)
		require.NoError(t, err)
		awaitWithin(t, time.Second, func() { s.AwaitJob(h) })

		// cycles a pooled node through the free list before j2 is built
		h, err = s.Go(func() {})
		require.NoError(t, err)
		awaitWithin(t, time.Second, func() { s.AwaitJob(h) })

		j2 := tp.NewJob(func() { second.Add(1) })
		_, err = s.Submit(j1)
		assert.ErrorIs(t, err, tp.ErrJobSubmitted)
		assert.Equal(t, h, j1.Handle()+1, "a finished job keeps its handle")

		h, err = s.Submit(j2)
		require.NoError(t, err)
		awaitWithin(t, time.Second, func() { s.AwaitJob(h) })

		assert.Equal(t, int32(1), first.Load())
		assert.Equal(t, int32(1), second.Load())
		waitUntil(t, time.Second, func() bool { return s.Stats().Executed == 3 })
	})

	t.Run("BeforeInit", func(t *testing.T) {
		s := tp.New(newTestOptions(1))

		_, err := s.Go(func() {})
		assert.ErrorIs(t, err, tp.ErrNotInitialized)
		assert.ErrorIs(t, s.Shutdown(context.Background()), tp.ErrNotInitialized)
	})

	t.Run("AfterShutdown", func(t *testing.T) {
		s := newTestScheduler(t, newTestOptions(1))
		require.NoError(t, s.Shutdown(context.Background()))

		_, err := s.Go(func() {})
		assert.ErrorIs(t, err, tp.ErrPoolClosed)
	})
}

func TestInit_SecondCallRefused(t *testing.T) {
	var reported []error
	opts := newTestOptions(1)
	opts.OnInternalError = func(err error) { reported = append(reported, err) }

	s := newTestScheduler(t, opts)

	ctx, logs := logtest.Attach(context.Background())
	err := s.Init(ctx)
	require.ErrorIs(t, err, tp.ErrAlreadyInitialized)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], tp.ErrAlreadyInitialized)

	warns := logs.Find("warn", "scheduler init refused: already initialized")
	require.Len(t, warns, 1)
	workers, ok := warns[0].Field("workers")
	require.True(t, ok)
	assert.Equal(t, int64(1), workers)
	assert.Len(t, logs.Entries(), 1)

	// the first Init is still in effect
	h, err := s.Go(func() {})
	require.NoError(t, err)
	awaitWithin(t, time.Second, func() { s.AwaitJob(h) })
	waitUntil(t, time.Second, func() bool { return s.Stats().Running == 1 })
}

func TestInit_PinnedWorkersStillRun(t *testing.T) {
	opts := newTestOptions(2)
	opts.PinWorkers = true
	opts.OnInternalError = func(err error) {
		// unsupported platforms and restricted cpusets report here; Init must not fail
		t.Logf("pinning: %v", err)
	}

	s := newTestScheduler(t, opts)

	h, err := s.Go(func() {})
	require.NoError(t, err)
	awaitWithin(t, time.Second, func() { s.AwaitJob(h) })
}

func TestHibernate_JobsWaitForWakeUp(t *testing.T) {
	s := newTestScheduler(t, newTestOptions(2))

	s.Hibernate(time.Now().Add(time.Hour), time.Hour)
	require.True(t, s.IsHibernating())
	// let every worker observe the flag
	time.Sleep(10 * time.Millisecond)

	var ran atomic.Bool
	h, err := s.Go(func() { ran.Store(true) })
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.False(t, ran.Load(), "hibernating workers must not pick up jobs")

	s.WakeUp()
	s.WakeUp() // idempotent
	awaitWithin(t, time.Second, func() { s.AwaitJob(h) })
	assert.True(t, ran.Load())
	assert.False(t, s.IsHibernating())
}

func TestHibernate_TickCycle(t *testing.T) {
	s := newTestScheduler(t, newTestOptions(2))

	const tick = 5 * time.Millisecond
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		s.WakeUp()
		h, err := s.Go(func() { ran.Add(1) })
		require.NoError(t, err)
		s.AwaitJob(h)

		next := time.Now().Add(tick)
		s.Hibernate(next, tick*9/10)
		time.Sleep(time.Until(next))
	}
	s.WakeUp()

	assert.Equal(t, int32(10), ran.Load())
}

func TestShutdown_DropsQueuedJobs(t *testing.T) {
	metrics := &tp.AtomicMetrics{}
	opts := newTestOptions(1)
	opts.Metrics = metrics
	s := newTestScheduler(t, opts)

	s.Hibernate(time.Now().Add(time.Hour), time.Hour)
	time.Sleep(10 * time.Millisecond)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		_, err := s.Go(func() { ran.Add(1) })
		require.NoError(t, err)
	}
	require.Equal(t, 5, s.Pending())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	awaitWithin(t, time.Second, s.AwaitAll)
	assert.Zero(t, ran.Load())
	assert.Equal(t, uint64(5), s.Stats().Dropped)
	assert.Equal(t, int64(5), metrics.Dropped())
	assert.Zero(t, s.Stats().Running)
}

func TestShutdown_Timeout(t *testing.T) {
	s := newTestScheduler(t, newTestOptions(1))

	started := make(chan struct{})
	release := make(chan struct{})
	_, err := s.Go(func() {
		close(started)
		<-release
	})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = s.Shutdown(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded; got %v", err)
	}

	close(release)

	// second shutdown waits for the running job
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown failed: %v", err)
	}
	assert.Equal(t, uint64(1), s.Stats().Executed)
}

func TestAtomicMetrics_ObservesExecution(t *testing.T) {
	metrics := &tp.AtomicMetrics{}
	opts := newTestOptions(2)
	opts.Metrics = metrics
	s := newTestScheduler(t, opts)

	for i := 0; i < 10; i++ {
		_, err := s.Go(func() { time.Sleep(time.Millisecond) })
		require.NoError(t, err)
	}
	awaitWithin(t, time.Second, s.AwaitAll)

	assert.Equal(t, uint64(10), metrics.Submitted())
	assert.Equal(t, uint64(10), metrics.Executed())
	assert.GreaterOrEqual(t, int64(metrics.MeanRun()), int64(time.Millisecond))
	assert.GreaterOrEqual(t, int64(metrics.MaxWait()), int64(metrics.MeanWait()))
}
