// Package tick drives a fixed-timestep loop and keeps a worker pool in step
// with it: the pool is woken at the start of every tick and sent to
// hibernate at the end, with a sleep budget sized to the idle time left
// before the next tick.
package tick

import (
	"context"
	"errors"
	"runtime"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
)

// DefaultSleepFraction is the share of a tick the driver and the pool may
// spend asleep. The rest is spun to hit the tick boundary precisely.
const DefaultSleepFraction = 0.9

// ErrInvalidRate is returned by Run when Rate is not positive.
var ErrInvalidRate = errors.New("tick: rate must be positive")

// Pool is the part of a worker pool the driver controls.
// *tickpool.Scheduler implements it.
type Pool interface {
	WakeUp()
	Hibernate(deadline time.Time, budget time.Duration)
}

// Driver runs fn once per tick at Rate ticks per second.
type Driver struct {
	// Rate is the number of ticks per second.
	Rate int

	// SleepFraction of each tick may be slept; the remainder is spun.
	// Values outside (0, 1] fall back to DefaultSleepFraction.
	SleepFraction float64

	// Pool, when set, is woken before fn and hibernated after it.
	Pool Pool
}

// Period returns the duration of one tick.
func (d *Driver) Period() time.Duration {
	if d.Rate <= 0 {
		return 0
	}
	return time.Second / time.Duration(d.Rate)
}

func (d *Driver) sleepFraction() float64 {
	if d.SleepFraction <= 0 || d.SleepFraction > 1 {
		return DefaultSleepFraction
	}
	return d.SleepFraction
}

// Run calls fn with an increasing tick number until fn returns false or
// ctx is done. A tick that overruns its period is logged and the schedule
// restarts from the current time instead of trying to catch up.
//
// Run returns nil when fn stops the loop and ctx.Err() on cancellation.
func (d *Driver) Run(ctx context.Context, fn func(tick uint64) bool) error {
	period := d.Period()
	if period <= 0 {
		return ErrInvalidRate
	}
	wait := time.Duration(float64(period) * d.sleepFraction())
	logger := lg.FromContext(ctx)

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer stopTimer(timer)

	for n := uint64(0); ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		if d.Pool != nil {
			d.Pool.WakeUp()
		}
		if !fn(n) {
			return nil
		}

		elapsed := time.Since(start)
		next := start.Add(period)
		if elapsed > period {
			logger.Warn("tick overran its period",
				lg.Any("tick", n),
				lg.Any("elapsed", elapsed),
				lg.Any("period", period))
			next = time.Now()
		}

		budget := wait - elapsed
		if budget < 0 {
			budget = 0
		}
		if d.Pool != nil {
			d.Pool.Hibernate(next, budget)
		}
		if err := waitUntil(ctx, timer, next, budget); err != nil {
			return err
		}
	}
}

// waitUntil sleeps for budget, then spins until deadline.
func waitUntil(ctx context.Context, timer *time.Timer, deadline time.Time, budget time.Duration) error {
	if rem := time.Until(deadline); budget > rem {
		budget = rem
	}
	if budget > 0 {
		timer.Reset(budget)
		select {
		case <-timer.C:
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()
		}
	}
	for time.Now().Before(deadline) {
		runtime.Gosched()
	}
	return nil
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
