package tickpool

import (
	"testing"
	"time"
)

func TestCycleStates(t *testing.T) {
	c := newCycle()
	if c.state() != stateActive {
		t.Fatalf("new cycle: got %s", c.state())
	}

	c.hibernate(time.Now().Add(time.Second), time.Millisecond)
	if c.state() != stateHibernating {
		t.Fatalf("after hibernate: got %s", c.state())
	}

	c.wake()
	c.wake()
	if c.state() != stateActive {
		t.Fatalf("after wake: got %s", c.state())
	}

	c.stop()
	if c.state() != stateShutdown {
		t.Fatalf("after stop: got %s", c.state())
	}

	// no transitions after shutdown
	c.wake()
	c.hibernate(time.Now(), 0)
	if c.state() != stateShutdown {
		t.Fatalf("after stop and wake: got %s", c.state())
	}
}

func TestIdler_SleepsThenSpinsToDeadline(t *testing.T) {
	c := newCycle()
	w := newIdler(c)
	defer w.close()

	const window = 30 * time.Millisecond
	start := time.Now()
	c.hibernate(start.Add(window), window/2)

	w.idle()
	elapsed := time.Since(start)
	if elapsed < window {
		t.Fatalf("idle returned before the deadline: %s", elapsed)
	}
	if elapsed > time.Second {
		t.Fatalf("idle overslept: %s", elapsed)
	}

	// the epoch is served; further idles only yield
	start = time.Now()
	w.idle()
	if d := time.Since(start); d > 10*time.Millisecond {
		t.Fatalf("second idle in the same epoch took %s", d)
	}
}

func TestIdler_BudgetCappedByDeadline(t *testing.T) {
	c := newCycle()
	w := newIdler(c)
	defer w.close()

	start := time.Now()
	c.hibernate(start.Add(10*time.Millisecond), time.Hour)

	w.idle()
	if d := time.Since(start); d > 500*time.Millisecond {
		t.Fatalf("sleep was not capped by the deadline: %s", d)
	}
}

func TestIdler_WakeAndStopInterruptSleep(t *testing.T) {
	cases := []struct {
		name      string
		interrupt func(c *cycle)
	}{
		{"wake", func(c *cycle) { c.wake() }},
		{"stop", func(c *cycle) { c.stop() }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newCycle()
			w := newIdler(c)
			defer w.close()

			c.hibernate(time.Now().Add(time.Hour), time.Hour)
			go func() {
				time.Sleep(20 * time.Millisecond)
				tc.interrupt(c)
			}()

			start := time.Now()
			w.idle()
			if d := time.Since(start); d > 2*time.Second {
				t.Fatalf("idle was not interrupted: %s", d)
			}
		})
	}
}
