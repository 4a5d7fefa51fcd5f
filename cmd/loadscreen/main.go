// cmd/loadscreen renders a loading screen while a level is built by a
// priority task queue on a tickpool scheduler, one band per tick.
//
// Usage:
//
//	loadscreen [-config base.toml] [-config local.yaml] [-name level] 2>loadscreen.log
//
// Logs go to stderr; redirect them to keep the screen clean.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/azargarov/tickpool"
	"github.com/azargarov/tickpool/internal/config"
	tq "github.com/azargarov/tickpool/taskqueue"
)

// configFiles collects repeated -config flags.
type configFiles []string

func (c *configFiles) String() string     { return strings.Join(*c, ",") }
func (c *configFiles) Set(v string) error { *c = append(*c, v); return nil }

func main() {
	var files configFiles
	flag.Var(&files, "config", "configuration file (TOML or YAML); repeatable, later files win")
	name := flag.String("name", "overworld", "level name")
	flag.Parse()

	if err := run(files, *name); err != nil {
		fmt.Fprintf(os.Stderr, "loadscreen: %v\n", err)
		os.Exit(1)
	}
}

func run(files []string, name string) error {
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	work, err := cfg.Demo.WorkDuration()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sched := tickpool.New(cfg.SchedulerOptions())
	if err := sched.Init(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	q := tq.New[level](sched, tq.WithContext(ctx), tq.WithOverlapCheck())
	if err := registerLevel(q, name, cfg.Demo.Assets, work); err != nil {
		return fmt.Errorf("register level: %w", err)
	}

	p := tea.NewProgram(newModel(name, cancel))
	go func() {
		p.Send(load(ctx, cfg, sched, q, name, p.Send))
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// load drains q, one step per tick, and reports progress through send.
func load(ctx context.Context, cfg *config.Config, sched *tickpool.Scheduler, q *tq.Queue[level], name string, send func(tea.Msg)) doneMsg {
	var lvl level
	start := time.Now()

	driver := cfg.Driver(sched)
	err := driver.Run(ctx, func(n uint64) bool {
		band := ""
		if cur, ok := q.Current(); ok {
			band = cur.String()
		}
		var done bool
		if cfg.Demo.Mixed {
			done = q.StepMixed(&lvl)
		} else {
			done = q.Step(&lvl)
		}
		send(stepMsg{tick: n, progress: q.Progress(), band: band})
		return !done
	})
	if errors.Is(err, context.Canceled) {
		err = errors.New("interrupted")
	}

	logger := lg.FromContext(ctx).With(lg.String("level", name))
	if conflicts := q.Conflicts(); len(conflicts) > 0 {
		logger.Warn("level tasks overlapped", lg.Int("conflicts", len(conflicts)))
	}
	logger.Info("level loaded",
		lg.Any("elapsed", time.Since(start)),
		lg.Int("tasks", q.Len()),
		lg.Any("progress", q.Progress()))

	return doneMsg{
		elapsed: time.Since(start),
		stats:   sched.Stats(),
		level:   &lvl,
		err:     err,
	}
}
