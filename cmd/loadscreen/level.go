package main

import (
	"hash/fnv"
	"strconv"
	"time"

	tq "github.com/azargarov/tickpool/taskqueue"
)

const chunkSize = 4096

// level is the resource the loading batch builds. Tasks of one band write
// disjoint entries of it.
type level struct {
	name     string
	chunks   [][]byte
	props    []int
	textures []uint32
	navNodes int
}

// registerLevel queues the synthetic loading batch for n assets, each
// costing roughly work.
func registerLevel(q *tq.Queue[level], name string, n int, work time.Duration) error {
	reg := func(fn func(*level), prio tq.Priority, aff tq.Affinity, impact int) error {
		return q.RegisterFunc(fn, prio, aff, impact)
	}

	// sizes everything before any other band touches the level
	if err := reg(func(l *level) {
		l.name = name
		l.chunks = make([][]byte, n)
		l.props = make([]int, n)
		l.textures = make([]uint32, n)
	}, tq.PriorityInstant, tq.MainThread, 1); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		if err := reg(func(l *level) {
			q.Claim("chunk/" + strconv.Itoa(i))
			buf := make([]byte, chunkSize)
			for j := range buf {
				buf[j] = byte(i*31 + j)
			}
			busy(work)
			l.chunks[i] = buf
		}, tq.PriorityCritical, tq.AnyThread, 3); err != nil {
			return err
		}
	}

	// textures hash their chunk; uploads stay on the driving goroutine
	for i := 0; i < n; i++ {
		if err := reg(func(l *level) {
			q.Claim("texture/" + strconv.Itoa(i))
			h := fnv.New32a()
			_, _ = h.Write(l.chunks[i])
			l.textures[i] = h.Sum32()
		}, tq.PriorityHigh, tq.MainThread, 1); err != nil {
			return err
		}
	}

	for i := 0; i < n; i++ {
		if err := reg(func(l *level) {
			q.Claim("props/" + strconv.Itoa(i))
			busy(work / 2)
			l.props[i] = int(l.chunks[i][0]) % 7
		}, tq.PriorityMedium, tq.AnyThread, 2); err != nil {
			return err
		}
	}

	return reg(func(l *level) {
		nodes := 0
		for _, p := range l.props {
			nodes += p + 1
		}
		busy(work)
		l.navNodes = nodes
	}, tq.PriorityLow, tq.MainThread, n/4+1)
}

// busy keeps the calling goroutine occupied for about d, like real decode
// work would.
func busy(d time.Duration) {
	if d <= 0 {
		return
	}
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}
