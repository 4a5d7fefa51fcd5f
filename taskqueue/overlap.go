package taskqueue

import (
	"reflect"
	"sync"
)

// Conflict records two tasks of one band claiming the same region.
type Conflict struct {
	Region any
	Band   Priority
}

type overlapGuard struct {
	mu        sync.Mutex
	band      Priority
	claims    map[any]struct{}
	conflicts []Conflict
}

func newOverlapGuard() *overlapGuard {
	return &overlapGuard{claims: make(map[any]struct{})}
}

// enter starts a new band. Claims from earlier bands no longer conflict.
func (g *overlapGuard) enter(p Priority) {
	g.mu.Lock()
	g.band = p
	clear(g.claims)
	g.mu.Unlock()
}

// claim records region for the current band. A region that cannot be a map
// key is recorded as a conflict and never stored.
func (g *overlapGuard) claim(region any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !hashable(region) {
		g.conflicts = append(g.conflicts, Conflict{Region: region, Band: g.band})
		return false
	}
	if _, taken := g.claims[region]; taken {
		g.conflicts = append(g.conflicts, Conflict{Region: region, Band: g.band})
		return false
	}
	g.claims[region] = struct{}{}
	return true
}

func (g *overlapGuard) snapshot() []Conflict {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Conflict(nil), g.conflicts...)
}

func (g *overlapGuard) reset() {
	g.mu.Lock()
	clear(g.claims)
	g.conflicts = g.conflicts[:0]
	g.mu.Unlock()
}

func hashable(region any) bool {
	return region == nil || reflect.ValueOf(region).Comparable()
}
