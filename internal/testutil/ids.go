package testutil

import (
	"fmt"
	"sync"
)

// FixedIDs hands out a fixed list of ids in order, then "<last>-<n>" once
// the list is exhausted. It satisfies catalog.IDGenerator.
//
// Thread-safety: all methods are safe for concurrent use.
type FixedIDs struct {
	mu   sync.Mutex
	ids  []string
	next int
}

// NewFixedIDs creates a generator over ids. With no ids it generates
// "test-id-1", "test-id-2", ...
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Generate returns the next id.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	if g.next <= len(g.ids) {
		return g.ids[g.next-1]
	}
	last := "test-id"
	if len(g.ids) > 0 {
		last = g.ids[len(g.ids)-1]
	}
	return fmt.Sprintf("%s-%d", last, g.next-len(g.ids))
}
