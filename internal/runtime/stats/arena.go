// Package stats implements composable counter groups that share one counter
// array per tree. A group owns a fixed number of counters at an offset into
// the arena of its tree root; composite groups lay their children out
// left to right so a whole subtree can be moved by changing one offset.
//
// Every accessor is best effort: out-of-range indices read as zero and
// writes to them are dropped, so statistics can never fail the protocol path.
package stats

import "sync/atomic"

// Arena is the counter storage shared by all nodes mounted in one tree. Only
// a tree root allocates an arena; every descendant references it by offset.
type Arena struct {
	values []atomic.Int64
}

// NewArena allocates an arena holding size counters.
func NewArena(size int) *Arena {
	if size < 0 {
		size = 0
	}
	return &Arena{values: make([]atomic.Int64, size)}
}

// Len returns the number of counters in the arena.
func (a *Arena) Len() int {
	if a == nil {
		return 0
	}
	return len(a.values)
}

// Add atomically adds delta to the counter at index and returns the new value.
func (a *Arena) Add(index int, delta int64) int64 {
	if !a.contains(index) {
		return 0
	}
	return a.values[index].Add(delta)
}

// Load returns the counter at index.
func (a *Arena) Load(index int) int64 {
	if !a.contains(index) {
		return 0
	}
	return a.values[index].Load()
}

// Store overwrites the counter at index.
func (a *Arena) Store(index int, value int64) {
	if !a.contains(index) {
		return
	}
	a.values[index].Store(value)
}

func (a *Arena) contains(index int) bool {
	return a != nil && index >= 0 && index < len(a.values)
}
