package stats

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Node is one named counter group inside a statistics tree. The indices taken
// by CounterName, Valid and Get are absolute positions in the node's arena;
// a node answers only for [Offset(), Offset()+GroupSize()).
type Node interface {
	Name() string
	GroupSize() int
	Offset() int
	Parent() Node
	Arena() *Arena

	CounterName(index int) string
	Valid(index int) bool
	Get(index int) int64

	// Children are the structural members laid out in the node's arena.
	Children() []Node
	// Branches are clones created off this node; they own their arena and
	// are linked by identity only.
	Branches() []Node
	AddBranch(child Node)
	RemoveBranch(child Node)

	// Clone returns a detached copy with the same shape and zero counters.
	Clone(name string) Node
	// Mount places the node at offset inside arena under parent.
	Mount(parent Node, offset int, arena *Arena)
}

type placement struct {
	parent Node
	offset int
	arena  *Arena
}

var detached = &placement{}

// Group is a leaf node owning a fixed list of named counters. Types that add
// behaviour embed Group and call Init.
type Group struct {
	name    string
	names   []string
	place   atomic.Pointer[placement]
	touched atomic.Int64

	mu       sync.RWMutex
	branches []Node
}

// NewGroup returns a detached group owning one counter per name.
func NewGroup(name string, counters ...string) *Group {
	g := &Group{}
	g.Init(name, counters...)
	return g
}

// Init sets the name and counter layout of an embedded group.
func (g *Group) Init(name string, counters ...string) {
	g.name = name
	g.names = slices.Clone(counters)
	g.place.Store(detached)
}

func (g *Group) loc() *placement {
	if p := g.place.Load(); p != nil {
		return p
	}
	return detached
}

func (g *Group) Name() string   { return g.name }
func (g *Group) GroupSize() int { return len(g.names) }
func (g *Group) Offset() int    { return g.loc().offset }
func (g *Group) Parent() Node   { return g.loc().parent }
func (g *Group) Arena() *Arena  { return g.loc().arena }

// CounterNames returns the counter names in slot order.
func (g *Group) CounterNames() []string {
	return slices.Clone(g.names)
}

// Mount places the group at offset inside arena under parent.
func (g *Group) Mount(parent Node, offset int, arena *Arena) {
	g.place.Store(&placement{parent: parent, offset: offset, arena: arena})
}

func (g *Group) inRange(index int) bool {
	p := g.loc()
	return index >= p.offset && index < p.offset+len(g.names) && index < p.arena.Len()
}

func (g *Group) CounterName(index int) string {
	if !g.inRange(index) {
		return ""
	}
	return g.names[index-g.Offset()]
}

func (g *Group) Valid(index int) bool {
	return g.inRange(index)
}

func (g *Group) Get(index int) int64 {
	if !g.inRange(index) {
		return 0
	}
	return g.Arena().Load(index)
}

// Value reads the counter at slot, relative to the group offset.
func (g *Group) Value(slot int) int64 {
	if slot < 0 || slot >= len(g.names) {
		return 0
	}
	return g.Get(g.Offset() + slot)
}

// Add atomically adds delta to the counter at slot and marks the group as
// touched.
func (g *Group) Add(slot int, delta int64) {
	if slot < 0 || slot >= len(g.names) {
		return
	}
	p := g.loc()
	p.arena.Add(p.offset+slot, delta)
	g.Touch()
}

// Touch records now as the last time the group changed.
func (g *Group) Touch() {
	g.touched.Store(time.Now().UnixNano())
}

// LastTouched returns when the group last changed, zero if never.
func (g *Group) LastTouched() time.Time {
	ns := g.touched.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (g *Group) Children() []Node { return nil }

func (g *Group) Branches() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.branches)
}

func (g *Group) AddBranch(child Node) {
	if child == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.branches = append(g.branches, child)
}

func (g *Group) RemoveBranch(child Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.branches = slices.DeleteFunc(g.branches, func(n Node) bool { return n == child })
}

func (g *Group) Clone(name string) Node {
	return NewGroup(name, g.names...)
}
