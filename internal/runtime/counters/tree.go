package counters

import (
	"io"

	"github.com/drblury/protowamp/internal/runtime/stats"
)

// Tree is a statistics root for the router or one of its sessions.
//
// The router tree lays its four groups out in one shared arena. A session
// tree made by Branch holds clones of those groups, each with a private
// arena and the router group as parent, so session events roll up into the
// router totals and the session stays reachable from router dumps.
type Tree struct {
	name     string
	root     *stats.Composite
	parent   *Tree
	Messages *MessageCounters
	Calls    *CallCounters
	NotFound *CallCounters
	Auth     *AuthCounters
}

// NewTree returns a router statistics tree.
func NewTree(name string) *Tree {
	t := &Tree{
		name:     name,
		Messages: NewMessageCounters("messages"),
		Calls:    NewCallCounters("calls"),
		NotFound: NewCallCounters("not_found"),
		Auth:     NewAuthCounters("auth"),
	}
	t.root = stats.NewComposite(name, t.Messages, t.Calls, t.NotFound, t.Auth)
	stats.NewTree(t.root)
	return t
}

// Branch returns a session tree whose groups roll up into t.
func (t *Tree) Branch(name string) *Tree {
	return &Tree{
		name:     name,
		parent:   t,
		Messages: stats.CreateChild(nil, t.Messages, name).(*MessageCounters),
		Calls:    stats.CreateChild(nil, t.Calls, name).(*CallCounters),
		NotFound: stats.CreateChild(nil, t.NotFound, name).(*CallCounters),
		Auth:     stats.CreateChild(nil, t.Auth, name).(*AuthCounters),
	}
}

// Release unlinks a session tree from its router tree. Totals already rolled
// up stay in the router.
func (t *Tree) Release() {
	if t == nil || t.parent == nil {
		return
	}
	for _, n := range t.Nodes() {
		stats.Release(n)
	}
}

func (t *Tree) Name() string { return t.name }

// Root returns the router composite, nil for a session tree.
func (t *Tree) Root() stats.Node {
	if t.root == nil {
		return nil
	}
	return t.root
}

// Nodes returns the four top-level groups.
func (t *Tree) Nodes() []stats.Node {
	return []stats.Node{t.Messages, t.Calls, t.NotFound, t.Auth}
}

// Snapshot captures the whole tree.
func (t *Tree) Snapshot() stats.NodeSnapshot {
	if t.root != nil {
		return stats.Snapshot(t.root)
	}
	snap := stats.NodeSnapshot{Name: t.name}
	for _, n := range t.Nodes() {
		snap.Children = append(snap.Children, stats.Snapshot(n))
	}
	return snap
}

// Dump writes the text form of the tree.
func (t *Tree) Dump(w io.Writer) error {
	if t.root != nil {
		return stats.Dump(w, t.root)
	}
	for _, n := range t.Nodes() {
		if err := stats.Dump(w, n); err != nil {
			return err
		}
	}
	return nil
}
