package stats

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// NewTree makes root the top of a tree, allocating an arena sized to its
// group and laying out every descendant.
func NewTree(root Node) Node {
	root.Mount(nil, 0, NewArena(root.GroupSize()))
	return root
}

// CreateChild clones n under a new name. The clone is the root of its own
// arena at offset zero, so it never shares storage with another node.
//
// The clone's parent is ctx, or n when ctx is nil; rollups from the clone
// reach that lineage, and the clone is listed among the parent's branches.
func CreateChild(ctx Node, n Node, name string) Node {
	parent := n
	if ctx != nil {
		parent = ctx
	}
	child := n.Clone(name)
	child.Mount(parent, 0, NewArena(child.GroupSize()))
	parent.AddBranch(child)
	return child
}

// Release unlinks a branch from its parent.
func Release(n Node) {
	if n == nil {
		return
	}
	if parent := n.Parent(); parent != nil {
		parent.RemoveBranch(n)
	}
}

// Walk visits n, then its structural children, then its branches,
// depth first. path holds the names from the walk root down to the node.
func Walk(n Node, fn func(path []string, node Node)) {
	walk(nil, n, fn)
}

func walk(prefix []string, n Node, fn func([]string, Node)) {
	if n == nil {
		return
	}
	path := append(prefix[:len(prefix):len(prefix)], n.Name())
	fn(path, n)
	for _, child := range n.Children() {
		walk(path, child, fn)
	}
	for _, branch := range n.Branches() {
		walk(path, branch, fn)
	}
}

// Counters returns the valid counters owned directly by a leaf node, keyed by
// counter name. Composite nodes return nothing; their children are walked.
func Counters(n Node) map[string]int64 {
	if len(n.Children()) > 0 {
		return nil
	}
	var out map[string]int64
	for i := n.Offset(); i < n.Offset()+n.GroupSize(); i++ {
		if !n.Valid(i) {
			continue
		}
		if out == nil {
			out = make(map[string]int64, n.GroupSize())
		}
		out[n.CounterName(i)] = n.Get(i)
	}
	return out
}

// Dump writes one line per valid counter in the tree rooted at n:
//
//	router.calls call 3
func Dump(w io.Writer, n Node) error {
	var err error
	Walk(n, func(path []string, node Node) {
		if err != nil || len(node.Children()) > 0 {
			return
		}
		name := strings.Join(path, ".")
		for i := node.Offset(); i < node.Offset()+node.GroupSize(); i++ {
			if !node.Valid(i) {
				continue
			}
			if _, err = fmt.Fprintf(w, "%s %s %d\n", name, node.CounterName(i), node.Get(i)); err != nil {
				return
			}
		}
		if timed, ok := node.(Timed); ok {
			d := timed.Durations()
			if d.Count == 0 {
				return
			}
			_, err = fmt.Fprintf(w, "%s duration count=%d min=%s max=%s mean=%s\n",
				name, d.Count, time.Duration(d.Min), time.Duration(d.Max), d.Mean())
		}
	})
	return err
}

// NodeSnapshot is a serialisable view of one node and its subtree.
type NodeSnapshot struct {
	Name      string           `json:"name"`
	Counters  map[string]int64 `json:"counters,omitempty"`
	Durations *TimingSnapshot  `json:"durations,omitempty"`
	Children  []NodeSnapshot   `json:"children,omitempty"`
	Branches  []NodeSnapshot   `json:"branches,omitempty"`
}

// Snapshot captures n and everything below it.
func Snapshot(n Node) NodeSnapshot {
	snap := NodeSnapshot{Name: n.Name(), Counters: Counters(n)}
	if timed, ok := n.(Timed); ok {
		if d := timed.Durations(); d.Count > 0 {
			snap.Durations = &d
		}
	}
	for _, child := range n.Children() {
		snap.Children = append(snap.Children, Snapshot(child))
	}
	for _, branch := range n.Branches() {
		snap.Branches = append(snap.Branches, Snapshot(branch))
	}
	return snap
}
