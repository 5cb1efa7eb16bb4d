package stats

import (
	"slices"
	"sync"
)

// Composite owns no counters of its own; its group size is the sum of its
// children, which are laid out contiguously from the composite's offset.
type Composite struct {
	Group

	cmu      sync.RWMutex
	children []Node
}

// NewComposite returns a detached composite holding children in order.
func NewComposite(name string, children ...Node) *Composite {
	c := &Composite{}
	c.Group.Init(name)
	c.SetChildren(children...)
	return c
}

// SetChildren replaces the children and recomputes their offsets as the
// running sum of the preceding sizes, starting at the composite's offset.
func (c *Composite) SetChildren(nodes ...Node) {
	c.cmu.Lock()
	c.children = slices.DeleteFunc(slices.Clone(nodes), func(n Node) bool { return n == nil })
	c.cmu.Unlock()
	c.layout()
}

func (c *Composite) layout() {
	offset := c.Offset()
	arena := c.Arena()
	for _, child := range c.Children() {
		child.Mount(c, offset, arena)
		offset += child.GroupSize()
	}
}

// Mount moves the composite and every descendant.
func (c *Composite) Mount(parent Node, offset int, arena *Arena) {
	c.Group.Mount(parent, offset, arena)
	c.layout()
}

func (c *Composite) GroupSize() int {
	size := 0
	for _, child := range c.Children() {
		size += child.GroupSize()
	}
	return size
}

func (c *Composite) Children() []Node {
	c.cmu.RLock()
	defer c.cmu.RUnlock()
	return slices.Clone(c.children)
}

// owner returns the child whose range holds index.
func (c *Composite) owner(index int) Node {
	for _, child := range c.Children() {
		start := child.Offset()
		if index >= start && index < start+child.GroupSize() {
			return child
		}
	}
	return nil
}

func (c *Composite) CounterName(index int) string {
	if child := c.owner(index); child != nil {
		return child.CounterName(index)
	}
	return ""
}

func (c *Composite) Valid(index int) bool {
	child := c.owner(index)
	return child != nil && child.Valid(index)
}

func (c *Composite) Get(index int) int64 {
	if child := c.owner(index); child != nil {
		return child.Get(index)
	}
	return 0
}

func (c *Composite) Clone(name string) Node {
	children := c.Children()
	clones := make([]Node, 0, len(children))
	for _, child := range children {
		clones = append(clones, child.Clone(child.Name()))
	}
	return NewComposite(name, clones...)
}
