// Package counters provides the protocol-typed counter groups built on the
// stats tree. Every event is counted on the group it was recorded on and then
// repeated on the nearest ancestor of the same kind, so totals roll up from
// per-procedure branches to the session and the router without the callers
// keeping parallel sums.
package counters

import (
	"time"

	"github.com/drblury/protowamp/internal/runtime/stats"
)

const (
	slotCall = iota
	slotCancel
	slotError
)

var callCounterNames = []string{"call", "cancel", "error"}

// CallCounters counts calls, cancellations and errors and accumulates call
// durations. All methods are safe on a nil receiver.
type CallCounters struct {
	stats.Group
	stats.Timing
}

// NewCallCounters returns a detached call counter group.
func NewCallCounters(name string) *CallCounters {
	c := &CallCounters{}
	c.Group.Init(name, callCounterNames...)
	return c
}

// OnCall counts an issued call.
func (c *CallCounters) OnCall() {
	if c == nil {
		return
	}
	c.Add(slotCall, 1)
	if parent, ok := nearest[*CallCounters](c); ok {
		parent.OnCall()
	}
}

// OnCancel counts a call cancellation.
func (c *CallCounters) OnCancel() {
	if c == nil {
		return
	}
	c.Add(slotCancel, 1)
	if parent, ok := nearest[*CallCounters](c); ok {
		parent.OnCancel()
	}
}

// OnError counts a call that ended in an ERROR or failed to send.
func (c *CallCounters) OnError() {
	if c == nil {
		return
	}
	c.Add(slotError, 1)
	if parent, ok := nearest[*CallCounters](c); ok {
		parent.OnError()
	}
}

// OnDuration records how long a call took.
func (c *CallCounters) OnDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.Observe(d)
	c.Touch()
	if parent, ok := nearest[*CallCounters](c); ok {
		parent.OnDuration(d)
	}
}

// Calls returns the number of issued calls.
func (c *CallCounters) Calls() int64 {
	if c == nil {
		return 0
	}
	return c.Value(slotCall)
}

// Cancels returns the number of cancellations.
func (c *CallCounters) Cancels() int64 {
	if c == nil {
		return 0
	}
	return c.Value(slotCancel)
}

// Errors returns the number of failed calls.
func (c *CallCounters) Errors() int64 {
	if c == nil {
		return 0
	}
	return c.Value(slotError)
}

// Valid hides the group from dumps until it has seen a call.
func (c *CallCounters) Valid(index int) bool {
	return c.Group.Valid(index) && c.Calls() > 0
}

// Clone returns an empty, unmounted CallCounters named name.
func (c *CallCounters) Clone(name string) stats.Node {
	return NewCallCounters(name)
}

// nearest walks the parent chain of n for the closest node of type T. The
// walk stops silently at the root.
func nearest[T stats.Node](n stats.Node) (T, bool) {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if match, ok := p.(T); ok {
			return match, true
		}
	}
	var zero T
	return zero, false
}
