package caller

import (
	"sync"
	"time"

	"github.com/drblury/protowamp/internal/runtime/counters"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// CallState is the lifecycle position of a call.
type CallState int

const (
	StatePrepared CallState = iota
	StateRunning
	StatePartial
	StateCompleted
	StateFailed
	StateCancelled
)

func (s CallState) String() string {
	switch s {
	case StatePrepared:
		return "prepared"
	case StateRunning:
		return "running"
	case StatePartial:
		return "partial"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Procedure is the caller-side record of a procedure name.
type Procedure struct {
	ID       int64
	Name     string
	Options  wamp.Dict
	Counters *counters.CallCounters
}

// Call is one outstanding request.
type Call struct {
	ID        wamp.ID
	Procedure *Procedure
	Options   wamp.Dict
	// Progressive is set when the CALL asked for progressive results.
	Progressive bool
	// Timeout is zero when the call may run forever.
	Timeout time.Duration

	started  time.Time
	listener Listener

	mu           sync.Mutex
	state        CallState
	cancelled    bool
	cancelReason string
	partials     int
}

func newCall(id wamp.ID, proc *Procedure, options wamp.Dict, timeout time.Duration, listener Listener) *Call {
	if ms, ok := wamp.Int64(options, wamp.KeyTimeout); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	return &Call{
		ID:          id,
		Procedure:   proc,
		Options:     options,
		Progressive: wamp.Bool(options, wamp.KeyReceiveProgress),
		Timeout:     timeout,
		started:     time.Now(),
		listener:    listener,
		state:       StatePrepared,
	}
}

func (c *Call) callCounters() *counters.CallCounters {
	if c.Procedure == nil {
		return nil
	}
	return c.Procedure.Counters
}

// Started returns when the call was issued.
func (c *Call) Started() time.Time { return c.started }

// Elapsed returns the time since the call was issued, on the monotonic clock.
func (c *Call) Elapsed() time.Duration { return time.Since(c.started) }

// Overtime reports whether the call has outlived its timeout.
func (c *Call) Overtime() bool {
	return c.Timeout > 0 && c.Elapsed() > c.Timeout
}

func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cancelled returns the cancellation reason and whether the call was
// cancelled.
func (c *Call) Cancelled() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelReason, c.cancelled
}

// Partials returns how many progressive results arrived so far.
func (c *Call) Partials() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partials
}

// advance moves the call from one state to another and reports whether it did.
func (c *Call) advance(from, to CallState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.state = to
	return true
}

func (c *Call) partial() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partials++
	if c.state == StatePrepared || c.state == StateRunning {
		c.state = StatePartial
	}
}

func (c *Call) finish(state CallState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// markCancelled sets the cancellation marker once. It reports false when the
// call was already cancelled.
func (c *Call) markCancelled(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelled {
		return false
	}
	c.cancelled = true
	c.cancelReason = reason
	c.state = StateCancelled
	return true
}
