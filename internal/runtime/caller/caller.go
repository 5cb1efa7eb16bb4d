// Package caller implements the caller side of remote procedure calls: the
// ledger of outstanding calls for one session, correlation of RESULT and
// ERROR replies, progressive results, cancellation and a concurrency cap.
package caller

import (
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/drblury/protowamp/internal/runtime/counters"
	idspkg "github.com/drblury/protowamp/internal/runtime/ids"
	"github.com/drblury/protowamp/internal/runtime/logging"
	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/stats"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

const (
	DefaultMaxConcurrentCalls = 50
	DefaultNotFoundBuckets    = 1024
)

// Reasons recorded on cancelled calls.
const (
	ReasonCanceled = "canceled"
	ReasonTimeout  = "timeout"
	ReasonClosed   = "session closed"
)

// Disposition tells what happened to an inbound RESULT or ERROR.
type Disposition int

const (
	// Ignored means no outstanding call matched the request id.
	Ignored Disposition = iota
	// Partial means a progressive result was delivered and the call stays open.
	Partial
	// Delivered means the call completed and left the ledger.
	Delivered
)

func (d Disposition) String() string {
	switch d {
	case Partial:
		return "partial"
	case Delivered:
		return "delivered"
	}
	return "ignored"
}

// Config tunes a Caller. Zero values select the defaults.
type Config struct {
	MaxConcurrentCalls int
	// DefaultTimeout applies to calls whose options carry no timeout.
	DefaultTimeout time.Duration
	// NotFoundBuckets bounds how many unknown procedure names are tracked.
	NotFoundBuckets int
	Logger          logging.ServiceLogger
}

// Caller owns the outstanding calls of one session.
type Caller struct {
	maxCalls       int
	defaultTimeout time.Duration
	logger         logging.ServiceLogger

	mu     sync.RWMutex
	ledger map[wamp.ID]*Call
	closed bool

	procMu     sync.Mutex
	procedures map[string]*Procedure
	procIDs    idspkg.Sequence

	notFoundMu sync.Mutex
	notFound   *lru.Cache
}

// New returns an empty caller.
func New(cfg Config) *Caller {
	if cfg.MaxConcurrentCalls <= 0 {
		cfg.MaxConcurrentCalls = DefaultMaxConcurrentCalls
	}
	if cfg.NotFoundBuckets <= 0 {
		cfg.NotFoundBuckets = DefaultNotFoundBuckets
	}
	// the size is positive so the constructor cannot fail
	notFound, _ := lru.NewWithEvict(cfg.NotFoundBuckets, func(_, value any) {
		stats.Release(value.(*counters.CallCounters))
	})
	return &Caller{
		maxCalls:       cfg.MaxConcurrentCalls,
		defaultTimeout: cfg.DefaultTimeout,
		logger:         logging.OrNop(cfg.Logger),
		ledger:         make(map[wamp.ID]*Call),
		procedures:     make(map[string]*Procedure),
		notFound:       notFound,
	}
}

func checkRole(sess session.Session, op string) error {
	if sess == nil {
		return &RoleViolationError{Op: op}
	}
	if sess.IsRouter() {
		return &RoleViolationError{Op: op, Session: sess.ID(), Router: true}
	}
	if !sess.HasLocalRole(wamp.RoleCaller) {
		return &RoleViolationError{Op: op, Session: sess.ID()}
	}
	return nil
}

// Call issues a CALL for procedure and records it in the ledger. When the
// ledger already holds the configured number of calls nothing is sent and
// TooManyCalls is returned with ErrTooManyCalls.
func (c *Caller) Call(sess session.Session, options wamp.Dict, procedure string, args wamp.List, kwargs wamp.Dict, listener Listener) (wamp.ID, error) {
	if err := checkRole(sess, "call"); err != nil {
		return 0, err
	}
	if listener == nil {
		listener = ListenerFuncs{}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrCallerClosed
	}
	if len(c.ledger) >= c.maxCalls {
		c.mu.Unlock()
		return TooManyCalls, ErrTooManyCalls
	}
	id := sess.NextRequestID()
	proc := c.procedure(sess, procedure)
	call := newCall(id, proc, options, c.defaultTimeout, listener)
	c.ledger[id] = call
	c.mu.Unlock()

	proc.Counters.OnCall()
	err := sess.Send(&wamp.Call{
		Request:     id,
		Options:     options,
		Procedure:   procedure,
		Arguments:   args,
		ArgumentsKw: kwargs,
	})
	if err != nil {
		c.take(id)
		call.finish(StateFailed)
		proc.Counters.OnError()
		return 0, err
	}
	call.advance(StatePrepared, StateRunning)
	return id, nil
}

// procedure returns the cached record for name, creating its counters branch
// off the session call statistics the first time the name is seen.
func (c *Caller) procedure(sess session.Session, name string) *Procedure {
	c.procMu.Lock()
	defer c.procMu.Unlock()
	if proc, ok := c.procedures[name]; ok {
		return proc
	}
	proc := &Procedure{ID: c.procIDs.Next(), Name: name}
	if tree := sess.Statistics(); tree != nil {
		proc.Counters = stats.CreateChild(nil, tree.Calls, name).(*counters.CallCounters)
	}
	c.procedures[name] = proc
	return proc
}

// Procedure returns the cached record for name, or nil.
func (c *Caller) Procedure(name string) *Procedure {
	c.procMu.Lock()
	defer c.procMu.Unlock()
	return c.procedures[name]
}

// Cancel asks the peer to stop call id. Cancelling twice is a no-op. The call
// stays in the ledger until the peer answers or the session ends.
func (c *Caller) Cancel(sess session.Session, id wamp.ID, mode string) error {
	if err := checkRole(sess, "cancel"); err != nil {
		return err
	}
	call := c.Get(id)
	if call == nil {
		return ErrUnknownCall
	}
	return c.cancel(sess, call, mode, ReasonCanceled)
}

func (c *Caller) cancel(sess session.Session, call *Call, mode, reason string) error {
	if !call.markCancelled(reason) {
		return nil
	}
	cc := call.callCounters()
	cc.OnCancel()
	cc.OnDuration(call.Elapsed())

	if !sess.SupportsFeature(wamp.FeatureCallCanceling) || !validMode(mode) {
		mode = wamp.CancelSkip
	}
	err := sess.Send(&wamp.Cancel{Request: call.ID, Options: wamp.Dict{wamp.KeyMode: mode}})
	call.listener.OnCancel(call, reason)
	return err
}

func validMode(mode string) bool {
	switch mode {
	case wamp.CancelSkip, wamp.CancelKill, wamp.CancelKillNoWait:
		return true
	}
	return false
}

// CancelOverdue cancels every call whose timeout has passed and returns how
// many were cancelled.
func (c *Caller) CancelOverdue(sess session.Session) int {
	cancelled := 0
	for _, call := range c.Outstanding() {
		if !call.Overtime() {
			continue
		}
		if _, already := call.Cancelled(); already {
			continue
		}
		cancelled++
		fields := logging.LogFields{
			"call_id":   call.ID,
			"procedure": call.Procedure.Name,
			"timeout":   call.Timeout.String(),
		}
		if err := c.cancel(sess, call, wamp.CancelKillNoWait, ReasonTimeout); err != nil {
			c.logger.Error("Sending CANCEL for overdue call failed", err, fields)
			continue
		}
		c.logger.Info("Cancelled overdue call", fields)
	}
	return cancelled
}

// Handle routes an inbound RESULT or ERROR. Other messages are ignored.
func (c *Caller) Handle(sess session.Session, msg wamp.Message) (Disposition, error) {
	switch m := msg.(type) {
	case *wamp.Result:
		return c.HandleResult(sess, m)
	case *wamp.Error:
		return c.HandleError(sess, m)
	}
	return Ignored, nil
}

// HandleResult correlates a RESULT with its call. A progressive result keeps
// the call open; a final one removes it and records its duration.
func (c *Caller) HandleResult(sess session.Session, msg *wamp.Result) (Disposition, error) {
	if err := checkRole(sess, "result"); err != nil {
		return Ignored, err
	}
	if msg.Progress() {
		call := c.Get(msg.Request)
		if call == nil {
			c.ignored(msg.Request, "RESULT")
			return Ignored, nil
		}
		call.partial()
		call.listener.OnResult(call, msg)
		return Partial, nil
	}

	call := c.take(msg.Request)
	if call == nil {
		c.ignored(msg.Request, "RESULT")
		return Ignored, nil
	}
	if _, cancelled := call.Cancelled(); !cancelled {
		call.callCounters().OnDuration(call.Elapsed())
		call.finish(StateCompleted)
	}
	call.listener.OnResult(call, msg)
	return Delivered, nil
}

// HandleError correlates an ERROR with its call and removes it. A
// no_such_procedure error is also counted in a per-name not-found bucket.
func (c *Caller) HandleError(sess session.Session, msg *wamp.Error) (Disposition, error) {
	if err := checkRole(sess, "error"); err != nil {
		return Ignored, err
	}
	call := c.take(msg.Request)
	if call == nil {
		c.ignored(msg.Request, "ERROR")
		return Ignored, nil
	}
	cc := call.callCounters()
	cc.OnError()
	if _, cancelled := call.Cancelled(); !cancelled {
		cc.OnDuration(call.Elapsed())
		call.finish(StateFailed)
	}
	if msg.Error == wamp.URINoSuchProcedure {
		bucket := c.notFoundBucket(sess, call.Procedure.Name)
		bucket.OnCall()
		bucket.OnError()
	}
	call.listener.OnError(call, msg)
	return Delivered, nil
}

func (c *Caller) ignored(id wamp.ID, kind string) {
	c.logger.Debug("Ignoring reply for unknown call", logging.LogFields{"call_id": id, "type": kind})
}

func (c *Caller) notFoundBucket(sess session.Session, name string) *counters.CallCounters {
	c.notFoundMu.Lock()
	defer c.notFoundMu.Unlock()
	if bucket, ok := c.notFound.Get(name); ok {
		return bucket.(*counters.CallCounters)
	}
	var bucket *counters.CallCounters
	if tree := sess.Statistics(); tree != nil {
		bucket = stats.CreateChild(nil, tree.NotFound, name).(*counters.CallCounters)
	} else {
		bucket = counters.NewCallCounters(name)
		stats.NewTree(bucket)
	}
	c.notFound.Add(name, bucket)
	return bucket
}

// NotFound returns the not-found bucket for name, or nil.
func (c *Caller) NotFound(name string) *counters.CallCounters {
	c.notFoundMu.Lock()
	defer c.notFoundMu.Unlock()
	if bucket, ok := c.notFound.Peek(name); ok {
		return bucket.(*counters.CallCounters)
	}
	return nil
}

// Get returns the outstanding call with id, or nil.
func (c *Caller) Get(id wamp.ID) *Call {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger[id]
}

func (c *Caller) take(id wamp.ID) *Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.ledger[id]
	if !ok {
		return nil
	}
	delete(c.ledger, id)
	return call
}

// Len returns the number of outstanding calls.
func (c *Caller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ledger)
}

// Outstanding returns the outstanding calls ordered by id.
func (c *Caller) Outstanding() []*Call {
	c.mu.RLock()
	calls := make([]*Call, 0, len(c.ledger))
	for _, call := range c.ledger {
		calls = append(calls, call)
	}
	c.mu.RUnlock()

	slices.SortFunc(calls, func(a, b *Call) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return calls
}

// Close drops every outstanding call, notifying listeners of calls not yet
// cancelled, and releases the per-name statistics branches. Later calls fail
// with ErrCallerClosed.
func (c *Caller) Close(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ledger := c.ledger
	c.ledger = make(map[wamp.ID]*Call)
	c.mu.Unlock()

	for _, call := range ledger {
		if call.markCancelled(reason) {
			call.listener.OnCancel(call, reason)
		}
	}

	c.procMu.Lock()
	for name, proc := range c.procedures {
		if proc.Counters != nil {
			stats.Release(proc.Counters)
		}
		delete(c.procedures, name)
	}
	c.procMu.Unlock()

	c.notFoundMu.Lock()
	c.notFound.Purge()
	c.notFoundMu.Unlock()
}
