package caller

import "github.com/drblury/protowamp/internal/runtime/wamp"

// Listener receives the outcome of a call. Callbacks run on the goroutine
// that delivered the inbound message, outside any caller lock.
type Listener interface {
	// OnResult receives final and progressive results. For a progressive
	// result the return value tells whether more parts are expected.
	OnResult(call *Call, result *wamp.Result) bool
	OnError(call *Call, err *wamp.Error)
	// OnCancel runs when the call is cancelled locally or dropped because
	// the session closed.
	OnCancel(call *Call, reason string)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Result func(call *Call, result *wamp.Result) bool
	Error  func(call *Call, err *wamp.Error)
	Cancel func(call *Call, reason string)
}

func (l ListenerFuncs) OnResult(call *Call, result *wamp.Result) bool {
	if l.Result == nil {
		return false
	}
	return l.Result(call, result)
}

func (l ListenerFuncs) OnError(call *Call, err *wamp.Error) {
	if l.Error != nil {
		l.Error(call, err)
	}
}

func (l ListenerFuncs) OnCancel(call *Call, reason string) {
	if l.Cancel != nil {
		l.Cancel(call, reason)
	}
}
