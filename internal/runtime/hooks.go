package runtime

import (
	"time"

	loggingpkg "github.com/drblury/protowamp/internal/runtime/logging"
	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// SessionEvent describes a session lifecycle transition.
type SessionEvent struct {
	// Key is the id the Service stores the session under; negative for a
	// client before WELCOME.
	Key       wamp.ID
	SessionID wamp.ID
	Router    bool
	// Identity is set once the session is established.
	Identity *session.Identity
	// Reason is set when the session closes.
	Reason string
	At     time.Time
}

// SessionHooks defines callbacks for session lifecycle events.
// All hooks are optional - nil hooks are simply not called.
type SessionHooks struct {
	// OnOpen is called once the session consumes its inbound topic.
	OnOpen func(SessionEvent)
	// OnEstablished is called when WELCOME is sent (router) or received
	// (client).
	OnEstablished func(SessionEvent)
	// OnClosed is called after the session state has been purged.
	OnClosed func(SessionEvent)
}

// Merge combines two SessionHooks, creating a new SessionHooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'.
func (h SessionHooks) Merge(other SessionHooks) SessionHooks {
	return SessionHooks{
		OnOpen:        chainHooks(h.OnOpen, other.OnOpen),
		OnEstablished: chainHooks(h.OnEstablished, other.OnEstablished),
		OnClosed:      chainHooks(h.OnClosed, other.OnClosed),
	}
}

func chainHooks(a, b func(SessionEvent)) func(SessionEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ev SessionEvent) {
		a(ev)
		b(ev)
	}
}

// LoggingHooks returns pre-built hooks that log session lifecycle events.
func LoggingHooks(logger loggingpkg.ServiceLogger) SessionHooks {
	logger = loggingpkg.OrNop(logger)
	fields := func(ev SessionEvent) loggingpkg.LogFields {
		f := loggingpkg.LogFields{
			"session_key": ev.Key,
			"session_id":  ev.SessionID,
			"router":      ev.Router,
		}
		if ev.Identity != nil {
			f["authid"] = ev.Identity.AuthID
			f["authrole"] = ev.Identity.AuthRole
		}
		if ev.Reason != "" {
			f["reason"] = ev.Reason
		}
		return f
	}
	return SessionHooks{
		OnOpen:        func(ev SessionEvent) { logger.Info("Session opened", fields(ev)) },
		OnEstablished: func(ev SessionEvent) { logger.Info("Session joined", fields(ev)) },
		OnClosed:      func(ev SessionEvent) { logger.Info("Session closed", fields(ev)) },
	}
}

func (hs *HostedSession) event() SessionEvent {
	return SessionEvent{
		Key:       hs.Key(),
		SessionID: hs.peer.ID(),
		Router:    hs.peer.IsRouter(),
		Identity:  hs.peer.Identity(),
		Reason:    hs.Reason(),
		At:        time.Now(),
	}
}

func (s *Service) fire(hook func(SessionEvent), hs *HostedSession) {
	if hook != nil {
		hook(hs.event())
	}
}
