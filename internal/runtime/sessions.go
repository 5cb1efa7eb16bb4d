package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/protowamp/internal/runtime/caller"
	"github.com/drblury/protowamp/internal/runtime/counters"
	errspkg "github.com/drblury/protowamp/internal/runtime/errors"
	idspkg "github.com/drblury/protowamp/internal/runtime/ids"
	loggingpkg "github.com/drblury/protowamp/internal/runtime/logging"
	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// SessionConfig describes one session hosted by the Service.
type SessionConfig struct {
	// ID is the session id of a router session. Zero picks the next free id.
	// Client sessions learn theirs from WELCOME.
	ID     wamp.ID
	Router bool
	// Features announces the advanced features per local role, for example
	// {"caller": {"call_canceling"}}. Roles without features map to nil.
	Features map[string][]string

	// InTopic is consumed, OutTopic is published on.
	InTopic  string
	OutTopic string

	// Realm overrides the configured realm.
	Realm string
	// AuthMethods and AuthID override the configured client credentials
	// announced in HELLO.
	AuthMethods []string
	AuthID      string

	// Unhandled receives messages the Service has no handling for, such as
	// CALL on a router session.
	Unhandled func(*HostedSession, wamp.Message) error
}

// HostedSession is one session of the Service together with its caller
// ledger.
type HostedSession struct {
	svc     *Service
	cfg     SessionConfig
	key     atomic.Int64
	peer    *session.Peer
	caller  *caller.Caller
	handler *message.Handler
	log     loggingpkg.ServiceLogger

	welcomed    chan struct{}
	welcomeOnce sync.Once
	done        chan struct{}
	doneOnce    sync.Once
	reason      atomic.Pointer[string]
}

// OpenSession creates a session and starts consuming its inbound topic.
// Client sessions are stored under a provisional negative key until WELCOME
// assigns their id.
func (s *Service) OpenSession(cfg SessionConfig) (*HostedSession, error) {
	if cfg.InTopic == "" || cfg.OutTopic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	if cfg.Realm == "" {
		cfg.Realm = s.Conf.Realm
	}

	var key wamp.ID
	switch {
	case !cfg.Router:
		key = -s.provisional.Next()
	case cfg.ID != 0:
		key = cfg.ID
	default:
		key = s.sessionIDs.Next()
		for _, taken := s.sessions.Get(key); taken; _, taken = s.sessions.Get(key) {
			key = s.sessionIDs.Next()
		}
	}

	roles := make([]string, 0, len(cfg.Features))
	for role := range cfg.Features {
		roles = append(roles, role)
	}
	peerCfg := session.PeerConfig{
		Router:         cfg.Router,
		Roles:          roles,
		Publisher:      s.publisher,
		Topic:          cfg.OutTopic,
		MaxMessageSize: s.capabilities.MaxMessageSize,
		Stats:          s.stats.Branch(fmt.Sprintf("session_%d", key)),
		Logger:         s.Logger,
	}
	if cfg.Router {
		peerCfg.ID = key
		for _, features := range cfg.Features {
			peerCfg.Features = append(peerCfg.Features, features...)
		}
	}
	peer, err := session.NewPeer(peerCfg)
	if err != nil {
		peerCfg.Stats.Release()
		return nil, err
	}

	hs := &HostedSession{
		svc:      s,
		cfg:      cfg,
		peer:     peer,
		log:      s.Logger.With(loggingpkg.LogFields{"session_key": key, "router": cfg.Router}),
		welcomed: make(chan struct{}),
		done:     make(chan struct{}),
	}
	hs.key.Store(key)
	if peer.HasLocalRole(wamp.RoleCaller) {
		hs.caller = caller.New(caller.Config{
			MaxConcurrentCalls: s.Conf.MaxConcurrentCalls,
			DefaultTimeout:     s.Conf.CallTimeout,
			NotFoundBuckets:    s.Conf.NotFoundBuckets,
			Logger:             hs.log,
		})
	}

	if err := s.sessions.Put(key, hs); err != nil {
		peerCfg.Stats.Release()
		return nil, err
	}

	hs.handler = s.router.AddNoPublisherHandler(
		"wamp-session-"+idspkg.CreateULID(),
		cfg.InTopic,
		s.subscriber,
		hs.handle,
	)
	if err := s.runHandlers(); err != nil {
		s.sessions.Remove(key)
		return nil, err
	}
	hs.log.Debug("Opened session", loggingpkg.LogFields{"in": cfg.InTopic, "out": cfg.OutTopic})
	s.fire(s.hooks.OnOpen, hs)
	return hs, nil
}

// runHandlers starts handlers added after the router began running.
func (s *Service) runHandlers() error {
	if !s.router.IsRunning() {
		return nil
	}
	s.runMu.Lock()
	ctx := s.runCtx
	s.runMu.Unlock()
	return s.router.RunHandlers(ctx)
}

// Session looks up a session by id, or by provisional key before WELCOME.
func (s *Service) Session(id wamp.ID) (*HostedSession, bool) {
	return s.sessions.Get(id)
}

// Sessions returns the number of open sessions.
func (s *Service) Sessions() int { return s.sessions.Len() }

// Join sends HELLO on the client session id.
func (s *Service) Join(id wamp.ID) error {
	hs, ok := s.sessions.Get(id)
	if !ok {
		return errspkg.ErrUnknownSession
	}
	return hs.Join()
}

// CloseSession removes the session id. It reports whether it was open.
func (s *Service) CloseSession(id wamp.ID) bool {
	return s.sessions.Remove(id)
}

// purgeSession clears everything keyed by the session once it leaves the
// holder.
func (s *Service) purgeSession(_ wamp.ID, hs *HostedSession) {
	reason := hs.Reason()
	if reason == "" {
		reason = caller.ReasonClosed
		hs.reason.Store(&reason)
	}
	hs.peer.Close()
	if hs.caller != nil {
		hs.caller.Close(reason)
	}
	s.auth.Forget(hs.peer.ID())
	hs.peer.Statistics().Release()
	if hs.handler != nil && s.router.IsRunning() {
		select {
		case <-hs.handler.Started():
			hs.handler.Stop()
		default:
		}
	}
	hs.log.Debug("Closed session", loggingpkg.LogFields{
		"reason":      reason,
		"undelivered": len(hs.peer.Undelivered()),
	})
	s.fire(s.hooks.OnClosed, hs)
	hs.doneOnce.Do(func() { close(hs.done) })
}

func (hs *HostedSession) ID() wamp.ID { return hs.peer.ID() }

// Key is the id the Service stores the session under.
func (hs *HostedSession) Key() wamp.ID { return hs.key.Load() }

func (hs *HostedSession) Peer() *session.Peer { return hs.peer }

// Caller returns the call ledger, nil when the session has no caller role.
func (hs *HostedSession) Caller() *caller.Caller { return hs.caller }

func (hs *HostedSession) Identity() *session.Identity { return hs.peer.Identity() }

func (hs *HostedSession) Statistics() *counters.Tree { return hs.peer.Statistics() }

// Welcomed is closed once the session is established.
func (hs *HostedSession) Welcomed() <-chan struct{} { return hs.welcomed }

// Done is closed once the session has been closed.
func (hs *HostedSession) Done() <-chan struct{} { return hs.done }

// Reason returns the close or abort reason, empty while open.
func (hs *HostedSession) Reason() string {
	if r := hs.reason.Load(); r != nil {
		return *r
	}
	return ""
}

// Join sends HELLO announcing the local roles and client credentials.
func (hs *HostedSession) Join() error {
	if hs.peer.IsRouter() {
		return &caller.RoleViolationError{Op: "join", Session: hs.ID(), Router: true}
	}
	conf := hs.svc.Conf
	methods := hs.cfg.AuthMethods
	if len(methods) == 0 {
		methods = conf.AuthMethods
	}
	authID := hs.cfg.AuthID
	if authID == "" {
		authID = conf.AuthID
	}
	details := wamp.Dict{
		wamp.KeyRoles:       wamp.RoleDetails(hs.cfg.Features),
		wamp.KeyAuthMethods: methods,
	}
	if authID != "" {
		details[wamp.KeyAuthID] = authID
	}
	return hs.peer.Send(&wamp.Hello{Realm: hs.cfg.Realm, Details: details})
}

// Call issues a CALL through the session's caller.
func (hs *HostedSession) Call(options wamp.Dict, procedure string, args wamp.List, kwargs wamp.Dict, listener caller.Listener) (wamp.ID, error) {
	if hs.caller == nil {
		return 0, &caller.RoleViolationError{Op: "call", Session: hs.ID(), Router: hs.peer.IsRouter()}
	}
	return hs.caller.Call(hs.peer, options, procedure, args, kwargs, listener)
}

// Cancel asks the router to stop an outstanding call.
func (hs *HostedSession) Cancel(id wamp.ID, mode string) error {
	if hs.caller == nil {
		return &caller.RoleViolationError{Op: "cancel", Session: hs.ID(), Router: hs.peer.IsRouter()}
	}
	return hs.caller.Cancel(hs.peer, id, mode)
}

// Send publishes msg on the session's outbound topic.
func (hs *HostedSession) Send(msg wamp.Message) error { return hs.peer.Send(msg) }

// Goodbye sends GOODBYE with reason and closes the session.
func (hs *HostedSession) Goodbye(reason string) error {
	if reason == "" {
		reason = wamp.URICloseNormal
	}
	err := hs.peer.Send(&wamp.Goodbye{Details: wamp.Dict{}, Reason: reason})
	hs.Close(reason)
	return err
}

// Close removes the session from the Service without notifying the remote
// side.
func (hs *HostedSession) Close(reason string) {
	if reason != "" {
		hs.reason.CompareAndSwap(nil, &reason)
	}
	hs.svc.sessions.Remove(hs.Key())
}
