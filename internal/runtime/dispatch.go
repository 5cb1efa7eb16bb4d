package runtime

import (
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	authpkg "github.com/drblury/protowamp/internal/runtime/auth"
	errspkg "github.com/drblury/protowamp/internal/runtime/errors"
	loggingpkg "github.com/drblury/protowamp/internal/runtime/logging"
	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// handle is the router handler of one session. Only messages that can never
// be decoded fail; everything else is acknowledged once dispatched. A reply
// whose publish fails is logged and dropped by the peer.
func (hs *HostedSession) handle(msg *message.Message) error {
	decoded, err := wamp.Decode(msg.Payload)
	if err != nil {
		return &errspkg.UnprocessableMessageError{UUID: msg.UUID, Err: err}
	}
	if hs.peer.Closed() {
		hs.log.Debug("Dropping message for closed session", loggingpkg.LogFields{"type": decoded.Type().String()})
		return nil
	}
	hs.peer.Received(decoded)
	hs.dispatch(decoded)
	return nil
}

func (hs *HostedSession) dispatch(msg wamp.Message) {
	switch m := msg.(type) {
	case *wamp.Abort:
		hs.log.Info("Session aborted by peer", loggingpkg.LogFields{"reason": m.Reason, "details": m.Details})
		hs.Close(m.Reason)
		return
	case *wamp.Goodbye:
		if m.Reason != wamp.URIGoodbyeAndOut {
			hs.send(&wamp.Goodbye{Details: wamp.Dict{}, Reason: wamp.URIGoodbyeAndOut})
		}
		hs.Close(m.Reason)
		return
	}

	if hs.peer.IsRouter() {
		hs.dispatchRouter(msg)
		return
	}
	hs.dispatchClient(msg)
}

func (hs *HostedSession) dispatchRouter(msg wamp.Message) {
	switch m := msg.(type) {
	case *wamp.Hello:
		hs.hello(m)
	case *wamp.Authenticate:
		identity, err := hs.svc.auth.Authenticated(hs.peer, m)
		if err != nil {
			hs.abort(wamp.URIAuthenticationFailed, err)
			return
		}
		hs.welcome(identity)
	default:
		hs.unhandled(msg)
	}
}

func (hs *HostedSession) hello(m *wamp.Hello) {
	if hs.peer.Identity() != nil {
		hs.log.Info("Ignoring HELLO on established session", nil)
		return
	}
	if m.Realm != hs.cfg.Realm {
		hs.abort(wamp.URINoSuchRealm, errors.New("no such realm: "+m.Realm))
		return
	}
	challenge, identity, err := hs.svc.auth.Hello(hs.peer, m)
	switch {
	case err != nil:
		reason := wamp.URIAuthenticationFailed
		if errors.Is(err, authpkg.ErrUnknownAuthMethod) {
			reason = wamp.URINotAuthorized
		}
		hs.abort(reason, err)
	case challenge != nil:
		hs.send(challenge)
	default:
		hs.welcome(identity)
	}
}

func (hs *HostedSession) welcome(identity *session.Identity) {
	hs.peer.SetIdentity(identity)
	details := identity.Details()
	details[wamp.KeyRoles] = wamp.RoleDetails(hs.cfg.Features)
	if !hs.send(&wamp.Welcome{Session: hs.peer.ID(), Details: details}) {
		// The WELCOME never left; accept a fresh HELLO.
		hs.peer.SetIdentity(nil)
		return
	}
	hs.markWelcomed()
	hs.log.Info("Session established", loggingpkg.LogFields{
		"session_id": hs.peer.ID(),
		"authid":     identity.AuthID,
		"authmethod": identity.AuthMethod,
	})
}

func (hs *HostedSession) abort(reason string, cause error) {
	hs.send(&wamp.Abort{Details: wamp.Dict{wamp.KeyMessage: cause.Error()}, Reason: reason})
	hs.Close(reason)
}

func (hs *HostedSession) dispatchClient(msg wamp.Message) {
	switch m := msg.(type) {
	case *wamp.Challenge:
		reply, err := hs.svc.auth.Respond(hs.peer, m)
		if err != nil {
			hs.abort(wamp.URIAuthenticationFailed, err)
			return
		}
		hs.send(reply)
	case *wamp.Welcome:
		hs.adopt(m)
	case *wamp.Result, *wamp.Error:
		if hs.caller == nil {
			hs.unhandled(msg)
			return
		}
		if _, err := hs.caller.Handle(hs.peer, msg); err != nil {
			hs.log.Error("Handling reply failed", err, loggingpkg.LogFields{"type": msg.Type().String()})
		}
	default:
		hs.unhandled(msg)
	}
}

// adopt takes over the id and dealer features of a WELCOME and moves the
// session from its provisional key to that id.
func (hs *HostedSession) adopt(m *wamp.Welcome) {
	if hs.peer.Identity() != nil {
		hs.log.Info("Ignoring duplicate WELCOME", loggingpkg.LogFields{"session_id": m.Session})
		return
	}
	from := hs.Key()
	if err := hs.svc.sessions.Rekey(from, m.Session); err != nil {
		hs.abort(wamp.URIProtocolViolation, err)
		return
	}
	hs.key.Store(m.Session)
	hs.peer.Adopt(m.Session, wamp.Features(m.Details, wamp.RoleDealer)...)
	hs.peer.SetIdentity(session.IdentityFromDetails(m.Details))
	hs.markWelcomed()
}

func (hs *HostedSession) markWelcomed() {
	hs.welcomeOnce.Do(func() {
		hs.svc.fire(hs.svc.hooks.OnEstablished, hs)
		close(hs.welcomed)
	})
}

func (hs *HostedSession) unhandled(msg wamp.Message) {
	if hs.cfg.Unhandled == nil {
		hs.log.Debug("No handler for message", loggingpkg.LogFields{"type": msg.Type().String()})
		return
	}
	if err := hs.cfg.Unhandled(hs, msg); err != nil {
		hs.log.Error("Unhandled message callback failed", err, loggingpkg.LogFields{"type": msg.Type().String()})
	}
}

// send reports whether msg was published. Failed messages stay queued on the
// peer and go out with the next send.
func (hs *HostedSession) send(msg wamp.Message) bool {
	if err := hs.peer.Send(msg); err != nil {
		hs.log.Error("Sending message failed", err, loggingpkg.LogFields{"type": msg.Type().String()})
		return false
	}
	return true
}
