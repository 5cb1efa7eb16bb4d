// Package auth implements the handshake strategies a session can negotiate:
// anonymous access, WAMP-CRA challenge-response and tickets.
//
// A Negotiator is used from both ends of a session. The router side issues
// challenges and checks answers; the client side only answers. Challenges in
// flight are kept in a PendingStore shared through a Registry.
package auth

import (
	"slices"
	"sync/atomic"

	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// Method names as announced in HELLO authmethods.
const (
	MethodAnonymous = "anonymous"
	MethodCRA       = "wampcra"
	MethodTicket    = "ticket"
)

// DefaultProvider is the authprovider reported when none is configured.
const DefaultProvider = "static"

// Negotiator is one authentication strategy.
type Negotiator interface {
	Name() string
	// NeedChallenge reports whether hello should be answered with a CHALLENGE.
	NeedChallenge(sess session.Session, hello *wamp.Hello) bool
	// Challenge reacts to HELLO on the router side. It returns nil when no
	// CHALLENGE is to be sent, which is always the case on a client.
	Challenge(sess session.Session, hello *wamp.Hello) (*wamp.Challenge, error)
	// Authenticate answers a CHALLENGE on the client side.
	Authenticate(sess session.Session, challenge *wamp.Challenge) (*wamp.Authenticate, error)
	// Authenticated checks an AUTHENTICATE against the pending challenge on
	// the router side. msg is nil for strategies without a challenge.
	Authenticated(sess session.Session, msg *wamp.Authenticate) (*session.Identity, error)
}

// pendingHolder gives a negotiator a private store until a Registry hands it
// the shared one.
type pendingHolder struct {
	store atomic.Pointer[PendingStore]
}

func (h *pendingHolder) pending() *PendingStore {
	if s := h.store.Load(); s != nil {
		return s
	}
	h.store.CompareAndSwap(nil, NewPendingStore(0))
	return h.store.Load()
}

func (h *pendingHolder) usePending(s *PendingStore) { h.store.Store(s) }

type pendingUser interface {
	usePending(*PendingStore)
}

func advertises(hello *wamp.Hello, method string) bool {
	return hello != nil && slices.Contains(hello.AuthMethods(), method)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
