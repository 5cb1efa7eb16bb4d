package auth

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/drblury/protowamp/internal/runtime/logging"
	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// Registry maps method names to negotiators and owns the pending challenges
// they share.
type Registry struct {
	mu          sync.RWMutex
	negotiators map[string]Negotiator
	pending     *PendingStore
	log         logging.ServiceLogger
}

// NewRegistry creates a registry whose challenges expire after
// challengeTimeout.
func NewRegistry(challengeTimeout time.Duration, log logging.ServiceLogger) *Registry {
	return &Registry{
		negotiators: make(map[string]Negotiator),
		pending:     NewPendingStore(challengeTimeout),
		log:         logging.OrNop(log),
	}
}

// Register adds n under its name, replacing an earlier negotiator of the
// same name.
func (r *Registry) Register(n Negotiator) {
	if u, ok := n.(pendingUser); ok {
		u.usePending(r.pending)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.negotiators[n.Name()] = n
}

func (r *Registry) Get(name string) (Negotiator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.negotiators[name]
	return n, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered method names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.negotiators))
	for name := range r.negotiators {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Pending exposes the shared challenge store.
func (r *Registry) Pending() *PendingStore { return r.pending }

// Select picks the first method advertised in hello that has a registered
// negotiator asking for a challenge. Anonymous is the fallback when
// registered.
func (r *Registry) Select(sess session.Session, hello *wamp.Hello) (Negotiator, error) {
	for _, method := range hello.AuthMethods() {
		if n, ok := r.Get(method); ok && n.NeedChallenge(sess, hello) {
			return n, nil
		}
	}
	if n, ok := r.Get(MethodAnonymous); ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: offered %v, registered %v", ErrUnknownAuthMethod, hello.AuthMethods(), r.Names())
}

// Hello runs the router side of a HELLO. It returns either the CHALLENGE to
// send or, for strategies that need none, the identity to welcome.
func (r *Registry) Hello(sess session.Session, hello *wamp.Hello) (*wamp.Challenge, *session.Identity, error) {
	n, err := r.Select(sess, hello)
	if err != nil {
		r.fail(sess, "", err)
		return nil, nil, err
	}
	challenge, err := n.Challenge(sess, hello)
	if err != nil {
		r.pending.Forget(sess.ID())
		r.fail(sess, n.Name(), err)
		return nil, nil, err
	}
	if challenge != nil {
		if st := sess.Statistics(); st != nil {
			st.Auth.OnChallenge()
		}
		return challenge, nil, nil
	}
	identity, err := r.authenticated(sess, n, nil)
	return nil, identity, err
}

// Authenticated runs the router side of an AUTHENTICATE using the method of
// the session's pending challenge.
func (r *Registry) Authenticated(sess session.Session, msg *wamp.Authenticate) (*session.Identity, error) {
	method := r.pending.Method(sess.ID())
	n, ok := r.Get(method)
	if !ok {
		r.pending.Forget(sess.ID())
		r.fail(sess, method, ErrNoPendingChallenge)
		return nil, ErrNoPendingChallenge
	}
	return r.authenticated(sess, n, msg)
}

func (r *Registry) authenticated(sess session.Session, n Negotiator, msg *wamp.Authenticate) (*session.Identity, error) {
	identity, err := n.Authenticated(sess, msg)
	// The negotiator normally takes the entry; make sure nothing stale stays.
	r.pending.Forget(sess.ID())
	if err != nil {
		r.fail(sess, n.Name(), err)
		return nil, err
	}
	if st := sess.Statistics(); st != nil {
		st.Auth.OnAuthenticated()
	}
	return identity, nil
}

// Respond answers a CHALLENGE on the client side.
func (r *Registry) Respond(sess session.Session, challenge *wamp.Challenge) (*wamp.Authenticate, error) {
	n, ok := r.Get(challenge.AuthMethod)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAuthMethod, challenge.AuthMethod)
	}
	reply, err := n.Authenticate(sess, challenge)
	if err != nil {
		var sigErr *SignatureError
		if errors.As(err, &sigErr) {
			r.log.Error("Computing challenge signature failed", err, logging.LogFields{"session": sess.ID(), "method": n.Name()})
		}
		return nil, err
	}
	return reply, nil
}

// Forget drops the pending challenge of a closed session.
func (r *Registry) Forget(id wamp.ID) { r.pending.Forget(id) }

func (r *Registry) fail(sess session.Session, method string, err error) {
	if st := sess.Statistics(); st != nil {
		st.Auth.OnFailed()
	}
	fields := logging.LogFields{"session": sess.ID(), "method": method}
	var sigErr *SignatureError
	if errors.As(err, &sigErr) {
		r.log.Error("Computing challenge signature failed", err, fields)
		return
	}
	fields["error"] = err.Error()
	r.log.Info("Authentication failed", fields)
}
