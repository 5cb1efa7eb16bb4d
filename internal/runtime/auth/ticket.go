package auth

import (
	"crypto/subtle"

	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// TicketVerifier decides whether ticket is valid for authID.
type TicketVerifier func(sess session.Session, authID, ticket string) bool

// StaticTicket accepts the tickets of a fixed authid to ticket map.
func StaticTicket(tickets map[string]string) TicketVerifier {
	copied := make(map[string]string, len(tickets))
	for id, t := range tickets {
		copied[id] = t
	}
	return func(_ session.Session, authID, ticket string) bool {
		want, ok := copied[authID]
		return ok && subtle.ConstantTimeCompare([]byte(want), []byte(ticket)) == 1
	}
}

// TicketConfig configures a Ticket negotiator.
type TicketConfig struct {
	// Ticket is presented by the client side.
	Ticket string
	// Verify checks presented tickets on the router side. Without it every
	// ticket is rejected.
	Verify   TicketVerifier
	Role     string
	Provider string
}

// Ticket sends an empty challenge and hands the client's answer to the
// application's verifier.
type Ticket struct {
	pendingHolder
	cfg TicketConfig
}

func NewTicket(cfg TicketConfig) *Ticket {
	cfg.Role = orDefault(cfg.Role, "user")
	cfg.Provider = orDefault(cfg.Provider, DefaultProvider)
	return &Ticket{cfg: cfg}
}

func (t *Ticket) Name() string { return MethodTicket }

func (t *Ticket) NeedChallenge(_ session.Session, hello *wamp.Hello) bool {
	return advertises(hello, MethodTicket)
}

func (t *Ticket) Challenge(sess session.Session, hello *wamp.Hello) (*wamp.Challenge, error) {
	if !sess.IsRouter() {
		return nil, nil
	}
	t.pending().Put(sess.ID(), Pending{
		Method:       MethodTicket,
		AuthID:       hello.AuthID(),
		AuthRole:     t.cfg.Role,
		AuthProvider: t.cfg.Provider,
	})
	return &wamp.Challenge{AuthMethod: MethodTicket, Extra: wamp.Dict{}}, nil
}

func (t *Ticket) Authenticate(sess session.Session, _ *wamp.Challenge) (*wamp.Authenticate, error) {
	if sess.IsRouter() {
		return nil, nil
	}
	return &wamp.Authenticate{Signature: t.cfg.Ticket, Extra: wamp.Dict{}}, nil
}

func (t *Ticket) Authenticated(sess session.Session, msg *wamp.Authenticate) (*session.Identity, error) {
	p, err := t.pending().Take(sess.ID())
	if err != nil {
		return nil, err
	}
	if p.Method != MethodTicket {
		return nil, ErrNoPendingChallenge
	}
	if msg == nil || t.cfg.Verify == nil || !t.cfg.Verify(sess, p.AuthID, msg.Signature) {
		return nil, ErrAuthenticationFailed
	}
	return &session.Identity{
		AuthMethod:   MethodTicket,
		AuthID:       p.AuthID,
		AuthRole:     p.AuthRole,
		AuthProvider: p.AuthProvider,
	}, nil
}
