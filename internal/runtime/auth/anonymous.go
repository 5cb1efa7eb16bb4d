package auth

import (
	"github.com/drblury/protowamp/internal/runtime/ids"
	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// Anonymous admits every peer without a challenge. A peer without an authid
// gets a fresh ULID.
type Anonymous struct {
	pendingHolder
	Role     string
	Provider string
}

func NewAnonymous() *Anonymous {
	return &Anonymous{Role: MethodAnonymous, Provider: DefaultProvider}
}

func (a *Anonymous) Name() string { return MethodAnonymous }

func (a *Anonymous) NeedChallenge(session.Session, *wamp.Hello) bool { return false }

// Challenge records who the peer claims to be and returns no message.
func (a *Anonymous) Challenge(sess session.Session, hello *wamp.Hello) (*wamp.Challenge, error) {
	if !sess.IsRouter() {
		return nil, nil
	}
	authID := ""
	if hello != nil {
		authID = hello.AuthID()
	}
	if authID == "" {
		authID = ids.CreateULID()
	}
	a.pending().Put(sess.ID(), Pending{
		Method:       MethodAnonymous,
		AuthID:       authID,
		AuthRole:     orDefault(a.Role, MethodAnonymous),
		AuthProvider: orDefault(a.Provider, DefaultProvider),
	})
	return nil, nil
}

func (a *Anonymous) Authenticate(session.Session, *wamp.Challenge) (*wamp.Authenticate, error) {
	return nil, nil
}

func (a *Anonymous) Authenticated(sess session.Session, _ *wamp.Authenticate) (*session.Identity, error) {
	p, err := a.pending().Take(sess.ID())
	if err != nil {
		return nil, err
	}
	if p.Method != MethodAnonymous {
		return nil, ErrNoPendingChallenge
	}
	return &session.Identity{
		AuthMethod:   MethodAnonymous,
		AuthID:       p.AuthID,
		AuthRole:     p.AuthRole,
		AuthProvider: p.AuthProvider,
	}, nil
}
