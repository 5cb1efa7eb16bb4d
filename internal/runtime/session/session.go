// Package session defines the per-connection contract the protocol
// components consume and a concrete Peer that ships encoded messages over a
// Watermill publisher.
package session

import (
	"github.com/drblury/protowamp/internal/runtime/counters"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// Session is one logical connection between two peers.
type Session interface {
	ID() wamp.ID
	// NextRequestID returns the next id of the session's request sequence.
	NextRequestID() wamp.ID
	HasLocalRole(role string) bool
	// IsRouter reports whether the local side is the router.
	IsRouter() bool
	SupportsFeature(feature string) bool
	Send(msg wamp.Message) error
	// Statistics returns the session statistics tree, or nil.
	Statistics() *counters.Tree
}

// Identity is the outcome of a successful authentication.
type Identity struct {
	AuthMethod   string
	AuthID       string
	AuthRole     string
	AuthProvider string
}

// Details renders the identity as WELCOME details.
func (i *Identity) Details() wamp.Dict {
	if i == nil {
		return wamp.Dict{}
	}
	return wamp.Dict{
		wamp.KeyAuthMethod:   i.AuthMethod,
		wamp.KeyAuthID:       i.AuthID,
		wamp.KeyAuthRole:     i.AuthRole,
		wamp.KeyAuthProvider: i.AuthProvider,
	}
}

// IdentityFromDetails reads an identity back from WELCOME details.
func IdentityFromDetails(details wamp.Dict) *Identity {
	return &Identity{
		AuthMethod:   wamp.String(details, wamp.KeyAuthMethod),
		AuthID:       wamp.String(details, wamp.KeyAuthID),
		AuthRole:     wamp.String(details, wamp.KeyAuthRole),
		AuthProvider: wamp.String(details, wamp.KeyAuthProvider),
	}
}
