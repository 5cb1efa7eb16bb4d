package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed is returned when a response does not match the
	// pending challenge or the ticket is rejected.
	ErrAuthenticationFailed = errors.New("protowamp: authentication failed")
	// ErrNoPendingChallenge is returned when AUTHENTICATE arrives for a
	// session that was never challenged by the same method.
	ErrNoPendingChallenge = errors.New("protowamp: no pending challenge")
	// ErrChallengeExpired is returned when the response came after the
	// challenge timeout.
	ErrChallengeExpired = errors.New("protowamp: challenge expired")
	// ErrUnknownAuthMethod is returned when no registered negotiator accepts
	// the methods a peer offers.
	ErrUnknownAuthMethod = errors.New("protowamp: unknown auth method")
)

// SignatureError reports that a challenge signature could not be computed.
// It fails the handshake it belongs to and nothing else.
type SignatureError struct {
	Method string
	Err    error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("protowamp: %s signature: %v", e.Method, e.Err)
}

func (e *SignatureError) Unwrap() error { return e.Err }
