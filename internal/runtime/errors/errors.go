package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrServiceRequired   = sterrors.New("protowamp: service is required")
	ErrConfigRequired    = sterrors.New("protowamp: configuration is required")
	ErrLoggerRequired    = sterrors.New("protowamp: logger is required")
	ErrSessionRequired   = sterrors.New("protowamp: session is required")
	ErrPublisherRequired = sterrors.New("protowamp: publisher is required")
	ErrTopicRequired     = sterrors.New("protowamp: topic is required")
	ErrSessionClosed     = sterrors.New("protowamp: session is closed")
	ErrSessionExists     = sterrors.New("protowamp: session already exists")
	ErrUnknownSession    = sterrors.New("protowamp: unknown session")
	ErrMessageTooLarge   = sterrors.New("protowamp: message exceeds transport limit")
)

// ConfigValidationError marks a configuration problem found before startup.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("protowamp: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err, or returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}

// UnprocessableMessageError marks an inbound message that can never be
// handled, such as one that does not decode. The router forwards these to
// the poison queue instead of retrying them.
type UnprocessableMessageError struct {
	UUID string
	Err  error
}

func (e *UnprocessableMessageError) Error() string {
	return fmt.Sprintf("protowamp: unprocessable message %s: %v", e.UUID, e.Err)
}

func (e *UnprocessableMessageError) Unwrap() error { return e.Err }
