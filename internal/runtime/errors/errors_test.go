package errors

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrServiceRequired", ErrServiceRequired, "protowamp: service is required"},
		{"ErrConfigRequired", ErrConfigRequired, "protowamp: configuration is required"},
		{"ErrLoggerRequired", ErrLoggerRequired, "protowamp: logger is required"},
		{"ErrSessionRequired", ErrSessionRequired, "protowamp: session is required"},
		{"ErrPublisherRequired", ErrPublisherRequired, "protowamp: publisher is required"},
		{"ErrTopicRequired", ErrTopicRequired, "protowamp: topic is required"},
		{"ErrSessionClosed", ErrSessionClosed, "protowamp: session is closed"},
		{"ErrSessionExists", ErrSessionExists, "protowamp: session already exists"},
		{"ErrUnknownSession", ErrUnknownSession, "protowamp: unknown session"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("invalid port")
	err := ConfigValidationError{Err: inner}

	want := "protowamp: invalid configuration: invalid port"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if unwrapped := err.Unwrap(); unwrapped != inner {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, inner)
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if err := NewConfigValidationError(nil); err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("errors.Is works with wrapped error", func(t *testing.T) {
		inner := errors.New("specific error")
		err := NewConfigValidationError(inner)

		var cfgErr ConfigValidationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigValidationError, got %T", err)
		}
		if !errors.Is(err, inner) {
			t.Error("errors.Is should match wrapped error")
		}
	})
}

func TestUnprocessableMessageError(t *testing.T) {
	inner := errors.New("bad json")
	var err error = &UnprocessableMessageError{UUID: "abc", Err: inner}

	if got := err.Error(); got != "protowamp: unprocessable message abc: bad json" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is should match wrapped error")
	}
}
