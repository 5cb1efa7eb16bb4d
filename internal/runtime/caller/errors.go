package caller

import (
	"errors"
	"fmt"

	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// TooManyCalls is the id returned together with ErrTooManyCalls when the
// concurrency cap is reached. No CALL was sent.
const TooManyCalls wamp.ID = -1

var (
	ErrRoleViolation = errors.New("protowamp: role violation")
	ErrTooManyCalls  = errors.New("protowamp: too many concurrent calls")
	ErrUnknownCall   = errors.New("protowamp: unknown call")
	ErrCallerClosed  = errors.New("protowamp: caller is closed")
)

// RoleViolationError reports a caller operation on a session whose local
// role cannot perform it.
type RoleViolationError struct {
	Op      string
	Session wamp.ID
	// Router is set when the session is the router side; otherwise the
	// session lacks the caller role.
	Router bool
}

func (e *RoleViolationError) Error() string {
	if e.Router {
		return fmt.Sprintf("protowamp: %s is not allowed on router session %d", e.Op, e.Session)
	}
	return fmt.Sprintf("protowamp: %s requires the %s role on session %d", e.Op, wamp.RoleCaller, e.Session)
}

func (e *RoleViolationError) Unwrap() error { return ErrRoleViolation }
