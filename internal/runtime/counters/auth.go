package counters

import "github.com/drblury/protowamp/internal/runtime/stats"

const (
	slotChallenged = iota
	slotAuthenticated
	slotFailed
)

// AuthCounters counts handshake outcomes so failed authentication stays
// distinguishable from other errors.
type AuthCounters struct {
	stats.Group
}

// NewAuthCounters returns a detached auth counter group.
func NewAuthCounters(name string) *AuthCounters {
	c := &AuthCounters{}
	c.Group.Init(name, "challenged", "authenticated", "failed")
	return c
}

// OnChallenge counts a CHALLENGE sent or answered.
func (c *AuthCounters) OnChallenge() { c.record(slotChallenged) }

// OnAuthenticated counts a handshake that ended in WELCOME.
func (c *AuthCounters) OnAuthenticated() { c.record(slotAuthenticated) }

// OnFailed counts a handshake that ended in ABORT.
func (c *AuthCounters) OnFailed() { c.record(slotFailed) }

// record counts slot here and on the nearest AuthCounters ancestor.

func (c *AuthCounters) record(slot int) {
	if c == nil {
		return
	}
	c.Add(slot, 1)
	if parent, ok := nearest[*AuthCounters](c); ok {
		parent.record(slot)
	}
}

// Challenged returns the number of challenges.
func (c *AuthCounters) Challenged() int64 { return c.value(slotChallenged) }

// Authenticated returns the number of successful handshakes.
func (c *AuthCounters) Authenticated() int64 { return c.value(slotAuthenticated) }

// Failed returns the number of failed handshakes.
func (c *AuthCounters) Failed() int64 { return c.value(slotFailed) }

func (c *AuthCounters) value(slot int) int64 {
	if c == nil {
		return 0
	}
	return c.Value(slot)
}

// Clone returns an empty, unmounted AuthCounters named name.
func (c *AuthCounters) Clone(name string) stats.Node {
	return NewAuthCounters(name)
}
