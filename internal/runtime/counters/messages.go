package counters

import (
	"strings"

	"github.com/drblury/protowamp/internal/runtime/stats"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// Slots 0 and 1 count every message sent and received; known type i (in
// wamp.Types order) also counts in 2(i+1) for sent and 2(i+1)+1 for
// received. Types outside the table only count in the totals.
var (
	messageSlots        = map[wamp.MessageType]int{}
	messageCounterNames []string
)

func init() {
	messageCounterNames = append(messageCounterNames, "all.sent", "all.received")
	for i, t := range wamp.Types() {
		messageSlots[t] = 2 * (i + 1)
		name := strings.ToLower(t.String())
		messageCounterNames = append(messageCounterNames, name+".sent", name+".received")
	}
}

const (
	allSent     = 0
	allReceived = 1
)

func sentSlot(t wamp.MessageType) (int, bool) {
	slot, ok := messageSlots[t]
	return slot, ok
}

// MessageCounters counts sent and received messages per message type. All
// methods are safe on a nil receiver.
type MessageCounters struct {
	stats.Group
}

// NewMessageCounters returns a detached message counter group.
func NewMessageCounters(name string) *MessageCounters {
	c := &MessageCounters{}
	c.Group.Init(name, messageCounterNames...)
	return c
}

// OnSent counts msg in the sent total and in its type's sent slot, then
// rolls up into the nearest MessageCounters ancestor.
func (c *MessageCounters) OnSent(msg wamp.Message) {
	if c == nil {
		return
	}
	c.Add(allSent, 1)
	if slot, ok := sentSlot(typeOf(msg)); ok {
		c.Add(slot, 1)
	}
	if parent, ok := nearest[*MessageCounters](c); ok {
		parent.OnSent(msg)
	}
}

// OnReceived is OnSent for inbound messages.
func (c *MessageCounters) OnReceived(msg wamp.Message) {
	if c == nil {
		return
	}
	c.Add(allReceived, 1)
	if slot, ok := sentSlot(typeOf(msg)); ok {
		c.Add(slot+1, 1)
	}
	if parent, ok := nearest[*MessageCounters](c); ok {
		parent.OnReceived(msg)
	}
}

// Sent returns how many messages of type t were sent.
func (c *MessageCounters) Sent(t wamp.MessageType) int64 {
	slot, ok := sentSlot(t)
	if c == nil || !ok {
		return 0
	}
	return c.Value(slot)
}

// Received returns how many messages of type t were received.
func (c *MessageCounters) Received(t wamp.MessageType) int64 {
	slot, ok := sentSlot(t)
	if c == nil || !ok {
		return 0
	}
	return c.Value(slot + 1)
}

// SentTotal returns how many messages of any type were sent.
func (c *MessageCounters) SentTotal() int64 {
	if c == nil {
		return 0
	}
	return c.Value(allSent)
}

// ReceivedTotal returns how many messages of any type were received.
func (c *MessageCounters) ReceivedTotal() int64 {
	if c == nil {
		return 0
	}
	return c.Value(allReceived)
}

// Valid hides message types that were never seen.
func (c *MessageCounters) Valid(index int) bool {
	return c.Group.Valid(index) && c.Get(index) > 0
}

// Clone returns an empty, unmounted MessageCounters named name.
func (c *MessageCounters) Clone(name string) stats.Node {
	return NewMessageCounters(name)
}

func typeOf(msg wamp.Message) wamp.MessageType {
	if msg == nil {
		return 0
	}
	return msg.Type()
}
