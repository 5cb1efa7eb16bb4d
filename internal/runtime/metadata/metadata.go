// Package metadata holds the headers carried next to every encoded WAMP
// message on the transport.
package metadata

import (
	"maps"
	"strconv"
)

// Keys set on every outbound message.
const (
	SessionID   = "wamp_session_id"
	MessageType = "wamp_message_type"
)

// Metadata is the header set of one transport message.
type Metadata map[string]string

// New builds Metadata from alternating key/value pairs. A trailing key
// without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// ForMessage returns the headers of one message sent by session id.
func ForMessage(sessionID int64, messageType string) Metadata {
	return Metadata{
		SessionID:   strconv.FormatInt(sessionID, 10),
		MessageType: messageType,
	}
}

// Session returns the id of the sending session. Clients send 0 until
// WELCOME.
func (m Metadata) Session() (int64, bool) {
	raw, ok := m[SessionID]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

// Type returns the message type name, empty when absent.
func (m Metadata) Type() string { return m[MessageType] }

// Merge returns a copy of m overlaid with other.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	maps.Copy(out, m)
	maps.Copy(out, other)
	return out
}
