// Package wamp holds the wire vocabulary of the protocol: message type codes,
// the modelled messages, detail keys, roles, features and reserved URIs, and
// the JSON array codec.
package wamp

import "strconv"

// MessageType is the integer code that leads every wire message.
type MessageType int

const (
	TypeHello        MessageType = 1
	TypeWelcome      MessageType = 2
	TypeAbort        MessageType = 3
	TypeChallenge    MessageType = 4
	TypeAuthenticate MessageType = 5
	TypeGoodbye      MessageType = 6
	TypeError        MessageType = 8
	TypePublish      MessageType = 16
	TypePublished    MessageType = 17
	TypeSubscribe    MessageType = 32
	TypeSubscribed   MessageType = 33
	TypeUnsubscribe  MessageType = 34
	TypeUnsubscribed MessageType = 35
	TypeEvent        MessageType = 36
	TypeCall         MessageType = 48
	TypeCancel       MessageType = 49
	TypeResult       MessageType = 50
	TypeRegister     MessageType = 64
	TypeRegistered   MessageType = 65
	TypeUnregister   MessageType = 66
	TypeUnregistered MessageType = 67
	TypeInvocation   MessageType = 68
	TypeInterrupt    MessageType = 69
	TypeYield        MessageType = 70
)

var typeNames = map[MessageType]string{
	TypeHello:        "HELLO",
	TypeWelcome:      "WELCOME",
	TypeAbort:        "ABORT",
	TypeChallenge:    "CHALLENGE",
	TypeAuthenticate: "AUTHENTICATE",
	TypeGoodbye:      "GOODBYE",
	TypeError:        "ERROR",
	TypePublish:      "PUBLISH",
	TypePublished:    "PUBLISHED",
	TypeSubscribe:    "SUBSCRIBE",
	TypeSubscribed:   "SUBSCRIBED",
	TypeUnsubscribe:  "UNSUBSCRIBE",
	TypeUnsubscribed: "UNSUBSCRIBED",
	TypeEvent:        "EVENT",
	TypeCall:         "CALL",
	TypeCancel:       "CANCEL",
	TypeResult:       "RESULT",
	TypeRegister:     "REGISTER",
	TypeRegistered:   "REGISTERED",
	TypeUnregister:   "UNREGISTER",
	TypeUnregistered: "UNREGISTERED",
	TypeInvocation:   "INVOCATION",
	TypeInterrupt:    "INTERRUPT",
	TypeYield:        "YIELD",
}

var allTypes = []MessageType{
	TypeHello, TypeWelcome, TypeAbort, TypeChallenge, TypeAuthenticate, TypeGoodbye,
	TypeError, TypePublish, TypePublished, TypeSubscribe, TypeSubscribed,
	TypeUnsubscribe, TypeUnsubscribed, TypeEvent, TypeCall, TypeCancel, TypeResult,
	TypeRegister, TypeRegistered, TypeUnregister, TypeUnregistered, TypeInvocation,
	TypeInterrupt, TypeYield,
}

// Types returns every known message type in ascending code order.
func Types() []MessageType {
	out := make([]MessageType, len(allTypes))
	copy(out, allTypes)
	return out
}

// Known reports whether t is a message type of the protocol.
func (t MessageType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

func (t MessageType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
}

// ID is a session or request identifier. The protocol keeps them in [1, 2^53].
type ID = int64

// MaxID is the largest identifier the protocol allows.
const MaxID ID = 1 << 53

// Dict is a details, options or keyword-arguments map.
type Dict = map[string]any

// List is a positional-arguments list.
type List = []any

// Roles a peer may announce.
const (
	RoleCaller     = "caller"
	RoleCallee     = "callee"
	RolePublisher  = "publisher"
	RoleSubscriber = "subscriber"
	RoleDealer     = "dealer"
	RoleBroker     = "broker"
)

// Advanced profile features negotiated per role.
const (
	FeatureCallCanceling          = "call_canceling"
	FeatureProgressiveCallResults = "progressive_call_results"
	FeatureCallTimeout            = "call_timeout"
)

// Cancel modes. A session without call canceling only understands skip.
const (
	CancelSkip       = "skip"
	CancelKill       = "kill"
	CancelKillNoWait = "killnowait"
)

// Detail and option keys.
const (
	KeyRoles           = "roles"
	KeyFeatures        = "features"
	KeyAuthMethods     = "authmethods"
	KeyAuthID          = "authid"
	KeyAuthRole        = "authrole"
	KeyAuthProvider    = "authprovider"
	KeyAuthMethod      = "authmethod"
	KeyChallenge       = "challenge"
	KeyProgress        = "progress"
	KeyReceiveProgress = "receive_progress"
	KeyTimeout         = "timeout"
	KeyMode            = "mode"
	KeyReason          = "reason"
	KeyMessage         = "message"
)

// Reserved URIs.
const (
	URINoSuchProcedure      = "wamp.error.no_such_procedure"
	URINotAuthorized        = "wamp.error.not_authorized"
	URIAuthenticationFailed = "wamp.error.authentication_failed"
	URICanceled             = "wamp.error.canceled"
	URINoSuchRealm          = "wamp.error.no_such_realm"
	URIProtocolViolation    = "wamp.error.protocol_violation"
	URICloseNormal          = "wamp.close.normal"
	URIGoodbyeAndOut        = "wamp.close.goodbye_and_out"
)
