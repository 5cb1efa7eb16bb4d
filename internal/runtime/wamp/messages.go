package wamp

// Message is any wire message.
type Message interface {
	Type() MessageType
}

// Hello opens a session: [HELLO, Realm|uri, Details|dict].
type Hello struct {
	Realm   string
	Details Dict
}

// Welcome confirms a session: [WELCOME, Session|id, Details|dict].
type Welcome struct {
	Session ID
	Details Dict
}

// Abort refuses or tears down a session: [ABORT, Details|dict, Reason|uri].
type Abort struct {
	Details Dict
	Reason  string
}

// Challenge asks the client to authenticate: [CHALLENGE, AuthMethod|string, Extra|dict].
type Challenge struct {
	AuthMethod string
	Extra      Dict
}

// Authenticate answers a challenge: [AUTHENTICATE, Signature|string, Extra|dict].
type Authenticate struct {
	Signature string
	Extra     Dict
}

// Goodbye closes a session: [GOODBYE, Details|dict, Reason|uri].
type Goodbye struct {
	Details Dict
	Reason  string
}

// Error reports a failed request:
// [ERROR, REQUEST.Type|int, REQUEST.Request|id, Details|dict, Error|uri, Arguments|list, ArgumentsKw|dict].
type Error struct {
	RequestType MessageType
	Request     ID
	Details     Dict
	Error       string
	Arguments   List
	ArgumentsKw Dict
}

// Call invokes a procedure:
// [CALL, Request|id, Options|dict, Procedure|uri, Arguments|list, ArgumentsKw|dict].
type Call struct {
	Request     ID
	Options     Dict
	Procedure   string
	Arguments   List
	ArgumentsKw Dict
}

// Cancel asks the dealer to stop a call: [CANCEL, CALL.Request|id, Options|dict].
type Cancel struct {
	Request ID
	Options Dict
}

// Result carries a call outcome:
// [RESULT, CALL.Request|id, Details|dict, YIELD.Arguments|list, YIELD.ArgumentsKw|dict].
type Result struct {
	Request     ID
	Details     Dict
	Arguments   List
	ArgumentsKw Dict
}

// Raw is a message of a known type this package does not model. Fields holds
// the array elements after the type code.
type Raw struct {
	Kind   MessageType
	Fields List
}

func (*Hello) Type() MessageType        { return TypeHello }
func (*Welcome) Type() MessageType      { return TypeWelcome }
func (*Abort) Type() MessageType        { return TypeAbort }
func (*Challenge) Type() MessageType    { return TypeChallenge }
func (*Authenticate) Type() MessageType { return TypeAuthenticate }
func (*Goodbye) Type() MessageType      { return TypeGoodbye }
func (*Error) Type() MessageType        { return TypeError }
func (*Call) Type() MessageType         { return TypeCall }
func (*Cancel) Type() MessageType       { return TypeCancel }
func (*Result) Type() MessageType       { return TypeResult }
func (r *Raw) Type() MessageType        { return r.Kind }

// Progress reports whether the result is one part of a progressive result.
func (r *Result) Progress() bool {
	return Bool(r.Details, KeyProgress)
}

// AuthMethods returns the authentication methods the client advertised, in
// preference order.
func (h *Hello) AuthMethods() []string {
	return Strings(h.Details, KeyAuthMethods)
}

// AuthID returns the identity the client claims.
func (h *Hello) AuthID() string {
	return String(h.Details, KeyAuthID)
}

// Roles returns the role names announced in details.
func Roles(details Dict) []string {
	roles, _ := details[KeyRoles].(Dict)
	out := make([]string, 0, len(roles))
	for role := range roles {
		out = append(out, role)
	}
	return out
}

// Features returns the features set to true under roles.<role>.features.
func Features(details Dict, role string) []string {
	roles, _ := details[KeyRoles].(Dict)
	entry, _ := roles[role].(Dict)
	features, _ := entry[KeyFeatures].(Dict)
	out := make([]string, 0, len(features))
	for name, on := range features {
		if enabled, ok := on.(bool); ok && enabled {
			out = append(out, name)
		}
	}
	return out
}

// RoleDetails builds the roles dict announced in HELLO or WELCOME.
func RoleDetails(features map[string][]string) Dict {
	roles := make(Dict, len(features))
	for role, names := range features {
		set := make(Dict, len(names))
		for _, name := range names {
			set[name] = true
		}
		roles[role] = Dict{KeyFeatures: set}
	}
	return roles
}
