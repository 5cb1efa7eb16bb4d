package wamp

import (
	"errors"
	"fmt"

	"github.com/drblury/protowamp/internal/runtime/jsoncodec"
)

var (
	ErrMalformedMessage   = errors.New("protowamp: malformed wamp message")
	ErrUnsupportedMessage = errors.New("protowamp: unsupported wamp message type")
)

// Encode serialises msg into its JSON array form. Trailing empty argument
// lists and keyword dicts are omitted.
func Encode(msg Message) ([]byte, error) {
	fields, err := toList(msg)
	if err != nil {
		return nil, err
	}
	return jsoncodec.Marshal(fields)
}

func toList(msg Message) (List, error) {
	switch m := msg.(type) {
	case *Hello:
		return List{TypeHello, m.Realm, dictOrEmpty(m.Details)}, nil
	case *Welcome:
		return List{TypeWelcome, m.Session, dictOrEmpty(m.Details)}, nil
	case *Abort:
		return List{TypeAbort, dictOrEmpty(m.Details), m.Reason}, nil
	case *Challenge:
		return List{TypeChallenge, m.AuthMethod, dictOrEmpty(m.Extra)}, nil
	case *Authenticate:
		return List{TypeAuthenticate, m.Signature, dictOrEmpty(m.Extra)}, nil
	case *Goodbye:
		return List{TypeGoodbye, dictOrEmpty(m.Details), m.Reason}, nil
	case *Error:
		out := List{TypeError, m.RequestType, m.Request, dictOrEmpty(m.Details), m.Error}
		return withPayload(out, m.Arguments, m.ArgumentsKw), nil
	case *Call:
		out := List{TypeCall, m.Request, dictOrEmpty(m.Options), m.Procedure}
		return withPayload(out, m.Arguments, m.ArgumentsKw), nil
	case *Cancel:
		return List{TypeCancel, m.Request, dictOrEmpty(m.Options)}, nil
	case *Result:
		out := List{TypeResult, m.Request, dictOrEmpty(m.Details)}
		return withPayload(out, m.Arguments, m.ArgumentsKw), nil
	case *Raw:
		if !m.Kind.Known() {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMessage, m.Kind)
		}
		return append(List{m.Kind}, m.Fields...), nil
	case nil:
		return nil, fmt.Errorf("%w: nil message", ErrMalformedMessage)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedMessage, msg)
}

func dictOrEmpty(d Dict) Dict {
	if d == nil {
		return Dict{}
	}
	return d
}

func withPayload(out List, args List, kwargs Dict) List {
	if len(kwargs) > 0 {
		if args == nil {
			args = List{}
		}
		return append(out, args, kwargs)
	}
	if len(args) > 0 {
		return append(out, args)
	}
	return out
}

// Decode parses a JSON array message. Known but unmodelled message types are
// returned as *Raw.
func Decode(data []byte) (Message, error) {
	var raw List
	if err := jsoncodec.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrMalformedMessage)
	}
	code, ok := toInt64(raw[0])
	if !ok {
		return nil, fmt.Errorf("%w: message type %v is not an integer", ErrMalformedMessage, raw[0])
	}
	t := MessageType(code)
	if !t.Known() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMessage, t)
	}

	f := &fields{kind: t, raw: raw[1:]}
	var msg Message
	switch t {
	case TypeHello:
		msg = &Hello{Realm: f.str(0), Details: f.dict(1)}
	case TypeWelcome:
		msg = &Welcome{Session: f.id(0), Details: f.dict(1)}
	case TypeAbort:
		msg = &Abort{Details: f.dict(0), Reason: f.str(1)}
	case TypeChallenge:
		msg = &Challenge{AuthMethod: f.str(0), Extra: f.dict(1)}
	case TypeAuthenticate:
		msg = &Authenticate{Signature: f.str(0), Extra: f.dict(1)}
	case TypeGoodbye:
		msg = &Goodbye{Details: f.dict(0), Reason: f.str(1)}
	case TypeError:
		msg = &Error{
			RequestType: MessageType(f.id(0)),
			Request:     f.id(1),
			Details:     f.dict(2),
			Error:       f.str(3),
			Arguments:   f.optList(4),
			ArgumentsKw: f.optDict(5),
		}
	case TypeCall:
		msg = &Call{
			Request:     f.id(0),
			Options:     f.dict(1),
			Procedure:   f.str(2),
			Arguments:   f.optList(3),
			ArgumentsKw: f.optDict(4),
		}
	case TypeCancel:
		msg = &Cancel{Request: f.id(0), Options: f.dict(1)}
	case TypeResult:
		msg = &Result{
			Request:     f.id(0),
			Details:     f.dict(1),
			Arguments:   f.optList(2),
			ArgumentsKw: f.optDict(3),
		}
	default:
		msg = &Raw{Kind: t, Fields: raw[1:]}
	}
	if f.err != nil {
		return nil, f.err
	}
	return msg, nil
}

// fields reads positional elements and keeps the first failure.
type fields struct {
	kind MessageType
	raw  List
	err  error
}

func (f *fields) fail(i int, want string) {
	if f.err == nil {
		f.err = fmt.Errorf("%w: %s element %d is not %s", ErrMalformedMessage, f.kind, i+1, want)
	}
}

func (f *fields) at(i int) (any, bool) {
	if i >= len(f.raw) {
		return nil, false
	}
	return f.raw[i], true
}

func (f *fields) id(i int) ID {
	v, _ := f.at(i)
	n, ok := toInt64(v)
	if !ok || n < 0 || n > MaxID {
		f.fail(i, "an id")
		return 0
	}
	return n
}

func (f *fields) str(i int) string {
	v, _ := f.at(i)
	s, ok := v.(string)
	if !ok {
		f.fail(i, "a string")
	}
	return s
}

func (f *fields) dict(i int) Dict {
	v, _ := f.at(i)
	d, ok := v.(Dict)
	if !ok {
		f.fail(i, "a dict")
		return Dict{}
	}
	return d
}

func (f *fields) optList(i int) List {
	v, present := f.at(i)
	if !present {
		return nil
	}
	l, ok := v.(List)
	if !ok {
		f.fail(i, "a list")
	}
	return l
}

func (f *fields) optDict(i int) Dict {
	v, present := f.at(i)
	if !present {
		return nil
	}
	d, ok := v.(Dict)
	if !ok {
		f.fail(i, "a dict")
	}
	return d
}
