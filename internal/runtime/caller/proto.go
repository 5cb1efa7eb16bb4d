package caller

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/protowamp/internal/runtime/jsoncodec"
	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

var (
	protoMarshal   = protojson.MarshalOptions{UseProtoNames: true}
	protoUnmarshal = protojson.UnmarshalOptions{DiscardUnknown: true}
)

// CallProto issues a call whose keyword arguments are the JSON form of payload.
func (c *Caller) CallProto(sess session.Session, options wamp.Dict, procedure string, payload proto.Message, listener Listener) (wamp.ID, error) {
	kwargs, err := ProtoKwargs(payload)
	if err != nil {
		return 0, err
	}
	return c.Call(sess, options, procedure, nil, kwargs, listener)
}

// ProtoKwargs renders payload as a keyword-arguments dict.
func ProtoKwargs(payload proto.Message) (wamp.Dict, error) {
	if payload == nil {
		return nil, nil
	}
	data, err := protoMarshal.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", payload, err)
	}
	var kwargs wamp.Dict
	if err := jsoncodec.Unmarshal(data, &kwargs); err != nil {
		return nil, fmt.Errorf("decode %T kwargs: %w", payload, err)
	}
	return kwargs, nil
}

// DecodeProto fills out from keyword arguments produced by ProtoKwargs or by
// any peer sending the JSON form of the message.
func DecodeProto(kwargs wamp.Dict, out proto.Message) error {
	if kwargs == nil {
		proto.Reset(out)
		return nil
	}
	data, err := jsoncodec.Marshal(kwargs)
	if err != nil {
		return fmt.Errorf("encode kwargs: %w", err)
	}
	if err := protoUnmarshal.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal %T: %w", out, err)
	}
	return nil
}
