package wamp

import "context"

// BrokerProvider is the router-side publish/subscribe dispatcher a session
// hands PUBLISH, SUBSCRIBE and UNSUBSCRIBE messages to.
type BrokerProvider interface {
	Name() string
	Dispatch(ctx context.Context, session ID, msg Message) error
}

// SubscriberProvider is the client-side subscriber role receiving EVENT,
// SUBSCRIBED and UNSUBSCRIBED messages.
type SubscriberProvider interface {
	Name() string
	Deliver(ctx context.Context, session ID, msg Message) error
}
