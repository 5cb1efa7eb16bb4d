// Package protowamp hosts WAMP sessions on top of Watermill. Each session
// reads JSON-array WAMP messages from an inbound topic and publishes its
// replies on an outbound topic, so routers and clients can talk over any
// broker Watermill supports instead of a WebSocket.
//
// Service owns the router, the transport and the authentication registry.
// OpenSession adds a router session (answering HELLO with CHALLENGE, WELCOME
// or ABORT) or a client session (joining with HELLO and issuing calls through
// its Caller). Sessions, calls, challenges and auth outcomes are counted in a
// statistics tree that is exported to Prometheus and served as JSON.
//
// # Transports
//
// The transport is picked by Config.PubSubSystem:
//   - channel: In-memory Go channels for testing
//   - kafka: Ordered partitions, suitable for sessions
//   - rabbitmq: AMQP-based durable queues
//   - aws: AWS SNS/SQS with LocalStack support
//   - nats: NATS Core subjects
//   - nats-jetstream: Durable, ordered JetStream consumers
//   - http: Request/response messaging
//
// # Authentication
//
// Router sessions negotiate anonymous, wampcra (HMAC-SHA256 signed
// challenges) and ticket authentication. Further negotiators can be supplied
// through ServiceDependencies.Negotiators.
//
// # Middleware
//
// The default middleware chain includes correlation ID injection, structured
// logging, OpenTelemetry tracing, Prometheus metrics, retry with exponential
// backoff, poison queue forwarding of undecodable messages, and panic
// recovery. Custom middleware can be added via ServiceDependencies.Middlewares.
//
// # Session Hooks
//
// SessionHooks observe sessions being opened, established and closed.
// LoggingHooks provides a ready-made set.
package protowamp
