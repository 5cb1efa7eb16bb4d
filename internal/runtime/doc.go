/*
Package runtime hosts WAMP sessions on top of Watermill.

# Architecture Overview

Every session owns an inbound topic, consumed by one Watermill router
handler, and an outbound topic its replies are published on. A Service can
host router sessions (answering HELLO with CHALLENGE, WELCOME or ABORT) and
client sessions (joining with HELLO and issuing calls) side by side, over any
transport built by the transport sub-package.

# Package Structure

## Core Service (service.go)

The Service struct wires together:
  - Message router (Watermill)
  - Publisher and subscriber connections
  - Authentication registry
  - Statistics tree shared by every session
  - HTTP servers for metrics and statistics

## Sessions (sessions.go, dispatch.go)

OpenSession registers a HostedSession and its handler. Client sessions are
stored under a provisional negative key and rekeyed to the id WELCOME
assigns. Messages are decoded and dispatched per session type; anything the
Service has no handling for goes to SessionConfig.Unhandled.

## Middleware (middleware.go)

  - CorrelationID: Ensures message traceability
  - LogMessages: Debug logging of message payloads
  - Tracer: OpenTelemetry distributed tracing
  - Metrics: Prometheus router metrics and the statistics collector
  - Retry: Exponential backoff retry logic
  - PoisonQueue: Poison queue for undecodable messages
  - Recoverer: Panic recovery

## Hooks (hooks.go)

SessionHooks observe sessions being opened, established and closed.

## Statistics (statistics.go)

HTTP API exposing the statistics tree as JSON or as a text dump.

# Sub-packages

  - auth/: Anonymous, WAMP-CRA and ticket negotiators
  - caller/: Outstanding call ledger, timeouts and cancellation
  - config/: Service configuration with validation
  - counters/: Protocol counter groups and the Prometheus collector
  - errors/: Sentinel errors and error types
  - ids/: ULIDs and session id sequences
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface and adapters
  - metadata/: Headers carried next to encoded messages
  - session/: Peer state and the session holder
  - stats/: Counter arena, groups and trees
  - transport/: Pub/sub transport factory
  - wamp/: Message types and codec

# Usage Example

	svc, err := protowamp.NewService(&protowamp.Config{
		PubSubSystem: "nats",
		NATSURL:      "nats://localhost:4222",
		AuthMethods:  []string{"wampcra"},
		AuthID:       "alice",
		AuthSecret:   "s3cret",
	}, logger, ctx, protowamp.ServiceDependencies{})
	if err != nil {
		return err
	}

	sess, err := svc.OpenSession(protowamp.SessionConfig{
		Features: map[string][]string{"caller": {"call_canceling"}},
		InTopic:  "wamp.client.in",
		OutTopic: "wamp.router.in",
	})
	if err != nil {
		return err
	}
	go svc.Start(ctx)
	_ = sess.Join()
*/
package runtime
