// Package transports imports all built-in transports for auto-registration.
// Import this package to have all transports registered with the default registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/drblury/protowamp/transport/aws"
	_ "github.com/drblury/protowamp/transport/channel"
	_ "github.com/drblury/protowamp/transport/http"
	_ "github.com/drblury/protowamp/transport/jetstream"
	_ "github.com/drblury/protowamp/transport/kafka"
	_ "github.com/drblury/protowamp/transport/nats"
	_ "github.com/drblury/protowamp/transport/rabbitmq"
)
