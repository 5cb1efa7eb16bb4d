// Package transport builds the publisher and subscriber pair a Service runs
// its sessions over.
package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/drblury/protowamp/internal/runtime/config"
	registry "github.com/drblury/protowamp/transport"

	// Register every built-in backend.
	_ "github.com/drblury/protowamp/transport/transports"
)

// Transport is the built pair plus what the backend guarantees.
type Transport = registry.Transport

// Capabilities is an alias for the backend capability set.
type Capabilities = registry.Capabilities

// Factory abstracts how the Service initialises its message transport.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the factory backed by the default transport registry.
func DefaultFactory() Factory {
	return registryFactory{registry: registry.DefaultRegistry}
}

// RegistryFactory returns a factory backed by reg.
func RegistryFactory(reg *registry.Registry) Factory {
	return registryFactory{registry: reg}
}

type registryFactory struct {
	registry *registry.Registry
}

func (f registryFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, fmt.Errorf("config is required")
	}
	return f.registry.Build(ctx, conf, logger)
}
