package transport

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/protowamp/internal/runtime/config"
	"github.com/drblury/protowamp/internal/runtime/logging"
	registry "github.com/drblury/protowamp/transport"
	"github.com/drblury/protowamp/transport/transporttest"
)

func testLogger() watermill.LoggerAdapter {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return logging.NewWatermillAdapter(logging.NewSlogServiceLogger(slogger))
}

func TestDefaultFactoryRegistersBuiltins(t *testing.T) {
	for _, name := range []string{"aws", "channel", "http", "kafka", "nats", "rabbitmq"} {
		assert.True(t, registry.DefaultRegistry.Has(name), name)
	}
}

func TestDefaultFactory_BuildChannel(t *testing.T) {
	tr, err := DefaultFactory().Build(context.Background(), &config.Config{PubSubSystem: "channel"}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Publisher.Close() })

	assert.NotNil(t, tr.Publisher)
	assert.NotNil(t, tr.Subscriber)
	assert.True(t, tr.Capabilities.SupportsSessions())
}

func TestDefaultFactory_BuildErrors(t *testing.T) {
	_, err := DefaultFactory().Build(context.Background(), nil, testLogger())
	assert.ErrorContains(t, err, "config is required")

	_, err = DefaultFactory().Build(context.Background(), &config.Config{PubSubSystem: "invalid-transport"}, testLogger())
	assert.ErrorContains(t, err, "unknown transport")
}

func TestRegistryFactory(t *testing.T) {
	reg := registry.NewRegistry()
	reg.RegisterWithCapabilities("fake", func(context.Context, registry.Config, watermill.LoggerAdapter) (registry.Transport, error) {
		return registry.Transport{Publisher: &transporttest.Publisher{}, Subscriber: transporttest.Subscriber{}}, nil
	}, registry.Capabilities{Name: "fake", SupportsOrdering: true})

	tr, err := RegistryFactory(reg).Build(context.Background(), &config.Config{PubSubSystem: "fake"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "fake", tr.Capabilities.Name)
}

func TestFactoryFunc(t *testing.T) {
	called := false
	f := FactoryFunc(func(context.Context, *config.Config, watermill.LoggerAdapter) (Transport, error) {
		called = true
		return Transport{}, nil
	})
	_, err := f.Build(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	assert.True(t, called)
}
