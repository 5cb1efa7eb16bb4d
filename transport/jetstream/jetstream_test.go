package jetstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/protowamp/internal/runtime/metadata"
	"github.com/drblury/protowamp/transport"
	"github.com/drblury/protowamp/transport/transporttest"
)

func TestRegister(t *testing.T) {
	reg := transport.DefaultRegistry
	t.Cleanup(func() { transport.DefaultRegistry = reg })
	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "nats-jetstream", caps.Name)
	assert.True(t, caps.SupportsSessions())
	assert.True(t, caps.SupportsReliableDelivery())
	assert.Equal(t, transport.NATSJetStreamCapabilities, Capabilities())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultStream, cfg.Stream)
	assert.Equal(t, DefaultAckWait, cfg.AckWait)
	assert.Equal(t, DefaultMaxAge, cfg.MaxAge)
	assert.Equal(t, 1, cfg.Replicas)

	custom := Config{Stream: "WAMP", AckWait: time.Minute, MaxAge: time.Hour, Replicas: 3}.withDefaults()
	assert.Equal(t, Config{Stream: "WAMP", AckWait: time.Minute, MaxAge: time.Hour, Replicas: 3}, custom)
}

func TestSubjectAndDurableNames(t *testing.T) {
	assert.Equal(t, "PROTOWAMP.wamp.router.in", Subject(DefaultStream, "wamp.router.in"))
	assert.Equal(t, "protowamp_wamp_router_in", Durable("wamp.router.in"))
	assert.Equal(t, "protowamp_a_b_c_d", Durable("a.b*c>d"))
}

func TestStreamConfigCoversEverySubject(t *testing.T) {
	tr := &Transport{cfg: Config{Stream: "WAMP"}.withDefaults()}
	sc := tr.streamConfig()
	assert.Equal(t, "WAMP", sc.Name)
	assert.Equal(t, []string{"WAMP.>"}, sc.Subjects)
	assert.Equal(t, nats.FileStorage, sc.Storage)
}

func TestMessageConversionKeepsUUIDAndHeaders(t *testing.T) {
	msg := message.NewMessage("01HZX", []byte(`[48,1,{},"add"]`))
	msg.Metadata = metadata.ToWatermill(metadata.ForMessage(7, "CALL"))

	m := toNATS("PROTOWAMP.wamp.router.in", msg)
	assert.Equal(t, "PROTOWAMP.wamp.router.in", m.Subject)
	assert.Equal(t, "01HZX", m.Header.Get(nats.MsgIdHdr))
	assert.Equal(t, "7", m.Header.Get(metadata.SessionID))

	back := fromNATS(m)
	assert.Equal(t, "01HZX", back.UUID)
	assert.Equal(t, msg.Payload, back.Payload)
	assert.Equal(t, "CALL", back.Metadata.Get(metadata.MessageType))
	assert.NotContains(t, back.Metadata, HeaderUUID)
}

func TestFromNATSWithoutUUID(t *testing.T) {
	back := fromNATS(nats.NewMsg("PROTOWAMP.x"))
	assert.Len(t, back.UUID, 26)
}

func TestBuildPropagatesConnectError(t *testing.T) {
	orig := ConnectFactory
	t.Cleanup(func() { ConnectFactory = orig })
	var gotURL string
	ConnectFactory = func(url string, _ ...nats.Option) (*nats.Conn, error) {
		gotURL = url
		return nil, errors.New("no servers")
	}

	_, err := Build(context.Background(), &transporttest.Config{NATSURL: "nats://js:4222"}, watermill.NopLogger{})
	require.ErrorContains(t, err, "connect to nats: no servers")
	assert.Equal(t, "nats://js:4222", gotURL)
}

func TestClosedTransportRejectsUse(t *testing.T) {
	tr := &Transport{cfg: Config{}.withDefaults(), logger: watermill.NopLogger{}, done: make(chan struct{})}
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	assert.ErrorIs(t, tr.Publish("wamp.router.in", message.NewMessage("1", nil)), ErrClosed)
	_, err := tr.Subscribe(context.Background(), "wamp.router.in")
	assert.ErrorIs(t, err, ErrClosed)
}
