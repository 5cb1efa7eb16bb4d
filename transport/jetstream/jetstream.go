// Package jetstream carries WAMP sessions over NATS JetStream. Every session
// topic is a subject in one stream, read by a durable pull consumer that keeps
// a single message in flight, so delivery stays ordered and survives restarts.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	idspkg "github.com/drblury/protowamp/internal/runtime/ids"
	"github.com/drblury/protowamp/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats-jetstream"

const (
	// DefaultStream names the stream holding every session subject.
	DefaultStream = "PROTOWAMP"

	// DefaultAckWait is how long a delivered message may stay unacked before
	// JetStream redelivers it.
	DefaultAckWait = 30 * time.Second

	// DefaultMaxAge bounds how long unread messages are kept.
	DefaultMaxAge = 24 * time.Hour

	// HeaderUUID carries the watermill message UUID. JetStream also uses it
	// to drop duplicate publishes.
	HeaderUUID = nats.MsgIdHdr

	fetchWait = time.Second
)

// ErrClosed is returned by Publish and Subscribe after Close.
var ErrClosed = errors.New("jetstream: transport is closed")

// ConnectFactory allows overriding the connection creation for testing.
var ConnectFactory = func(url string, opts ...nats.Option) (*nats.Conn, error) {
	return nats.Connect(url, opts...)
}

func init() {
	Register()
}

// Register registers the JetStream transport with the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSJetStreamCapabilities)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Config holds the JetStream settings.
type Config struct {
	URL      string
	Stream   string
	AckWait  time.Duration
	MaxAge   time.Duration
	Replicas int
}

func (c Config) withDefaults() Config {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	return c
}

// Build connects to the server named by the NATS URL and makes sure the
// session stream exists.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	t, err := New(Config{URL: cfg.GetNATSURL()}, logger)
	if err != nil {
		return transport.Transport{}, err
	}
	return transport.Transport{
		Publisher:  t,
		Subscriber: t,
	}, nil
}

// Transport is a watermill Publisher and Subscriber backed by JetStream.
type Transport struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	cfg    Config
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New connects and provisions the stream.
func New(cfg Config, logger watermill.LoggerAdapter) (*Transport, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	nc, err := ConnectFactory(cfg.URL, nats.Name("protowamp"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	t := &Transport{
		nc:     nc,
		js:     js,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
	if err := t.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return t, nil
}

func (t *Transport) streamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:     t.cfg.Stream,
		Subjects: []string{t.cfg.Stream + ".>"},
		MaxAge:   t.cfg.MaxAge,
		Replicas: t.cfg.Replicas,
		Storage:  nats.FileStorage,
	}
}

func (t *Transport) ensureStream() error {
	sc := t.streamConfig()
	if _, err := t.js.AddStream(sc); err != nil {
		if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return fmt.Errorf("add stream %s: %w", sc.Name, err)
		}
		if _, err := t.js.UpdateStream(sc); err != nil {
			return fmt.Errorf("update stream %s: %w", sc.Name, err)
		}
	}
	return nil
}

// Subject maps a session topic into the stream.
func Subject(stream, topic string) string {
	return stream + "." + topic
}

var durableReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// Durable names the consumer of a topic. Consumer names cannot hold subject
// separators or wildcards.
func Durable(topic string) string {
	return "protowamp_" + durableReplacer.Replace(topic)
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Publish stores messages in order; each publish waits for the stream's ack.
func (t *Transport) Publish(topic string, messages ...*message.Message) error {
	if t.isClosed() {
		return ErrClosed
	}
	subject := Subject(t.cfg.Stream, topic)
	for _, msg := range messages {
		if _, err := t.js.PublishMsg(toNATS(subject, msg)); err != nil {
			return fmt.Errorf("publish to %s: %w", subject, err)
		}
	}
	return nil
}

// Subscribe binds the durable consumer of topic and streams its messages.
// The next message is fetched only after the previous one was acked.
func (t *Transport) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}

	sub, err := t.js.PullSubscribe(
		Subject(t.cfg.Stream, topic),
		Durable(topic),
		nats.BindStream(t.cfg.Stream),
		nats.AckExplicit(),
		nats.MaxAckPending(1),
		nats.AckWait(t.cfg.AckWait),
		nats.DeliverAll(),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	t.subs = append(t.subs, sub)

	out := make(chan *message.Message)
	t.wg.Add(1)
	go t.consume(ctx, sub, topic, out)
	return out, nil
}

func (t *Transport) consume(ctx context.Context, sub *nats.Subscription, topic string, out chan<- *message.Message) {
	defer t.wg.Done()
	defer close(out)
	fields := watermill.LogFields{"topic": topic, "durable": Durable(topic)}

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		batch, err := sub.Fetch(1, nats.MaxWait(fetchWait))
		switch {
		case errors.Is(err, nats.ErrTimeout):
			continue
		case errors.Is(err, nats.ErrBadSubscription), errors.Is(err, nats.ErrConnectionClosed):
			return
		case err != nil:
			t.logger.Error("Fetching from JetStream failed", err, fields)
			select {
			case <-time.After(fetchWait):
			case <-ctx.Done():
				return
			case <-t.done:
				return
			}
			continue
		}

		for _, m := range batch {
			if !t.deliver(ctx, m, out, fields) {
				return
			}
		}
	}
}

// deliver hands one message to the router and settles it with JetStream.
// A nack leaves it to be redelivered before anything newer.
func (t *Transport) deliver(ctx context.Context, m *nats.Msg, out chan<- *message.Message, fields watermill.LogFields) bool {
	msg := fromNATS(m)
	msg.SetContext(ctx)

	select {
	case out <- msg:
	case <-ctx.Done():
		return false
	case <-t.done:
		return false
	}

	select {
	case <-msg.Acked():
		if err := m.AckSync(); err != nil {
			t.logger.Error("Acking JetStream message failed", err, fields)
		}
	case <-msg.Nacked():
		if err := m.Nak(); err != nil {
			t.logger.Error("Nacking JetStream message failed", err, fields)
		}
	case <-ctx.Done():
		return false
	case <-t.done:
		return false
	}
	return true
}

func toNATS(subject string, msg *message.Message) *nats.Msg {
	m := nats.NewMsg(subject)
	m.Data = msg.Payload
	for k, v := range msg.Metadata {
		m.Header[k] = []string{v}
	}
	m.Header[HeaderUUID] = []string{msg.UUID}
	return m
}

func fromNATS(m *nats.Msg) *message.Message {
	uuid := m.Header.Get(HeaderUUID)
	if uuid == "" {
		uuid = idspkg.CreateULID()
	}
	msg := message.NewMessage(uuid, m.Data)
	for k, v := range m.Header {
		if k == HeaderUUID || len(v) == 0 {
			continue
		}
		msg.Metadata[k] = v[0]
	}
	return msg
}

// Close stops every consumer and closes the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			t.logger.Debug("Unsubscribing from JetStream failed", watermill.LogFields{"error": err.Error()})
		}
	}
	t.wg.Wait()
	if t.nc != nil {
		t.nc.Close()
	}
	return nil
}
