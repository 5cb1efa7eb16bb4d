package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/eapache/queue"

	"github.com/drblury/protowamp/internal/runtime/counters"
	errspkg "github.com/drblury/protowamp/internal/runtime/errors"
	idspkg "github.com/drblury/protowamp/internal/runtime/ids"
	"github.com/drblury/protowamp/internal/runtime/logging"
	metadatapkg "github.com/drblury/protowamp/internal/runtime/metadata"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

// Metadata keys set on every outbound Watermill message.
const (
	MetadataSessionID   = metadatapkg.SessionID
	MetadataMessageType = metadatapkg.MessageType
)

// PeerConfig describes one side of a connection.
type PeerConfig struct {
	// ID is the session id. Clients leave it zero until WELCOME.
	ID     wamp.ID
	Router bool
	Roles  []string
	// Features are the advanced features negotiated for this session.
	Features []string

	Publisher message.Publisher
	// Topic is where encoded outbound messages are published.
	Topic string

	// MaxMessageSize rejects larger encoded messages. Zero means unlimited.
	MaxMessageSize int64

	Stats  *counters.Tree
	Logger logging.ServiceLogger
}

// MaxUndelivered bounds how many failed messages a peer remembers.
const MaxUndelivered = 64

// Peer is a Session that encodes each message and publishes it on a topic.
// A message whose publish fails is never sent: Send reports the error and the
// message is kept only in the undelivered log.
type Peer struct {
	id       atomic.Int64
	router   bool
	roles    mapset.Set[string]
	features mapset.Set[string]
	seq      idspkg.Sequence
	identity atomic.Pointer[Identity]

	publisher message.Publisher
	topic     string
	maxSize   int64
	stats     *counters.Tree
	logger    logging.ServiceLogger

	mu          sync.Mutex
	undelivered *queue.Queue
	closed      bool
}

// NewPeer validates cfg and returns a ready peer.
func NewPeer(cfg PeerConfig) (*Peer, error) {
	if cfg.Publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if cfg.Topic == "" {
		return nil, errspkg.ErrTopicRequired
	}
	p := &Peer{
		router:      cfg.Router,
		roles:       mapset.NewSet(cfg.Roles...),
		features:    mapset.NewSet(cfg.Features...),
		publisher:   cfg.Publisher,
		topic:       cfg.Topic,
		maxSize:     cfg.MaxMessageSize,
		stats:       cfg.Stats,
		logger:      logging.OrNop(cfg.Logger),
		undelivered: queue.New(),
	}
	p.id.Store(cfg.ID)
	return p, nil
}

func (p *Peer) ID() wamp.ID                { return p.id.Load() }
func (p *Peer) NextRequestID() wamp.ID     { return p.seq.Next() }
func (p *Peer) IsRouter() bool             { return p.router }
func (p *Peer) Statistics() *counters.Tree { return p.stats }
func (p *Peer) Topic() string              { return p.topic }

func (p *Peer) HasLocalRole(role string) bool {
	return p.roles.Contains(role)
}

func (p *Peer) SupportsFeature(feature string) bool {
	return p.features.Contains(feature)
}

// Roles returns the local roles.
func (p *Peer) Roles() []string {
	return p.roles.ToSlice()
}

// Adopt takes over the session id and features a router assigned in WELCOME.
func (p *Peer) Adopt(id wamp.ID, features ...string) {
	p.id.Store(id)
	p.features.Append(features...)
}

// SetFeatures records the features negotiated with the remote side.
func (p *Peer) SetFeatures(features ...string) {
	p.features.Append(features...)
}

func (p *Peer) SetIdentity(identity *Identity) {
	p.identity.Store(identity)
}

// Identity returns the authenticated identity, nil before authentication.
func (p *Peer) Identity() *Identity {
	return p.identity.Load()
}

// Received counts an inbound message.
func (p *Peer) Received(msg wamp.Message) {
	if p.stats != nil {
		p.stats.Messages.OnReceived(msg)
	}
}

// Send encodes msg and publishes it. Sends are serialized, so messages leave
// in call order.
func (p *Peer) Send(msg wamp.Message) error {
	payload, err := wamp.Encode(msg)
	if err != nil {
		return err
	}
	if p.maxSize > 0 && int64(len(payload)) > p.maxSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", errspkg.ErrMessageTooLarge, msg.Type(), len(payload), p.maxSize)
	}
	wire := message.NewMessage(idspkg.CreateULID(), payload)
	wire.Metadata = metadatapkg.ToWatermill(metadatapkg.ForMessage(p.ID(), msg.Type().String()))
	middleware.SetCorrelationID(idspkg.CreateULID(), wire)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errspkg.ErrSessionClosed
	}
	if err := p.publisher.Publish(p.topic, wire); err != nil {
		if p.undelivered.Length() >= MaxUndelivered {
			p.undelivered.Remove()
		}
		p.undelivered.Add(msg)
		p.logger.Error("Publishing wamp message failed", err, logging.LogFields{
			"session_id": p.ID(),
			"type":       msg.Type().String(),
		})
		return fmt.Errorf("publish %s on %s: %w", msg.Type(), p.topic, err)
	}
	if p.stats != nil {
		p.stats.Messages.OnSent(msg)
	}
	return nil
}

// Undelivered returns the most recent messages whose publish failed, oldest
// first.
func (p *Peer) Undelivered() []wamp.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]wamp.Message, p.undelivered.Length())
	for i := range out {
		out[i] = p.undelivered.Get(i).(wamp.Message)
	}
	return out
}

// Close stops the peer from sending.
func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

// Closed reports whether Close was called.
func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
