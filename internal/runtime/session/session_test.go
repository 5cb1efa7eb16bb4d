package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/protowamp/internal/runtime/counters"
	errspkg "github.com/drblury/protowamp/internal/runtime/errors"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

type recordingPublisher struct {
	mu       sync.Mutex
	fail     error
	topics   []string
	messages []*message.Message
}

func (r *recordingPublisher) Publish(topic string, msgs ...*message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	for _, msg := range msgs {
		r.topics = append(r.topics, topic)
		r.messages = append(r.messages, msg)
	}
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func newTestPeer(t *testing.T, pub message.Publisher) *Peer {
	t.Helper()
	peer, err := NewPeer(PeerConfig{
		ID:        9,
		Roles:     []string{wamp.RoleCaller},
		Features:  []string{wamp.FeatureCallCanceling},
		Publisher: pub,
		Topic:     "wamp.out.9",
		Stats:     counters.NewTree("router").Branch("session.9"),
	})
	require.NoError(t, err)
	return peer
}

func TestNewPeerValidatesConfig(t *testing.T) {
	_, err := NewPeer(PeerConfig{Topic: "t"})
	assert.ErrorIs(t, err, errspkg.ErrPublisherRequired)

	_, err = NewPeer(PeerConfig{Publisher: &recordingPublisher{}})
	assert.ErrorIs(t, err, errspkg.ErrTopicRequired)
}

func TestPeerRolesFeaturesAndSequence(t *testing.T) {
	peer := newTestPeer(t, &recordingPublisher{})

	assert.Equal(t, wamp.ID(9), peer.ID())
	assert.True(t, peer.HasLocalRole(wamp.RoleCaller))
	assert.False(t, peer.HasLocalRole(wamp.RoleCallee))
	assert.False(t, peer.IsRouter())
	assert.True(t, peer.SupportsFeature(wamp.FeatureCallCanceling))
	assert.False(t, peer.SupportsFeature(wamp.FeatureCallTimeout))

	assert.Equal(t, wamp.ID(1), peer.NextRequestID())
	assert.Equal(t, wamp.ID(2), peer.NextRequestID())

	peer.Adopt(77, wamp.FeatureCallTimeout)
	assert.Equal(t, wamp.ID(77), peer.ID())
	assert.True(t, peer.SupportsFeature(wamp.FeatureCallTimeout))
}

func TestPeerSendPublishesEncodedMessage(t *testing.T) {
	pub := &recordingPublisher{}
	peer := newTestPeer(t, pub)

	require.NoError(t, peer.Send(&wamp.Call{Request: 1, Procedure: "add", Arguments: wamp.List{2, 3}}))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "wamp.out.9", pub.topics[0])
	wire := pub.messages[0]
	assert.JSONEq(t, `[48,1,{},"add",[2,3]]`, string(wire.Payload))
	assert.Equal(t, "9", wire.Metadata.Get(MetadataSessionID))
	assert.Equal(t, "CALL", wire.Metadata.Get(MetadataMessageType))
	assert.NotEmpty(t, middleware.MessageCorrelationID(wire))
	assert.Len(t, wire.UUID, 26)

	assert.Equal(t, int64(1), peer.Statistics().Messages.Sent(wamp.TypeCall))
}

func TestPeerDropsMessagesWhosePublishFails(t *testing.T) {
	pub := &recordingPublisher{fail: errors.New("broker down")}
	peer := newTestPeer(t, pub)

	err := peer.Send(&wamp.Cancel{Request: 1})
	require.Error(t, err)
	assert.Zero(t, peer.Statistics().Messages.Sent(wamp.TypeCancel))
	require.Len(t, peer.Undelivered(), 1)

	pub.fail = nil
	require.NoError(t, peer.Send(&wamp.Cancel{Request: 2}))

	require.Len(t, pub.messages, 1)
	assert.JSONEq(t, `[49,2,{}]`, string(pub.messages[0].Payload))
	assert.Equal(t, int64(1), peer.Statistics().Messages.Sent(wamp.TypeCancel))
	assert.Equal(t, wamp.ID(1), peer.Undelivered()[0].(*wamp.Cancel).Request)
}

func TestPeerUndeliveredIsBounded(t *testing.T) {
	pub := &recordingPublisher{fail: errors.New("broker down")}
	peer := newTestPeer(t, pub)

	for i := range MaxUndelivered + 5 {
		_ = peer.Send(&wamp.Cancel{Request: wamp.ID(i + 1)})
	}

	undelivered := peer.Undelivered()
	require.Len(t, undelivered, MaxUndelivered)
	assert.Equal(t, wamp.ID(6), undelivered[0].(*wamp.Cancel).Request)
	assert.Equal(t, wamp.ID(MaxUndelivered+5), undelivered[MaxUndelivered-1].(*wamp.Cancel).Request)
}

func TestPeerRejectsOversizeMessages(t *testing.T) {
	pub := &recordingPublisher{}
	peer, err := NewPeer(PeerConfig{Publisher: pub, Topic: "wamp.out", MaxMessageSize: 16})
	require.NoError(t, err)

	err = peer.Send(&wamp.Call{Request: 1, Procedure: "a.rather.long.procedure.name"})
	require.ErrorIs(t, err, errspkg.ErrMessageTooLarge)
	assert.Empty(t, peer.Undelivered())
	assert.Empty(t, pub.messages)

	require.NoError(t, peer.Send(&wamp.Cancel{Request: 1}))
}

func TestClosedPeerRejectsSends(t *testing.T) {
	pub := &recordingPublisher{fail: errors.New("broker down")}
	peer := newTestPeer(t, pub)
	_ = peer.Send(&wamp.Goodbye{Reason: wamp.URICloseNormal})

	peer.Close()
	assert.True(t, peer.Closed())
	assert.Len(t, peer.Undelivered(), 1)
	assert.ErrorIs(t, peer.Send(&wamp.Goodbye{}), errspkg.ErrSessionClosed)
}

func TestIdentityDetailsRoundTrip(t *testing.T) {
	identity := &Identity{AuthMethod: "wampcra", AuthID: "joe", AuthRole: "user", AuthProvider: "static"}
	assert.Equal(t, identity, IdentityFromDetails(identity.Details()))

	var none *Identity
	assert.Empty(t, none.Details())
}

func TestStatesLifecycle(t *testing.T) {
	var purged []wamp.ID
	states := NewStates(func(id wamp.ID, _ string) { purged = append(purged, id) })

	require.NoError(t, states.Put(1, "one"))
	assert.ErrorIs(t, states.Put(1, "again"), errspkg.ErrSessionExists)
	require.NoError(t, states.Put(2, "two"))

	require.NoError(t, states.Rekey(2, 20))
	_, ok := states.Get(2)
	assert.False(t, ok)
	value, ok := states.Get(20)
	require.True(t, ok)
	assert.Equal(t, "two", value)
	assert.ErrorIs(t, states.Rekey(99, 100), errspkg.ErrUnknownSession)
	assert.ErrorIs(t, states.Rekey(1, 20), errspkg.ErrSessionExists)

	seen := 0
	states.Range(func(wamp.ID, string) { seen++ })
	assert.Equal(t, 2, seen)

	assert.True(t, states.Remove(1))
	assert.False(t, states.Remove(1))
	assert.Equal(t, []wamp.ID{1}, purged)
	assert.Equal(t, 1, states.Len())
}
