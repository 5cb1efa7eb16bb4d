package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/protowamp/internal/runtime/auth"
	"github.com/drblury/protowamp/internal/runtime/caller"
	configpkg "github.com/drblury/protowamp/internal/runtime/config"
	errspkg "github.com/drblury/protowamp/internal/runtime/errors"
	transportpkg "github.com/drblury/protowamp/internal/runtime/transport"
	"github.com/drblury/protowamp/internal/runtime/wamp"
	kafkatransport "github.com/drblury/protowamp/transport/kafka"
)

const (
	routerTopic = "wamp.router.in"
	clientTopic = "wamp.client.in"
)

func TestNewServiceConfiguresKafka(t *testing.T) {
	origPub := kafkatransport.PublisherFactory
	origSub := kafkatransport.SubscriberFactory
	t.Cleanup(func() {
		kafkatransport.PublisherFactory = origPub
		kafkatransport.SubscriberFactory = origSub
	})
	pub := &testPublisher{}
	sub := &testSubscriber{}
	kafkatransport.PublisherFactory = func(config kafka.PublisherConfig, _ watermill.LoggerAdapter) (message.Publisher, error) {
		return pub, nil
	}
	kafkatransport.SubscriberFactory = func(config kafka.SubscriberConfig, _ watermill.LoggerAdapter) (message.Subscriber, error) {
		if config.ConsumerGroup != "group" {
			t.Fatalf("unexpected consumer group: %s", config.ConsumerGroup)
		}
		return sub, nil
	}

	cfg := &configpkg.Config{
		PubSubSystem:       "kafka",
		KafkaBrokers:       []string{"b1"},
		KafkaConsumerGroup: "group",
		PoisonQueue:        "poison",
	}
	svc, err := NewService(cfg, newTestLogger(), context.Background(), ServiceDependencies{})
	require.NoError(t, err)

	assert.Same(t, pub, svc.publisher)
	assert.Same(t, sub, svc.subscriber)
	assert.True(t, svc.Capabilities().SupportsSessions())
	assert.Equal(t, configpkg.DefaultRealm, svc.Conf.Realm, "defaults are applied to a copy")
	assert.Empty(t, cfg.Realm)
}

func TestNewServiceRejectsBadInput(t *testing.T) {
	_, err := NewService(nil, nil, context.Background(), ServiceDependencies{})
	assert.ErrorIs(t, err, errspkg.ErrConfigRequired)

	_, err = NewService(&configpkg.Config{PubSubSystem: "kafka"}, nil, context.Background(), ServiceDependencies{})
	var cfgErr errspkg.ConfigValidationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "kafka: brokers are required")

	factory, _ := sharedChannel(t)
	_, err = NewService(&configpkg.Config{}, nil, context.Background(), ServiceDependencies{
		TransportFactory: factory,
		Middlewares: []MiddlewareRegistration{{
			Name:    "bad",
			Builder: func(*Service) (message.HandlerMiddleware, error) { return nil, errors.New("boom") },
		}},
	})
	assert.ErrorContains(t, err, "register middleware bad: boom")
}

// pingDealer answers every CALL with a single "pong" result.
func pingDealer(hs *HostedSession, msg wamp.Message) error {
	call, ok := msg.(*wamp.Call)
	if !ok {
		return nil
	}
	return hs.Send(&wamp.Result{Request: call.Request, Details: wamp.Dict{}, Arguments: wamp.List{"pong"}})
}

type pair struct {
	router, client         *Service
	routerSess, clientSess *HostedSession
}

func openPair(t *testing.T, routerCfg, clientCfg configpkg.Config, dealer func(*HostedSession, wamp.Message) error) pair {
	t.Helper()
	factory, _ := sharedChannel(t)
	p := pair{
		router: newTestService(t, &routerCfg, factory),
		client: newTestService(t, &clientCfg, factory),
	}
	startService(t, p.router)
	startService(t, p.client)

	var err error
	p.routerSess, err = p.router.OpenSession(SessionConfig{
		Router:    true,
		Features:  map[string][]string{wamp.RoleDealer: {wamp.FeatureCallCanceling, wamp.FeatureProgressiveCallResults}},
		InTopic:   routerTopic,
		OutTopic:  clientTopic,
		Unhandled: dealer,
	})
	require.NoError(t, err)
	p.clientSess, err = p.client.OpenSession(SessionConfig{
		Features: map[string][]string{wamp.RoleCaller: {wamp.FeatureCallCanceling}},
		InTopic:  clientTopic,
		OutTopic: routerTopic,
	})
	require.NoError(t, err)
	return p
}

func TestCRAHandshakeAndCall(t *testing.T) {
	creds := configpkg.Config{AuthMethods: []string{auth.MethodCRA}, AuthID: "alice", AuthSecret: "s3cret"}
	p := openPair(t, creds, creds, pingDealer)

	require.Less(t, p.clientSess.Key(), int64(0), "clients start under a provisional key")
	require.NoError(t, p.client.Join(p.clientSess.Key()))
	waitClosed(t, p.clientSess.Welcomed(), "client WELCOME")
	waitClosed(t, p.routerSess.Welcomed(), "router WELCOME")

	assert.Equal(t, p.routerSess.ID(), p.clientSess.ID())
	assert.Equal(t, p.clientSess.ID(), p.clientSess.Key())
	_, ok := p.client.Session(p.clientSess.ID())
	assert.True(t, ok, "client session is rekeyed to its id")

	identity := p.clientSess.Identity()
	require.NotNil(t, identity)
	assert.Equal(t, "alice", identity.AuthID)
	assert.Equal(t, auth.MethodCRA, identity.AuthMethod)
	assert.Equal(t, "user", identity.AuthRole)
	assert.True(t, p.clientSess.Peer().SupportsFeature(wamp.FeatureCallCanceling))

	results := make(chan *wamp.Result, 1)
	id, err := p.clientSess.Call(nil, "com.example.ping", nil, nil, caller.ListenerFuncs{
		Result: func(_ *caller.Call, res *wamp.Result) bool {
			results <- res
			return false
		},
	})
	require.NoError(t, err)

	select {
	case res := <-results:
		assert.Equal(t, id, res.Request)
		assert.Equal(t, wamp.List{"pong"}, res.Arguments)
	case <-time.After(5 * time.Second):
		t.Fatal("no result")
	}

	assert.Equal(t, 0, p.clientSess.Caller().Len())
	proc := p.clientSess.Caller().Procedure("com.example.ping")
	require.NotNil(t, proc)
	assert.Equal(t, int64(1), proc.Counters.Calls())
	assert.Equal(t, int64(1), p.client.Statistics().Calls.Calls(), "session calls roll up into the service tree")
	assert.Equal(t, int64(1), p.router.Statistics().Auth.Challenged())
	assert.Equal(t, int64(1), p.router.Statistics().Auth.Authenticated())
	assert.Zero(t, p.router.Auth().Pending().Len())

	require.NoError(t, p.clientSess.Goodbye(""))
	waitClosed(t, p.clientSess.Done(), "client close")
	waitClosed(t, p.routerSess.Done(), "router close")
	assert.Equal(t, 0, p.client.Sessions())
	assert.Equal(t, 0, p.router.Sessions())
}

func TestWrongSecretAborts(t *testing.T) {
	routerCfg := configpkg.Config{AuthMethods: []string{auth.MethodCRA}, AuthID: "alice", AuthSecret: "s3cret"}
	clientCfg := configpkg.Config{AuthMethods: []string{auth.MethodCRA}, AuthID: "alice", AuthSecret: "guess"}
	p := openPair(t, routerCfg, clientCfg, nil)

	require.NoError(t, p.clientSess.Join())
	waitClosed(t, p.clientSess.Done(), "client abort")
	waitClosed(t, p.routerSess.Done(), "router abort")

	assert.Equal(t, wamp.URIAuthenticationFailed, p.clientSess.Reason())
	assert.Nil(t, p.routerSess.Identity())
	assert.Equal(t, int64(1), p.router.Statistics().Auth.Failed())
	assert.Zero(t, p.router.Auth().Pending().Len())
}

func TestWrongRealmAborts(t *testing.T) {
	p := openPair(t, configpkg.Config{Realm: "prod"}, configpkg.Config{Realm: "dev"}, nil)

	require.NoError(t, p.clientSess.Join())
	waitClosed(t, p.clientSess.Done(), "client abort")
	assert.Equal(t, wamp.URINoSuchRealm, p.clientSess.Reason())
}

func TestAnonymousJoinAndOverdueCancel(t *testing.T) {
	p := openPair(t, configpkg.Config{}, configpkg.Config{AuthID: "guest"}, nil)

	require.NoError(t, p.clientSess.Join())
	waitClosed(t, p.clientSess.Welcomed(), "client WELCOME")
	assert.Equal(t, "guest", p.clientSess.Identity().AuthID)
	assert.Equal(t, auth.MethodAnonymous, p.clientSess.Identity().AuthMethod)

	cancelled := make(chan string, 1)
	_, err := p.clientSess.Call(wamp.Dict{wamp.KeyTimeout: 1}, "com.example.slow", nil, nil, caller.ListenerFuncs{
		Cancel: func(_ *caller.Call, reason string) { cancelled <- reason },
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, p.client.CancelOverdue())
	assert.Equal(t, caller.ReasonTimeout, <-cancelled)
	assert.Equal(t, 0, p.client.CancelOverdue(), "a call is cancelled once")

	assert.True(t, p.client.CloseSession(p.clientSess.ID()))
	waitClosed(t, p.clientSess.Done(), "client close")
}

func TestUndecodableMessageGoesToPoisonQueue(t *testing.T) {
	factory, pubSub := sharedChannel(t)
	svc := newTestService(t, &configpkg.Config{PoisonQueue: "poison"}, factory)
	startService(t, svc)

	poisoned, err := pubSub.Subscribe(context.Background(), "poison")
	require.NoError(t, err)

	_, err = svc.OpenSession(SessionConfig{Router: true, InTopic: routerTopic, OutTopic: clientTopic})
	require.NoError(t, err)
	require.NoError(t, pubSub.Publish(routerTopic, message.NewMessage(watermill.NewUUID(), []byte(`{"not":"an array"}`))))

	select {
	case msg := <-poisoned:
		assert.Equal(t, `{"not":"an array"}`, string(msg.Payload))
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("message did not reach the poison queue")
	}
	assert.Eventually(t, func() bool {
		tm := svc.PoisonMetrics().Topic(routerTopic)
		return tm != nil && tm.Poisoned == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestOpenSessionValidatesTopics(t *testing.T) {
	factory, _ := sharedChannel(t)
	svc := newTestService(t, &configpkg.Config{}, factory)

	_, err := svc.OpenSession(SessionConfig{Router: true, InTopic: routerTopic})
	assert.ErrorIs(t, err, errspkg.ErrTopicRequired)

	first, err := svc.OpenSession(SessionConfig{Router: true, ID: 7, InTopic: routerTopic, OutTopic: clientTopic})
	require.NoError(t, err)
	assert.Equal(t, int64(7), first.ID())
	_, err = svc.OpenSession(SessionConfig{Router: true, ID: 7, InTopic: "other", OutTopic: "other.out"})
	assert.ErrorIs(t, err, errspkg.ErrSessionExists)

	assert.ErrorIs(t, svc.Join(first.ID()), caller.ErrRoleViolation)
	assert.ErrorIs(t, svc.Join(99), errspkg.ErrUnknownSession)
	_, err = first.Call(nil, "x", nil, nil, nil)
	assert.ErrorIs(t, err, caller.ErrRoleViolation)
}

func TestFailedWelcomeLeavesSessionOpenForHello(t *testing.T) {
	pub := &testPublisher{err: errors.New("broker down")}
	factory := transportpkg.FactoryFunc(func(context.Context, *configpkg.Config, watermill.LoggerAdapter) (transportpkg.Transport, error) {
		return transportpkg.Transport{Publisher: pub, Subscriber: &testSubscriber{}}, nil
	})
	svc := newTestService(t, &configpkg.Config{}, factory)
	hs, err := svc.OpenSession(SessionConfig{
		Router:   true,
		Features: map[string][]string{wamp.RoleDealer: nil},
		InTopic:  routerTopic,
		OutTopic: clientTopic,
	})
	require.NoError(t, err)

	hello := &wamp.Hello{Realm: svc.Conf.Realm, Details: wamp.Dict{}}
	hs.dispatch(hello)
	assert.Nil(t, hs.Identity())
	assert.Empty(t, pub.Topics())
	require.Len(t, hs.Peer().Undelivered(), 1)
	select {
	case <-hs.Welcomed():
		t.Fatal("session must not be established without a WELCOME")
	default:
	}

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()
	hs.dispatch(hello)
	waitClosed(t, hs.Welcomed(), "WELCOME after retry")
	require.NotNil(t, hs.Identity())
	assert.Equal(t, []string{clientTopic}, pub.Topics())
}

func TestExpireChallengesDropsStaleEntries(t *testing.T) {
	factory, _ := sharedChannel(t)
	svc := newTestService(t, &configpkg.Config{ChallengeTimeout: time.Minute}, factory)

	svc.Auth().Pending().Put(5, auth.Pending{Method: auth.MethodCRA, Issued: time.Now().Add(-time.Hour)})
	svc.Auth().Pending().Put(6, auth.Pending{Method: auth.MethodCRA})

	assert.Equal(t, 1, svc.ExpireChallenges())
	assert.Equal(t, 1, svc.Auth().Pending().Len())
	assert.Empty(t, svc.Auth().Pending().Method(5))
	assert.Equal(t, auth.MethodCRA, svc.Auth().Pending().Method(6))
}
