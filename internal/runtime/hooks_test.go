package runtime

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configpkg "github.com/drblury/protowamp/internal/runtime/config"
	loggingpkg "github.com/drblury/protowamp/internal/runtime/logging"
	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

func TestSessionHooksMerge(t *testing.T) {
	var order []string
	first := SessionHooks{
		OnOpen:   func(SessionEvent) { order = append(order, "first.open") },
		OnClosed: func(SessionEvent) { order = append(order, "first.closed") },
	}
	second := SessionHooks{
		OnOpen:        func(SessionEvent) { order = append(order, "second.open") },
		OnEstablished: func(SessionEvent) { order = append(order, "second.established") },
	}

	merged := first.Merge(second)
	merged.OnOpen(SessionEvent{})
	merged.OnEstablished(SessionEvent{})
	merged.OnClosed(SessionEvent{})

	assert.Equal(t, []string{"first.open", "second.open", "second.established", "first.closed"}, order)
	assert.Nil(t, SessionHooks{}.Merge(SessionHooks{}).OnOpen)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	hooks := LoggingHooks(logger)

	hooks.OnEstablished(SessionEvent{
		Key:       5,
		SessionID: 5,
		Identity:  &session.Identity{AuthID: "alice", AuthRole: "user"},
	})
	hooks.OnClosed(SessionEvent{Key: 5, SessionID: 5, Reason: wamp.URICloseNormal})

	out := buf.String()
	assert.Contains(t, out, "Session joined")
	assert.Contains(t, out, "authid=alice")
	assert.Contains(t, out, "Session closed")
	assert.Contains(t, out, "reason="+wamp.URICloseNormal)

	assert.NotPanics(t, func() { LoggingHooks(nil).OnOpen(SessionEvent{}) })
}

type hookRecorder struct {
	mu     sync.Mutex
	events map[string][]SessionEvent
}

func (r *hookRecorder) record(kind string) func(SessionEvent) {
	return func(ev SessionEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.events == nil {
			r.events = make(map[string][]SessionEvent)
		}
		r.events[kind] = append(r.events[kind], ev)
	}
}

func (r *hookRecorder) get(kind string) []SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SessionEvent(nil), r.events[kind]...)
}

func (r *hookRecorder) hooks() SessionHooks {
	return SessionHooks{
		OnOpen:        r.record("open"),
		OnEstablished: r.record("established"),
		OnClosed:      r.record("closed"),
	}
}

func TestSessionHooksFollowLifecycle(t *testing.T) {
	factory, _ := sharedChannel(t)
	newService := func(hooks SessionHooks) *Service {
		svc, err := NewService(&configpkg.Config{AuthID: "guest"}, newTestLogger(), context.Background(), ServiceDependencies{
			TransportFactory: factory,
			Registerer:       prometheus.NewRegistry(),
			Hooks:            hooks,
		})
		require.NoError(t, err)
		startService(t, svc)
		return svc
	}
	var routerRec, clientRec hookRecorder
	router := newService(routerRec.hooks())
	client := newService(clientRec.hooks())

	routerSess, err := router.OpenSession(SessionConfig{
		Router:   true,
		Features: map[string][]string{wamp.RoleDealer: nil},
		InTopic:  routerTopic,
		OutTopic: clientTopic,
	})
	require.NoError(t, err)
	clientSess, err := client.OpenSession(SessionConfig{
		Features: map[string][]string{wamp.RoleCaller: nil},
		InTopic:  clientTopic,
		OutTopic: routerTopic,
	})
	require.NoError(t, err)

	opened := clientRec.get("open")
	require.Len(t, opened, 1)
	assert.Less(t, opened[0].Key, int64(0))
	assert.False(t, opened[0].Router)
	assert.True(t, routerRec.get("open")[0].Router)

	require.NoError(t, clientSess.Join())
	waitClosed(t, clientSess.Welcomed(), "client WELCOME")
	waitClosed(t, routerSess.Welcomed(), "router WELCOME")

	established := clientRec.get("established")
	require.Len(t, established, 1)
	assert.Equal(t, clientSess.ID(), established[0].Key)
	require.NotNil(t, established[0].Identity)
	assert.Equal(t, "guest", established[0].Identity.AuthID)
	require.Len(t, routerRec.get("established"), 1)

	require.NoError(t, clientSess.Goodbye(""))
	waitClosed(t, routerSess.Done(), "router close")

	closed := clientRec.get("closed")
	require.Len(t, closed, 1)
	assert.Equal(t, wamp.URICloseNormal, closed[0].Reason)
	assert.Equal(t, wamp.URICloseNormal, routerRec.get("closed")[0].Reason)
}
