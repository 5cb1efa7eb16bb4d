package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"

	authpkg "github.com/drblury/protowamp/internal/runtime/auth"
	configpkg "github.com/drblury/protowamp/internal/runtime/config"
	"github.com/drblury/protowamp/internal/runtime/counters"
	errspkg "github.com/drblury/protowamp/internal/runtime/errors"
	idspkg "github.com/drblury/protowamp/internal/runtime/ids"
	loggingpkg "github.com/drblury/protowamp/internal/runtime/logging"
	"github.com/drblury/protowamp/internal/runtime/session"
	transportpkg "github.com/drblury/protowamp/internal/runtime/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the optional collaborators that the Service can use.
type ServiceDependencies struct {
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	TransportFactory          transportpkg.Factory
	// Negotiators are registered after the ones built from the
	// configuration and replace them by name.
	Negotiators []authpkg.Negotiator
	// Registerer receives router metrics and the statistics collector.
	// Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Hooks are called on session lifecycle transitions.
	Hooks SessionHooks
}

// Service hosts WAMP sessions on a Watermill router. Each session consumes
// its inbound topic through one router handler and publishes on its outbound
// topic.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	publisher    message.Publisher
	subscriber   message.Subscriber
	capabilities transportpkg.Capabilities
	router       *message.Router
	registerer   prometheus.Registerer

	auth   *authpkg.Registry
	stats  *counters.Tree
	hooks  SessionHooks
	poison *PoisonMetrics

	sessions    *session.States[*HostedSession]
	sessionIDs  idspkg.Sequence
	provisional idspkg.Sequence

	runMu  sync.Mutex
	runCtx context.Context

	httpServers   map[int]*http.ServeMux
	httpRunning   []*http.Server
	httpServersMu sync.Mutex

	closeOnce sync.Once
}

// NewService builds the transport, router and authentication registry for
// conf. Open sessions on the returned Service before or after Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	log = loggingpkg.OrNop(log)
	resolved := conf.WithDefaults()
	if err := resolved.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating wamp service",
		loggingpkg.LogFields{
			"pubsub_system": resolved.PubSubSystem,
			"config":        resolved,
		})

	s := &Service{
		Conf:       &resolved,
		Logger:     log,
		registerer: deps.Registerer,
		stats:      counters.NewTree(resolved.Realm),
		hooks:      deps.Hooks,
	}
	if s.registerer == nil {
		s.registerer = prometheus.DefaultRegisterer
	}
	s.poison = NewPoisonMetrics(s.registerer)
	s.sessions = session.NewStates(s.purgeSession)

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	tr, err := factory.Build(ctx, s.Conf, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}
	s.publisher = tr.Publisher
	s.subscriber = tr.Subscriber
	s.capabilities = tr.Capabilities
	if !s.capabilities.SupportsSessions() {
		log.Info("Transport does not guarantee ordering, sessions may see reordered messages",
			loggingpkg.LogFields{"transport": s.capabilities.Name})
	}

	s.auth, err = newAuthRegistry(s.Conf, log, deps.Negotiators)
	if err != nil {
		return nil, err
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the router until ctx is cancelled. Sessions opened afterwards
// start consuming immediately.
func (s *Service) Start(ctx context.Context) error {
	s.runMu.Lock()
	s.runCtx = ctx
	s.runMu.Unlock()

	s.StartStatisticsServer()
	s.startHTTPServers()
	if s.Conf.CallSweepInterval > 0 {
		go s.sweep(ctx, s.Conf.CallSweepInterval)
	}
	return routerRun(s.router, ctx)
}

// Running is closed once the router consumes messages.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Close ends every session, stops the router and the HTTP servers, and
// closes the transport.
func (s *Service) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.sessions.Range(func(id int64, _ *HostedSession) {
			s.sessions.Remove(id)
		})
		if err := s.router.Close(); err != nil {
			errs = append(errs, err)
		}
		s.stopHTTPServers()
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// Statistics returns the router statistics tree every session rolls up into.
func (s *Service) Statistics() *counters.Tree { return s.stats }

// Auth returns the negotiator registry used for HELLO, CHALLENGE and
// AUTHENTICATE.
func (s *Service) Auth() *authpkg.Registry { return s.auth }

// Capabilities returns what the configured transport guarantees.
func (s *Service) Capabilities() transportpkg.Capabilities { return s.capabilities }

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

func (s *Service) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CancelOverdue()
			s.ExpireChallenges()
		}
	}
}

// ExpireChallenges drops challenges that were never answered within the
// challenge timeout and returns how many went.
func (s *Service) ExpireChallenges() int {
	n := s.auth.Pending().Expire()
	if n > 0 {
		s.Logger.Info("Expired unanswered challenges", loggingpkg.LogFields{"count": n})
	}
	return n
}

// CancelOverdue cancels overdue calls on every client session and returns
// how many were cancelled.
func (s *Service) CancelOverdue() int {
	total := 0
	s.sessions.Range(func(_ int64, hs *HostedSession) {
		if hs.caller != nil && !hs.peer.Closed() {
			total += hs.caller.CancelOverdue(hs.peer)
		}
	})
	return total
}

func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.httpRunning = append(s.httpRunning, srv)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": srv.Addr})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
			}
		}()
	}
}

func (s *Service) stopHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range s.httpRunning {
		if err := srv.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to stop HTTP server", err, loggingpkg.LogFields{"address": srv.Addr})
		}
	}
	s.httpRunning = nil
}
