package protowamp

import (
	runtimepkg "github.com/drblury/protowamp/internal/runtime"
	authpkg "github.com/drblury/protowamp/internal/runtime/auth"
	callerpkg "github.com/drblury/protowamp/internal/runtime/caller"
	configpkg "github.com/drblury/protowamp/internal/runtime/config"
	"github.com/drblury/protowamp/internal/runtime/counters"
	errspkg "github.com/drblury/protowamp/internal/runtime/errors"
	idspkg "github.com/drblury/protowamp/internal/runtime/ids"
	jsoncodec "github.com/drblury/protowamp/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/protowamp/internal/runtime/logging"
	metadatapkg "github.com/drblury/protowamp/internal/runtime/metadata"
	sessionpkg "github.com/drblury/protowamp/internal/runtime/session"
	transportpkg "github.com/drblury/protowamp/internal/runtime/transport"
	"github.com/drblury/protowamp/internal/runtime/wamp"
	newtransport "github.com/drblury/protowamp/transport"
)

type (
	Config               = configpkg.Config
	Service              = runtimepkg.Service
	ServiceDependencies  = runtimepkg.ServiceDependencies
	SessionConfig        = runtimepkg.SessionConfig
	HostedSession        = runtimepkg.HostedSession
	Transport            = transportpkg.Transport
	TransportFactory     = transportpkg.Factory
	TransportFactoryFunc = transportpkg.FactoryFunc

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	// Session lifecycle hooks
	SessionEvent = runtimepkg.SessionEvent
	SessionHooks = runtimepkg.SessionHooks

	// Poison queue metrics
	PoisonMetrics      = runtimepkg.PoisonMetrics
	PoisonTopicMetrics = runtimepkg.PoisonTopicMetrics

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ConfigValidationError     = errspkg.ConfigValidationError
	UnprocessableMessageError = errspkg.UnprocessableMessageError

	// Wire vocabulary
	Message     = wamp.Message
	ID          = wamp.ID
	Dict        = wamp.Dict
	List        = wamp.List
	CallMessage = wamp.Call
	Result      = wamp.Result
	Error       = wamp.Error

	// Calls
	Call               = callerpkg.Call
	Caller             = callerpkg.Caller
	CallerConfig       = callerpkg.Config
	Listener           = callerpkg.Listener
	ListenerFuncs      = callerpkg.ListenerFuncs
	Procedure          = callerpkg.Procedure
	RoleViolationError = callerpkg.RoleViolationError

	// Authentication
	Negotiator     = authpkg.Negotiator
	AuthRegistry   = authpkg.Registry
	CRAConfig      = authpkg.CRAConfig
	TicketConfig   = authpkg.TicketConfig
	SecretLookup   = authpkg.SecretLookup
	TicketVerifier = authpkg.TicketVerifier
	Identity       = sessionpkg.Identity
	Peer           = sessionpkg.Peer

	// Statistics
	StatisticsTree = counters.Tree

	// Transport capabilities
	Capabilities = transportpkg.Capabilities

	// Modular transport types
	TransportBuilder      = newtransport.Builder
	TransportConfig       = newtransport.Config
	TransportRegistry     = newtransport.Registry
	TransportCapabilities = newtransport.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	ValidateConfig = configpkg.ValidateConfig

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	PoisonQueueMiddleware   = runtimepkg.PoisonQueueMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	LoggingHooks     = runtimepkg.LoggingHooks
	NewPoisonMetrics = runtimepkg.NewPoisonMetrics

	NewAnonymous          = authpkg.NewAnonymous
	NewChallengeResponse  = authpkg.NewChallengeResponse
	NewTicket             = authpkg.NewTicket
	StaticSecrets         = authpkg.StaticSecrets
	StaticTicket          = authpkg.StaticTicket
	SignChallenge         = authpkg.Sign
	DecodeProtoResult     = callerpkg.DecodeProto
	ProtoKwargs           = callerpkg.ProtoKwargs
	EncodeMessage         = wamp.Encode
	DecodeMessage         = wamp.Decode
	DictInt64             = wamp.Int64
	IdentityFromDetails   = sessionpkg.IdentityFromDetails
	NewStatisticsTree     = counters.NewTree
	NewStatisticsExporter = counters.NewCollector

	// Transport capabilities
	GetCapabilities = newtransport.GetCapabilities

	// Modular transport registry. Import individual transports via
	// _ "github.com/drblury/protowamp/transport/kafka", or all of them via
	// _ "github.com/drblury/protowamp/transport/transports".
	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrServiceRequired      = errspkg.ErrServiceRequired
	ErrPublisherRequired    = errspkg.ErrPublisherRequired
	ErrTopicRequired        = errspkg.ErrTopicRequired
	ErrConfigRequired       = errspkg.ErrConfigRequired
	ErrLoggerRequired       = errspkg.ErrLoggerRequired
	ErrSessionRequired      = errspkg.ErrSessionRequired
	ErrSessionExists        = errspkg.ErrSessionExists
	ErrSessionClosed        = errspkg.ErrSessionClosed
	ErrUnknownSession       = errspkg.ErrUnknownSession
	ErrMessageTooLarge      = errspkg.ErrMessageTooLarge
	ErrRoleViolation        = callerpkg.ErrRoleViolation
	ErrTooManyCalls         = callerpkg.ErrTooManyCalls
	ErrUnknownCall          = callerpkg.ErrUnknownCall
	ErrCallerClosed         = callerpkg.ErrCallerClosed
	ErrAuthenticationFailed = authpkg.ErrAuthenticationFailed
	ErrUnknownAuthMethod    = authpkg.ErrUnknownAuthMethod
	ErrChallengeExpired     = authpkg.ErrChallengeExpired

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

// Roles and advanced features announced in HELLO and WELCOME.
const (
	RoleCaller = wamp.RoleCaller
	RoleCallee = wamp.RoleCallee
	RoleDealer = wamp.RoleDealer
	RoleBroker = wamp.RoleBroker

	FeatureCallCanceling          = wamp.FeatureCallCanceling
	FeatureProgressiveCallResults = wamp.FeatureProgressiveCallResults
	FeatureCallTimeout            = wamp.FeatureCallTimeout
)

// Authentication methods.
const (
	AuthAnonymous = authpkg.MethodAnonymous
	AuthCRA       = authpkg.MethodCRA
	AuthTicket    = authpkg.MethodTicket
)

// Reasons passed to Listener.OnCancel and used as close reasons.
const (
	ReasonCanceled = callerpkg.ReasonCanceled
	ReasonTimeout  = callerpkg.ReasonTimeout
	ReasonClosed   = callerpkg.ReasonClosed

	CloseNormal = wamp.URICloseNormal
)

// Outcomes recorded by PoisonMetrics.
const (
	PoisonOutcomePoisoned = runtimepkg.PoisonOutcomePoisoned
	PoisonOutcomeDropped  = runtimepkg.PoisonOutcomeDropped
)
