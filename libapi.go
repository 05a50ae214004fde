package serveflow

import (
	runtimepkg "github.com/drblury/serveflow/internal/runtime"
	configpkg "github.com/drblury/serveflow/internal/runtime/config"
	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	idspkg "github.com/drblury/serveflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/serveflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/serveflow/internal/runtime/logging"
	routingpkg "github.com/drblury/serveflow/internal/runtime/routing"
	schemapkg "github.com/drblury/serveflow/internal/runtime/schema"
)

type (
	Config     = configpkg.Config
	Server     = runtimepkg.Server
	ServerDeps = runtimepkg.ServerDeps
	Scope      = runtimepkg.Scope

	// Lifecycle hooks
	Phase            = runtimepkg.Phase
	Hook             = runtimepkg.Hook
	PayloadHook      = runtimepkg.PayloadHook
	ErrorHook        = runtimepkg.ErrorHook
	RouteHooks       = runtimepkg.RouteHooks
	HookRegistration = runtimepkg.HookRegistration
	HookBuilder      = runtimepkg.HookBuilder

	// Routes and handlers
	Route       = runtimepkg.Route
	RouteSchema = runtimepkg.RouteSchema
	RouteInfo   = runtimepkg.RouteInfo
	RouteStats  = runtimepkg.RouteStats
	Constraints = runtimepkg.Constraints
	Handler     = runtimepkg.Handler

	JSONRoute[In any, Out any] = runtimepkg.JSONRoute[In, Out]

	// Request/reply views
	Request = runtimepkg.Request
	Reply   = runtimepkg.Reply

	// Plugins
	PluginSetup        = runtimepkg.PluginSetup
	PluginRegistration = runtimepkg.PluginRegistration
	PluginInfo         = runtimepkg.PluginInfo

	// Body parsing
	BodyParser = runtimepkg.BodyParser

	// Errors on the wire
	HTTPError     = runtimepkg.HTTPError
	ErrorEnvelope = runtimepkg.ErrorEnvelope

	// Schema validation
	SchemaCompiler  = schemapkg.Compiler
	CompiledSchema  = schemapkg.Compiled
	Violation       = schemapkg.Violation
	ValidationError = schemapkg.ValidationError

	// Routing contract
	Router = routingpkg.Router

	// Lifecycle events
	RequestEvent = runtimepkg.RequestEvent

	// Metrics and resources
	HTTPMetrics   = runtimepkg.HTTPMetrics
	ResourceUsage = runtimepkg.ResourceUsage

	// Logging
	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger
)

// Lifecycle phases in execution order.
const (
	OnRequest        = runtimepkg.OnRequest
	PreParsing       = runtimepkg.PreParsing
	PreValidation    = runtimepkg.PreValidation
	PreHandler       = runtimepkg.PreHandler
	PreSerialization = runtimepkg.PreSerialization
	OnSend           = runtimepkg.OnSend
	OnResponse       = runtimepkg.OnResponse
	OnError          = runtimepkg.OnError
	OnTimeout        = runtimepkg.OnTimeout
)

// Metadata keys set on lifecycle event messages.
const (
	MetadataKeyRequestID = runtimepkg.MetadataKeyRequestID
	MetadataKeyRoute     = runtimepkg.MetadataKeyRoute
	MetadataKeyStatus    = runtimepkg.MetadataKeyStatus
)

var (
	NewServer      = runtimepkg.NewServer
	ValidateConfig = configpkg.ValidateConfig

	Phases = runtimepkg.Phases

	// Built-in hooks
	DefaultHooks       = runtimepkg.DefaultHooks
	RequestIDHook      = runtimepkg.RequestIDHook
	RequestLoggingHook = runtimepkg.RequestLoggingHook
	TracingHook        = runtimepkg.TracingHook
	MetricsStartHook   = runtimepkg.MetricsStartHook
	MetricsEndHook     = runtimepkg.MetricsEndHook

	// Errors on the wire
	NewHTTPError  = runtimepkg.NewHTTPError
	WrapHTTPError = runtimepkg.WrapHTTPError

	// Schema compiler
	NewSchemaCompiler = schemapkg.NewCompiler

	// Routing
	NewChiRouter = routingpkg.NewChiRouter

	// Lifecycle events
	NewMessageFromEvent = runtimepkg.NewMessageFromEvent
	PublishEvent        = runtimepkg.PublishEvent

	// Request metrics
	NewHTTPMetrics = runtimepkg.NewHTTPMetrics

	// Logging
	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger

	// JSON codec
	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	// Request ids
	NewRequestID = idspkg.New

	// Sentinel errors
	ErrScopeRequired           = errspkg.ErrScopeRequired
	ErrHookRequired            = errspkg.ErrHookRequired
	ErrUnknownHookPhase        = errspkg.ErrUnknownHookPhase
	ErrScopedOnRequest         = errspkg.ErrScopedOnRequest
	ErrServerFrozen            = errspkg.ErrServerFrozen
	ErrReplyAlreadySent        = errspkg.ErrReplyAlreadySent
	ErrHandlerRequired         = errspkg.ErrHandlerRequired
	ErrRouteMethodRequired     = errspkg.ErrRouteMethodRequired
	ErrRoutePathRequired       = errspkg.ErrRoutePathRequired
	ErrBodyTypeRequired        = errspkg.ErrBodyTypeRequired
	ErrBodyPointerNeeded       = errspkg.ErrBodyPointerNeeded
	ErrPluginNameRequired      = errspkg.ErrPluginNameRequired
	ErrPluginSetupRequired     = errspkg.ErrPluginSetupRequired
	ErrPluginAlreadyRegistered = errspkg.ErrPluginAlreadyRegistered
	ErrPluginDependency        = errspkg.ErrPluginDependency
	ErrDecoratorNameRequired   = errspkg.ErrDecoratorNameRequired
	ErrDecoratorConflict       = errspkg.ErrDecoratorConflict
	ErrDecoratorNotFound       = errspkg.ErrDecoratorNotFound
	ErrSchemaID                = errspkg.ErrSchemaID
	ErrSchemaDuplicate         = errspkg.ErrSchemaDuplicate
	ErrSchemaNotFound          = errspkg.ErrSchemaNotFound
	ErrResponseInvalid         = errspkg.ErrResponseInvalid
	ErrPublisherRequired       = errspkg.ErrPublisherRequired
	ErrTopicRequired           = errspkg.ErrTopicRequired
)

// RegisterJSONRoute registers a typed JSON route on the scope. The body
// type must be a pointer; a fresh instance is decoded per request after
// parsing and schema validation.
func RegisterJSONRoute[In any, Out any](scope *Scope, cfg JSONRoute[In, Out]) error {
	return runtimepkg.RegisterJSONRoute(scope, cfg)
}
