package runtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/serveflow/eventbus"
	_ "github.com/drblury/serveflow/eventbus/channel"
	_ "github.com/drblury/serveflow/eventbus/file"
	configpkg "github.com/drblury/serveflow/internal/runtime/config"
	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/serveflow/internal/runtime/logging"
	routingpkg "github.com/drblury/serveflow/internal/runtime/routing"
	"github.com/drblury/serveflow/internal/runtime/schema"
)

// ServerDeps holds the optional collaborators the Server can use. Leave
// fields nil to get the defaults.
type ServerDeps struct {
	// Router overrides the default chi-backed route matcher.
	Router routingpkg.Router

	// Publisher overrides the lifecycle event publisher built from the
	// configuration. Useful for tests and embedders with an existing bus.
	Publisher message.Publisher

	// Registerer receives the request metrics collectors. Defaults to the
	// Prometheus default registerer.
	Registerer prometheus.Registerer

	// Hooks are appended after the default hook chain.
	Hooks []HookRegistration
}

// Server owns the request lifecycle: the root scope, the route table, the
// schema compiler, the body parser registry and the event publisher. It
// implements http.Handler; socket binding and TLS belong to the embedder.
type Server struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	root     *Scope
	plugins  *PluginRegistry
	compiler *schema.Compiler
	router   routingpkg.Router
	parsers  *BodyParsers
	metrics  *HTTPMetrics

	routes   []*Route
	notFound Handler

	publisher message.Publisher

	frozen     atomic.Bool
	freezeOnce sync.Once
	detached   sync.WaitGroup

	closers   []func(context.Context) error
	closersMu sync.Mutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex

	resourceTracker *resourceTracker
}

// NewServer constructs a Server for the supplied configuration. Register
// hooks, plugins and routes on the returned server before serving the first
// request. Invalid boot input panics after logging, matching the contract
// that registration errors are programming mistakes.
func NewServer(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServerDeps) *Server {
	if conf == nil {
		panic("serveflow: config is required")
	}
	if log == nil {
		panic("serveflow: logger is required")
	}
	if err := conf.Validate(); err != nil {
		log.Error("Invalid configuration", err, loggingpkg.LogFields{"app": conf.AppName})
		panic(fmt.Errorf("serveflow: invalid configuration: %w", err))
	}

	log.Info("Creating lifecycle engine", loggingpkg.LogFields{
		"app":    conf.AppName,
		"config": conf,
	})

	s := &Server{
		Conf:            conf,
		Logger:          log,
		plugins:         newPluginRegistry(),
		compiler:        schema.NewCompiler(),
		parsers:         newBodyParsers(),
		notFound:        defaultNotFoundHandler,
		resourceTracker: newResourceTracker(),
	}
	s.root = newRootScope(s)
	s.metrics = NewHTTPMetrics(deps.Registerer)

	s.router = deps.Router
	if s.router == nil {
		s.router = routingpkg.NewChiRouter()
	}

	s.publisher = deps.Publisher
	if s.publisher == nil && conf.EventBusEnabled {
		bus, err := eventbus.Build(ctx, conf, loggingpkg.NewWatermillAdapter(log))
		if err != nil {
			log.Error("Failed to build event bus", err, loggingpkg.LogFields{"system": conf.GetEventBusSystem()})
			panic(fmt.Errorf("serveflow: building event bus: %w", err))
		}
		s.publisher = bus.Publisher
		s.OnClose(func(context.Context) error { return bus.Close() })
	}

	s.registerConfiguredHooks(deps)
	s.StartDebugServer()

	return s
}

func (s *Server) registerConfiguredHooks(deps ServerDeps) {
	var defaults []HookRegistration
	if !s.Conf.DisableDefaultHooks {
		defaults = DefaultHooks()
	}
	registrations := make([]HookRegistration, 0, len(defaults)+len(deps.Hooks))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Hooks...)

	for _, reg := range registrations {
		if err := s.RegisterHook(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_hook"
			}
			panic(fmt.Sprintf("serveflow: failed to register hook %s: %v", name, err))
		}
	}
}

// Scope returns the root registration scope.
func (s *Server) Scope() *Scope {
	return s.root
}

// Route registers a route on the root scope.
func (s *Server) Route(route *Route) error {
	return s.root.Route(route)
}

// MustRoute registers a route on the root scope and panics on failure.
func (s *Server) MustRoute(route *Route) {
	s.root.MustRoute(route)
}

// AddHook registers a lifecycle hook on the root scope.
func (s *Server) AddHook(phase Phase, hook Hook) error {
	return s.root.AddHook(phase, hook)
}

// RegisterPlugin registers a plugin against the root scope.
func (s *Server) RegisterPlugin(reg PluginRegistration) error {
	return s.root.RegisterPlugin(reg)
}

// HasPlugin reports whether a plugin name is registered.
func (s *Server) HasPlugin(name string) bool {
	return s.plugins.Has(name)
}

// RegisterBodyParser adds a body parser for a media type.
func (s *Server) RegisterBodyParser(contentType string, parser BodyParser) error {
	if err := s.registrationOpen(); err != nil {
		return err
	}
	return s.parsers.Register(contentType, parser)
}

// SetNotFoundHandler replaces the handler invoked on a route miss. The
// default returns the 404 error envelope.
func (s *Server) SetNotFoundHandler(handler Handler) error {
	if err := s.registrationOpen(); err != nil {
		return err
	}
	if handler == nil {
		return errspkg.ErrHandlerRequired
	}
	s.notFound = handler
	return nil
}

// OnClose registers a cleanup function run by Close in reverse registration
// order.
func (s *Server) OnClose(fn func(context.Context) error) {
	if fn == nil {
		return
	}
	s.closersMu.Lock()
	defer s.closersMu.Unlock()
	s.closers = append(s.closers, fn)
}

// Routes returns the registered routes in registration order.
func (s *Server) Routes() []*Route {
	return s.routes
}

// ResourceUsage returns a coarse process usage snapshot.
func (s *Server) ResourceUsage() ResourceUsage {
	return s.resourceTracker.Snapshot()
}

func defaultNotFoundHandler(req *Request, rep *Reply) (any, error) {
	return nil, NewHTTPError(http.StatusNotFound, "Route not found")
}

// registrationOpen rejects mutations once the first request was served.
// Hook and route tables are read without locks on the request path, so the
// boot period has to end before traffic starts.
func (s *Server) registrationOpen() error {
	if s.frozen.Load() {
		return errspkg.ErrServerFrozen
	}
	return nil
}

func (s *Server) freeze() {
	s.freezeOnce.Do(func() {
		s.frozen.Store(true)
	})
}

func (s *Server) addRoute(route *Route) error {
	route.stats = newRouteStats(route.Method, route.pattern)
	if err := s.router.Handle(route.Method, route.pattern, route); err != nil {
		return err
	}
	s.routes = append(s.routes, route)
	s.Logger.Debug("Route registered", loggingpkg.LogFields{
		"method":  route.Method,
		"pattern": route.pattern,
		"scope":   route.scope.Prefix(),
	})
	return nil
}

// RegisterHTTPHandler exposes an auxiliary handler (metrics scrape, debug
// API) on a mux of its own port. The listener for a port starts with its
// first registration.
func (s *Server) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux

		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting auxiliary HTTP server", loggingpkg.LogFields{"address": addr})
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				s.Logger.Error("Auxiliary HTTP server stopped", err, loggingpkg.LogFields{"address": addr})
			}
		}()
	}

	mux.Handle(pattern, handler)
}

// Close drains detached onResponse work and runs the registered cleanup
// functions in reverse order. The context bounds the drain.
func (s *Server) Close(ctx context.Context) error {
	s.freeze()

	done := make(chan struct{})
	go func() {
		s.detached.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("serveflow: draining detached hooks: %w", ctx.Err())
	}

	s.closersMu.Lock()
	closers := s.closers
	s.closers = nil
	s.closersMu.Unlock()

	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](ctx); err != nil {
			s.Logger.Error("Cleanup function failed", err, nil)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
