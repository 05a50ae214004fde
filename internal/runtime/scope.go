package runtime

import (
	"context"
	"fmt"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
)

// Scope is one encapsulation context of the server: a view with its own
// hooks and decorators. The server root is a scope; registering an
// encapsulating plugin creates a child whose hook additions and
// decorations stay invisible to the parent. Routes registered on a scope
// capture it and run under its hooks.
type Scope struct {
	server     *Server
	parent     *Scope
	prefix     string
	hooks      *Hooks
	decorators *Decorators
}

func newRootScope(server *Server) *Scope {
	return &Scope{
		server:     server,
		hooks:      newHooks(),
		decorators: newDecorators(),
	}
}

// createChild snapshots the hooks and delegates the decorators: hooks
// added to the parent afterwards do not reach the child, decorations do.
func (s *Scope) createChild(prefix string) *Scope {
	return &Scope{
		server:     s.server,
		parent:     s,
		prefix:     joinPattern(s.prefix, prefixOrRoot(prefix)),
		hooks:      s.hooks.Clone(),
		decorators: s.decorators.createChild(),
	}
}

func prefixOrRoot(prefix string) string {
	if prefix == "" {
		return "/"
	}
	return prefix
}

// Prefix returns the accumulated route prefix of this scope.
func (s *Scope) Prefix() string {
	if s.prefix == "" {
		return "/"
	}
	return s.prefix
}

// Server returns the owning server.
func (s *Scope) Server() *Server {
	return s.server
}

// AddHook registers a lifecycle hook on this scope. onRequest hooks are
// server-scope only: they run before route resolution, so a child scope
// could never observe them for its own routes.
func (s *Scope) AddHook(phase Phase, hook Hook) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	if phase == OnRequest && s.parent != nil {
		return errspkg.ErrScopedOnRequest
	}
	return s.hooks.Add(phase, hook)
}

// AddPreSerializationHook registers a payload-replacing hook.
func (s *Scope) AddPreSerializationHook(hook PayloadHook) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	return s.hooks.AddPreSerialization(hook)
}

// AddOnErrorHook registers an error hook that receives the request error.
func (s *Scope) AddOnErrorHook(hook ErrorHook) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	return s.hooks.AddOnError(hook)
}

// Decorate adds a shared value to the server namespace of this scope.
func (s *Scope) Decorate(name string, value any) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	return s.decorators.RegisterServer(name, value)
}

// DecorateRequest adds a shared value to the request namespace.
func (s *Scope) DecorateRequest(name string, value any) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	return s.decorators.RegisterRequest(name, value)
}

// DecorateRequestFactory adds a per-request decoration.
func (s *Scope) DecorateRequestFactory(name string, factory func() any) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	return s.decorators.RegisterRequestFactory(name, factory)
}

// DecorateReply adds a shared value to the reply namespace.
func (s *Scope) DecorateReply(name string, value any) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	return s.decorators.RegisterReply(name, value)
}

// DecorateReplyFactory adds a per-reply decoration.
func (s *Scope) DecorateReplyFactory(name string, factory func() any) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	return s.decorators.RegisterReplyFactory(name, factory)
}

// Decoration resolves a server decoration visible from this scope.
func (s *Scope) Decoration(name string) (any, bool) {
	return s.decorators.Server(name)
}

// HasDecoration reports whether a server decoration is visible here.
func (s *Scope) HasDecoration(name string) bool {
	return s.decorators.HasServer(name)
}

// AddSchema registers a shared schema document on the server compiler.
func (s *Scope) AddSchema(doc any) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	return s.server.compiler.AddSchema(doc)
}

// Route registers an HTTP route on this scope. The route pattern gets the
// scope prefix, its schemas are compiled now and registration errors
// surface immediately.
func (s *Scope) Route(route *Route) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	if route == nil {
		return errspkg.ErrHandlerRequired
	}
	if err := route.validate(); err != nil {
		return err
	}
	if err := route.compileSchemas(s.server.compiler); err != nil {
		return err
	}
	route.scope = s
	route.pattern = joinPattern(s.prefix, route.Path)
	return s.server.addRoute(route)
}

// MustRoute registers a route and panics on failure. Intended for
// boot-time wiring where a registration error is a programming mistake.
func (s *Scope) MustRoute(route *Route) {
	if err := s.Route(route); err != nil {
		panic(fmt.Errorf("serveflow: registering route: %w", err))
	}
}

// OnClose registers a cleanup function run by Server.Close in reverse
// registration order.
func (s *Scope) OnClose(fn func(ctx context.Context) error) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	s.server.OnClose(fn)
	return nil
}

// RegisterPlugin runs a plugin against this scope, or against a fresh
// child when the plugin encapsulates.
func (s *Scope) RegisterPlugin(reg PluginRegistration) error {
	if err := s.server.registrationOpen(); err != nil {
		return err
	}
	return s.server.plugins.register(s, reg)
}

// HasPlugin reports whether a plugin name is registered on the server.
func (s *Scope) HasPlugin(name string) bool {
	return s.server.plugins.Has(name)
}
