package runtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	"github.com/drblury/serveflow/internal/runtime/logging"
)

// Request is the framework view of one inbound HTTP request. It is created
// before route resolution and enriched as the lifecycle progresses: route
// parameters appear after resolution, Body after the parse state.
type Request struct {
	// ID is the per-request ULID, also exposed as the X-Request-Id header.
	ID string

	// Method and Path mirror the request line.
	Method string
	Path   string

	// Params holds the route parameters once the route is resolved.
	Params map[string]string

	// Body is the parsed request body. Hooks running before the parse
	// state observe it as nil; preValidation hooks may replace it.
	Body any

	// ReceivedAt is the arrival timestamp used for latency accounting.
	ReceivedAt time.Time

	raw     *http.Request
	route   *Route
	scope   *Scope
	log     logging.ServiceLogger
	query   url.Values
	rawBody []byte
	values  map[string]any
}

func newRequest(raw *http.Request, id string, scope *Scope, log logging.ServiceLogger) *Request {
	return &Request{
		ID:         id,
		Method:     raw.Method,
		Path:       raw.URL.Path,
		Params:     map[string]string{},
		ReceivedAt: time.Now(),
		raw:        raw,
		scope:      scope,
		log:        log,
	}
}

// Context returns the context of the underlying HTTP request. It is
// canceled on client disconnect and carries the request deadline.
func (r *Request) Context() context.Context {
	return r.raw.Context()
}

// Raw exposes the underlying http.Request for embedders that need it.
func (r *Request) Raw() *http.Request {
	return r.raw
}

// Route returns the resolved route, or nil before route resolution.
func (r *Request) Route() *Route {
	return r.route
}

// Scope returns the registration scope the resolved route belongs to.
// Before route resolution it is the server root scope.
func (r *Request) Scope() *Scope {
	return r.scope
}

// Log returns the request-scoped logger carrying the request id.
func (r *Request) Log() logging.ServiceLogger {
	return r.log
}

// Param returns a single route parameter, or "" when absent.
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// Query returns the first query value for key, or "" when absent.
func (r *Request) Query(key string) string {
	return r.QueryValues().Get(key)
}

// QueryValues returns the parsed query string. Parsing happens once.
func (r *Request) QueryValues() url.Values {
	if r.query == nil {
		r.query = r.raw.URL.Query()
	}
	return r.query
}

// Header returns a request header value, or "" when absent.
func (r *Request) Header(name string) string {
	return r.raw.Header.Get(name)
}

// RawBody returns the request body bytes as read by the body parser, or
// nil when no body was read.
func (r *Request) RawBody() []byte {
	return r.rawBody
}

// Host returns the host the request was addressed to.
func (r *Request) Host() string {
	return r.raw.Host
}

// RemoteAddr returns the peer address as reported by the transport.
func (r *Request) RemoteAddr() string {
	return r.raw.RemoteAddr
}

// ServerDecoration resolves a server-scope decoration visible from the
// route's scope.
func (r *Request) ServerDecoration(name string) (any, bool) {
	return r.scope.decorators.Server(name)
}

// Get resolves a request-scope decoration. Factory decorations are
// instantiated once per request and cached, so every hook and the handler
// observe the same instance.
func (r *Request) Get(name string) (any, error) {
	if r.values != nil {
		if v, ok := r.values[name]; ok {
			return v, nil
		}
	}
	dec, ok := r.scope.decorators.lookupRequest(name)
	if !ok {
		return nil, fmt.Errorf("%w: request decoration %q", errspkg.ErrDecoratorNotFound, name)
	}
	v := dec.instantiate()
	if r.values == nil {
		r.values = map[string]any{}
	}
	r.values[name] = v
	return v, nil
}
