package runtime

import (
	"fmt"
	"net"
	"strings"
	"time"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	"github.com/drblury/serveflow/internal/runtime/schema"
)

// RouteSchema declares the validation schemas of one route. Each section
// accepts a JSON schema document (map or struct) or the string id of a
// schema previously added to the compiler. Response schemas are keyed by
// exact status code.
type RouteSchema struct {
	Params   any
	Query    any
	Headers  any
	Body     any
	Response map[int]any
}

// Constraints restricts route matching beyond method and path.
type Constraints struct {
	// Host limits the route to requests addressed to this host.
	Host string
}

// Route declares one HTTP operation. Method, Path and Handler are
// required; everything else is optional.
type Route struct {
	Method  string
	Path    string
	Handler Handler

	// Schema attaches request and response validation.
	Schema *RouteSchema

	// Hooks run for this route only, before the scope hooks of the same
	// phase.
	Hooks *RouteHooks

	// Timeout overrides the server request timeout for this route.
	Timeout time.Duration

	// Constraints restricts matching, e.g. to a single host.
	Constraints *Constraints

	scope    *Scope
	pattern  string
	compiled *compiledRouteSchema
	stats    *RouteStats
}

// Handler produces the response payload for a route. The returned payload
// is handed to preSerialization; a handler that sends the reply itself
// returns nil and skips the remaining states.
type Handler func(req *Request, rep *Reply) (any, error)

// Pattern returns the full route pattern including the scope prefix.
func (r *Route) Pattern() string {
	return r.pattern
}

// Scope returns the scope the route was registered on.
func (r *Route) Scope() *Scope {
	return r.scope
}

// MatchHost reports whether the route accepts a request addressed to
// host. Routes without a host constraint accept everything; the port is
// ignored.
func (r *Route) MatchHost(host string) bool {
	if r.Constraints == nil || r.Constraints.Host == "" {
		return true
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.EqualFold(host, r.Constraints.Host)
}

func (r *Route) validate() error {
	if r.Method == "" {
		return errspkg.ErrRouteMethodRequired
	}
	if r.Path == "" || !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("%w: %q", errspkg.ErrRoutePathRequired, r.Path)
	}
	if r.Handler == nil {
		return fmt.Errorf("%w: %s %s", errspkg.ErrHandlerRequired, r.Method, r.Path)
	}
	return nil
}

// compiledRouteSchema holds the validators compiled at registration time.
type compiledRouteSchema struct {
	params   *schema.Compiled
	query    *schema.Compiled
	headers  *schema.Compiled
	body     *schema.Compiled
	response map[int]*schema.Compiled
}

func (r *Route) compileSchemas(compiler *schema.Compiler) error {
	if r.Schema == nil {
		return nil
	}
	var (
		out compiledRouteSchema
		err error
	)
	if out.params, err = compileSchemaDoc(compiler, r.Schema.Params); err != nil {
		return fmt.Errorf("route %s %s: params schema: %w", r.Method, r.Path, err)
	}
	if out.query, err = compileSchemaDoc(compiler, r.Schema.Query); err != nil {
		return fmt.Errorf("route %s %s: query schema: %w", r.Method, r.Path, err)
	}
	if out.headers, err = compileSchemaDoc(compiler, r.Schema.Headers); err != nil {
		return fmt.Errorf("route %s %s: headers schema: %w", r.Method, r.Path, err)
	}
	if out.body, err = compileSchemaDoc(compiler, r.Schema.Body); err != nil {
		return fmt.Errorf("route %s %s: body schema: %w", r.Method, r.Path, err)
	}
	if len(r.Schema.Response) > 0 {
		out.response = make(map[int]*schema.Compiled, len(r.Schema.Response))
		for status, doc := range r.Schema.Response {
			compiled, err := compileSchemaDoc(compiler, doc)
			if err != nil {
				return fmt.Errorf("route %s %s: response schema for %d: %w", r.Method, r.Path, status, err)
			}
			out.response[status] = compiled
		}
	}
	r.compiled = &out
	return nil
}

// compileSchemaDoc compiles one schema section. String documents are
// treated as references to schemas registered by id.
func compileSchemaDoc(compiler *schema.Compiler, doc any) (*schema.Compiled, error) {
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case string:
		return compiler.CompileByID(v)
	case *schema.Compiled:
		return v, nil
	default:
		return compiler.Compile(doc)
	}
}

// joinPattern prefixes a route path with the scope prefix, collapsing the
// duplicate slash at the seam.
func joinPattern(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	prefix = strings.TrimSuffix(prefix, "/")
	if path == "/" {
		return prefix
	}
	return prefix + path
}
