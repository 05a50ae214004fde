package runtime

import (
	"fmt"
	"net/http"
	"reflect"
	"time"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	"github.com/drblury/serveflow/internal/runtime/jsoncodec"
)

// JSONRoute wires a typed JSON handler to a route. In must be a pointer
// type; the raw body is unmarshalled into a fresh instance per request,
// after the parse and schema-validation states have run.
type JSONRoute[In any, Out any] struct {
	Method string
	Path   string

	Handler func(req *Request, rep *Reply, body In) (Out, error)

	Schema      *RouteSchema
	Hooks       *RouteHooks
	Timeout     time.Duration
	Constraints *Constraints
}

// RegisterJSONRoute converts the typed handler into a route handler and
// registers it on the scope.
func RegisterJSONRoute[In any, Out any](scope *Scope, cfg JSONRoute[In, Out]) error {
	if scope == nil {
		return errspkg.ErrScopeRequired
	}
	if cfg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}

	prototypeFactory, err := jsonPrototypeFactory[In]()
	if err != nil {
		return err
	}

	handler := func(req *Request, rep *Reply) (any, error) {
		typed := prototypeFactory()

		if raw := req.RawBody(); len(raw) > 0 {
			if err := jsoncodec.Unmarshal(raw, typed); err != nil {
				return nil, WrapHTTPError(http.StatusBadRequest, "Invalid request body", fmt.Errorf("failed to unmarshal JSON body: %w", err))
			}
		}

		out, err := cfg.Handler(req, rep, typed)
		if err != nil {
			return nil, err
		}
		if rep.Sent() {
			return nil, nil
		}
		return out, nil
	}

	return scope.Route(&Route{
		Method:      cfg.Method,
		Path:        cfg.Path,
		Handler:     handler,
		Schema:      cfg.Schema,
		Hooks:       cfg.Hooks,
		Timeout:     cfg.Timeout,
		Constraints: cfg.Constraints,
	})
}

// jsonPrototypeFactory builds fresh pointer instances of the body type, so
// concurrent requests never share a decode target.
func jsonPrototypeFactory[In any]() (func() In, error) {
	var zero In
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return nil, errspkg.ErrBodyTypeRequired
	}
	if typ.Kind() != reflect.Ptr {
		return nil, errspkg.ErrBodyPointerNeeded
	}
	elem := typ.Elem()
	return func() In {
		clone := reflect.New(elem).Interface()
		return clone.(In)
	}, nil
}
