// Package routing matches inbound requests to registered route entries.
// The default implementation delegates pattern matching to the chi trie
// without executing chi handlers, so the request lifecycle stays under
// the dispatcher's control.
package routing

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router maps method and pattern to opaque route entries. Implementations
// must be safe for concurrent Find calls once registration has finished.
type Router interface {
	// Handle registers an entry under method and pattern. Registering the
	// same method and pattern twice replaces the entry.
	Handle(method, pattern string, entry any) error

	// Find resolves the entry matching the request, with the decoded
	// pattern parameters. ok is false on a miss.
	Find(method, path string, req *http.Request) (entry any, params map[string]string, ok bool)
}

// HostConstrained is implemented by entries that restrict matching to
// specific hosts. Entries failing the check are treated as a miss.
type HostConstrained interface {
	MatchHost(host string) bool
}

// ChiRouter is the default Router on top of the chi matching trie.
// Patterns use chi syntax: /widgets/{id}, /files/*.
type ChiRouter struct {
	mux     *chi.Mux
	entries map[string]any
}

// NewChiRouter creates an empty ChiRouter.
func NewChiRouter() *ChiRouter {
	return &ChiRouter{
		mux:     chi.NewRouter(),
		entries: map[string]any{},
	}
}

var matcherStub = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

// Handle registers the pattern in the chi trie. chi reports invalid
// methods and patterns by panicking; that is translated into an error.
func (r *ChiRouter) Handle(method, pattern string, entry any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("serveflow: registering pattern %q: %v", pattern, rec)
		}
	}()
	r.mux.Method(method, pattern, matcherStub)
	r.entries[method+" "+pattern] = entry
	return nil
}

// Find matches method and path against the trie and returns the entry
// registered for the winning pattern.
func (r *ChiRouter) Find(method, path string, req *http.Request) (any, map[string]string, bool) {
	rctx := chi.NewRouteContext()
	if !r.mux.Match(rctx, method, path) {
		return nil, nil, false
	}
	entry, ok := r.entries[method+" "+rctx.RoutePattern()]
	if !ok {
		return nil, nil, false
	}
	if constrained, ok := entry.(HostConstrained); ok && req != nil {
		if !constrained.MatchHost(req.Host) {
			return nil, nil, false
		}
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}
	return entry, params, true
}
