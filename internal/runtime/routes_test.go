package runtime

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
)

func TestRoute_ValidateRequiredFields(t *testing.T) {
	handler := func(req *Request, rep *Reply) (any, error) { return nil, nil }

	err := (&Route{Path: "/x", Handler: handler}).validate()
	assert.ErrorIs(t, err, errspkg.ErrRouteMethodRequired)

	err = (&Route{Method: http.MethodGet, Handler: handler}).validate()
	assert.ErrorIs(t, err, errspkg.ErrRoutePathRequired)

	err = (&Route{Method: http.MethodGet, Path: "no-slash", Handler: handler}).validate()
	assert.ErrorIs(t, err, errspkg.ErrRoutePathRequired)

	err = (&Route{Method: http.MethodGet, Path: "/x"}).validate()
	assert.ErrorIs(t, err, errspkg.ErrHandlerRequired)

	assert.NoError(t, (&Route{Method: http.MethodGet, Path: "/x", Handler: handler}).validate())
}

func TestRoute_MatchHost(t *testing.T) {
	unconstrained := &Route{}
	assert.True(t, unconstrained.MatchHost("anything.example.com"))

	route := &Route{Constraints: &Constraints{Host: "api.example.com"}}
	assert.True(t, route.MatchHost("api.example.com"))
	assert.True(t, route.MatchHost("API.EXAMPLE.COM"))
	assert.True(t, route.MatchHost("api.example.com:8080"))
	assert.False(t, route.MatchHost("web.example.com"))
}

func TestJoinPattern(t *testing.T) {
	assert.Equal(t, "/widgets", joinPattern("", "/widgets"))
	assert.Equal(t, "/widgets", joinPattern("/", "/widgets"))
	assert.Equal(t, "/admin/widgets", joinPattern("/admin", "/widgets"))
	assert.Equal(t, "/admin/widgets", joinPattern("/admin/", "/widgets"))
	assert.Equal(t, "/admin", joinPattern("/admin", "/"))
}

func TestScopeRoute_CompilesSchemaAtRegistration(t *testing.T) {
	srv := newTestServer(t, nil)

	err := srv.Route(&Route{
		Method: http.MethodPost,
		Path:   "/bad-schema",
		Schema: &RouteSchema{
			Body: map[string]any{"type": "not-a-type"},
		},
		Handler: func(req *Request, rep *Reply) (any, error) { return nil, nil },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body schema")
}

func TestScopeRoute_SchemaByIDRequiresRegistration(t *testing.T) {
	srv := newTestServer(t, nil)

	err := srv.Route(&Route{
		Method:  http.MethodPost,
		Path:    "/by-id",
		Schema:  &RouteSchema{Body: "https://example.com/schemas/widget"},
		Handler: func(req *Request, rep *Reply) (any, error) { return nil, nil },
	})
	assert.ErrorIs(t, err, errspkg.ErrSchemaNotFound)

	require.NoError(t, srv.Scope().AddSchema(map[string]any{
		"$id":      "https://example.com/schemas/widget",
		"type":     "object",
		"required": []any{"name"},
	}))
	err = srv.Route(&Route{
		Method:  http.MethodPost,
		Path:    "/by-id",
		Schema:  &RouteSchema{Body: "https://example.com/schemas/widget"},
		Handler: func(req *Request, rep *Reply) (any, error) { return nil, nil },
	})
	assert.NoError(t, err)
}

func TestScopeRoute_PatternIncludesScopePrefix(t *testing.T) {
	srv := newTestServer(t, nil)
	child := srv.Scope().createChild("/api")

	require.NoError(t, child.Route(&Route{
		Method:  http.MethodGet,
		Path:    "/things",
		Handler: func(req *Request, rep *Reply) (any, error) { return nil, nil },
	}))

	routes := srv.Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "/api/things", routes[0].Pattern())
	assert.Equal(t, "/api", routes[0].Scope().Prefix())
}

func TestScopeRoute_NilRouteRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.Error(t, srv.Route(nil))
}

func TestMustRoute_PanicsOnInvalidRoute(t *testing.T) {
	srv := newTestServer(t, nil)
	assert.Panics(t, func() {
		srv.MustRoute(&Route{Method: http.MethodGet, Path: "/x"})
	})
}
