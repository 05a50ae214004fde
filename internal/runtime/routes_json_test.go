package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
)

type createWidget struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type widgetCreated struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestRegisterJSONRoute_DecodesBodyIntoFreshInstance(t *testing.T) {
	srv := newTestServer(t, nil)

	require.NoError(t, RegisterJSONRoute(srv.Scope(), JSONRoute[*createWidget, widgetCreated]{
		Method: http.MethodPost,
		Path:   "/widgets",
		Handler: func(req *Request, rep *Reply, body *createWidget) (widgetCreated, error) {
			rep.Status(http.StatusCreated)
			return widgetCreated{ID: "w-1", Name: body.Name}, nil
		},
	}))

	rec := postJSON(srv, "/widgets", `{"name":"sprocket","quantity":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"w-1","name":"sprocket"}`, rec.Body.String())
}

func TestRegisterJSONRoute_TypeMismatchIs400(t *testing.T) {
	srv := newTestServer(t, nil)

	require.NoError(t, RegisterJSONRoute(srv.Scope(), JSONRoute[*createWidget, widgetCreated]{
		Method: http.MethodPost,
		Path:   "/widgets",
		Handler: func(req *Request, rep *Reply, body *createWidget) (widgetCreated, error) {
			return widgetCreated{}, nil
		},
	}))

	rec := postJSON(srv, "/widgets", `{"name":"x","quantity":"not a number"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterJSONRoute_SchemaValidationRunsBeforeHandler(t *testing.T) {
	srv := newTestServer(t, nil)
	var handlerRan bool

	require.NoError(t, RegisterJSONRoute(srv.Scope(), JSONRoute[*createWidget, widgetCreated]{
		Method: http.MethodPost,
		Path:   "/widgets",
		Schema: &RouteSchema{Body: widgetBodySchema()},
		Handler: func(req *Request, rep *Reply, body *createWidget) (widgetCreated, error) {
			handlerRan = true
			return widgetCreated{}, nil
		},
	}))

	rec := postJSON(srv, "/widgets", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, handlerRan)
}

func TestRegisterJSONRoute_SentReplySkipsPayload(t *testing.T) {
	srv := newTestServer(t, nil)

	require.NoError(t, RegisterJSONRoute(srv.Scope(), JSONRoute[*createWidget, widgetCreated]{
		Method: http.MethodPost,
		Path:   "/widgets",
		Handler: func(req *Request, rep *Reply, body *createWidget) (widgetCreated, error) {
			err := rep.Status(http.StatusAccepted).Send("queued")
			return widgetCreated{ID: "ignored"}, err
		},
	}))

	rec := postJSON(srv, "/widgets", `{"name":"x"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "queued", rec.Body.String())
}

func TestRegisterJSONRoute_RequiresScopeAndHandler(t *testing.T) {
	srv := newTestServer(t, nil)

	err := RegisterJSONRoute[*createWidget, widgetCreated](nil, JSONRoute[*createWidget, widgetCreated]{
		Method: http.MethodPost,
		Path:   "/widgets",
		Handler: func(req *Request, rep *Reply, body *createWidget) (widgetCreated, error) {
			return widgetCreated{}, nil
		},
	})
	assert.ErrorIs(t, err, errspkg.ErrScopeRequired)

	err = RegisterJSONRoute(srv.Scope(), JSONRoute[*createWidget, widgetCreated]{
		Method: http.MethodPost,
		Path:   "/widgets",
	})
	assert.ErrorIs(t, err, errspkg.ErrHandlerRequired)
}

func TestRegisterJSONRoute_BodyTypeMustBePointer(t *testing.T) {
	srv := newTestServer(t, nil)

	err := RegisterJSONRoute(srv.Scope(), JSONRoute[createWidget, widgetCreated]{
		Method: http.MethodPost,
		Path:   "/widgets",
		Handler: func(req *Request, rep *Reply, body createWidget) (widgetCreated, error) {
			return widgetCreated{}, nil
		},
	})
	assert.ErrorIs(t, err, errspkg.ErrBodyPointerNeeded)
}

func TestRegisterJSONRoute_EmptyBodyYieldsZeroValue(t *testing.T) {
	srv := newTestServer(t, nil)

	require.NoError(t, RegisterJSONRoute(srv.Scope(), JSONRoute[*createWidget, widgetCreated]{
		Method: http.MethodPost,
		Path:   "/widgets",
		Handler: func(req *Request, rep *Reply, body *createWidget) (widgetCreated, error) {
			require.NotNil(t, body)
			return widgetCreated{Name: body.Name}, nil
		},
	}))

	req := httptest.NewRequest(http.MethodPost, "/widgets", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
