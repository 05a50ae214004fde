package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
)

func TestHooks_RunInRegistrationOrder(t *testing.T) {
	h := newHooks()
	var order []string

	for _, name := range []string{"first", "second", "third"} {
		name := name
		require.NoError(t, h.Add(PreHandler, func(req *Request, rep *Reply) error {
			order = append(order, name)
			return nil
		}))
	}

	req, rep, _ := newTestExchange("GET", "/", nil)
	require.NoError(t, h.Run(PreHandler, req, rep))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestHooks_SentReplySkipsRemainingHooks(t *testing.T) {
	h := newHooks()
	var secondRan bool

	require.NoError(t, h.Add(PreHandler, func(req *Request, rep *Reply) error {
		return rep.Status(403).Send(map[string]string{"error": "nope"})
	}))
	require.NoError(t, h.Add(PreHandler, func(req *Request, rep *Reply) error {
		secondRan = true
		return nil
	}))

	req, rep, rec := newTestExchange("GET", "/", nil)
	require.NoError(t, h.Run(PreHandler, req, rep))
	assert.False(t, secondRan)
	assert.Equal(t, 403, rec.Code)
}

func TestHooks_FirstErrorStopsPhase(t *testing.T) {
	h := newHooks()
	boom := errors.New("boom")
	var secondRan bool

	require.NoError(t, h.Add(PreParsing, func(req *Request, rep *Reply) error {
		return boom
	}))
	require.NoError(t, h.Add(PreParsing, func(req *Request, rep *Reply) error {
		secondRan = true
		return nil
	}))

	req, rep, _ := newTestExchange("GET", "/", nil)
	err := h.Run(PreParsing, req, rep)
	assert.ErrorIs(t, err, boom)
	assert.False(t, secondRan)
}

func TestHooks_RouteHooksRunBeforeScopeHooks(t *testing.T) {
	h := newHooks()
	var order []string

	require.NoError(t, h.Add(PreHandler, func(req *Request, rep *Reply) error {
		order = append(order, "scope")
		return nil
	}))
	route := &RouteHooks{
		PreHandler: []Hook{func(req *Request, rep *Reply) error {
			order = append(order, "route")
			return nil
		}},
	}

	req, rep, _ := newTestExchange("GET", "/", nil)
	require.NoError(t, h.RunWithRoute(PreHandler, route, req, rep))
	assert.Equal(t, []string{"route", "scope"}, order)
}

func TestHooks_AddRejectsNilHook(t *testing.T) {
	h := newHooks()
	assert.ErrorIs(t, h.Add(PreHandler, nil), errspkg.ErrHookRequired)
	assert.ErrorIs(t, h.AddPreSerialization(nil), errspkg.ErrHookRequired)
	assert.ErrorIs(t, h.AddOnError(nil), errspkg.ErrHookRequired)
}

func TestHooks_AddRejectsUnknownPhase(t *testing.T) {
	h := newHooks()
	err := h.Add(Phase("onTeapot"), func(req *Request, rep *Reply) error { return nil })
	assert.ErrorIs(t, err, errspkg.ErrUnknownHookPhase)
}

func TestHooks_PreSerializationLastReplacementWins(t *testing.T) {
	h := newHooks()
	require.NoError(t, h.AddPreSerialization(func(req *Request, rep *Reply, payload any) (any, error) {
		return "first", nil
	}))
	require.NoError(t, h.AddPreSerialization(func(req *Request, rep *Reply, payload any) (any, error) {
		assert.Equal(t, "first", payload)
		return "second", nil
	}))
	require.NoError(t, h.AddPreSerialization(func(req *Request, rep *Reply, payload any) (any, error) {
		// nil keeps the previous payload
		return nil, nil
	}))

	req, rep, _ := newTestExchange("GET", "/", nil)
	out, err := h.RunPreSerialization(nil, req, rep, "original")
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestHooks_PreSerializationRoutePayloadHooksRunFirst(t *testing.T) {
	h := newHooks()
	require.NoError(t, h.AddPreSerialization(func(req *Request, rep *Reply, payload any) (any, error) {
		return payload.(string) + "+scope", nil
	}))
	route := &RouteHooks{
		PreSerialization: []PayloadHook{func(req *Request, rep *Reply, payload any) (any, error) {
			return payload.(string) + "+route", nil
		}},
	}

	req, rep, _ := newTestExchange("GET", "/", nil)
	out, err := h.RunPreSerialization(route, req, rep, "base")
	require.NoError(t, err)
	assert.Equal(t, "base+route+scope", out)
}

func TestHooks_AddPlainPreSerializationKeepsPayload(t *testing.T) {
	h := newHooks()
	require.NoError(t, h.Add(PreSerialization, func(req *Request, rep *Reply) error {
		return nil
	}))

	req, rep, _ := newTestExchange("GET", "/", nil)
	out, err := h.RunPreSerialization(nil, req, rep, "payload")
	require.NoError(t, err)
	assert.Equal(t, "payload", out)
}

func TestHooks_RunOnErrorContainsPanicsAndContinues(t *testing.T) {
	h := newHooks()
	var sawErr error
	require.NoError(t, h.AddOnError(func(req *Request, rep *Reply, reqErr error) error {
		panic("hook exploded")
	}))
	require.NoError(t, h.AddOnError(func(req *Request, rep *Reply, reqErr error) error {
		sawErr = reqErr
		return nil
	}))

	boom := errors.New("lifecycle failed")
	req, rep, _ := newTestExchange("GET", "/", nil)
	h.RunOnError(testLogger(), nil, req, rep, boom)
	assert.ErrorIs(t, sawErr, boom)
}

func TestHooks_RunOnErrorStopsWhenReplySent(t *testing.T) {
	h := newHooks()
	var secondRan bool
	require.NoError(t, h.AddOnError(func(req *Request, rep *Reply, reqErr error) error {
		return rep.Status(503).Send("custom failure")
	}))
	require.NoError(t, h.AddOnError(func(req *Request, rep *Reply, reqErr error) error {
		secondRan = true
		return nil
	}))

	req, rep, rec := newTestExchange("GET", "/", nil)
	h.RunOnError(testLogger(), nil, req, rep, errors.New("boom"))
	assert.False(t, secondRan)
	assert.Equal(t, 503, rec.Code)
}

func TestHooks_RunOnTimeoutRouteHooksFirst(t *testing.T) {
	h := newHooks()
	var order []string
	require.NoError(t, h.Add(OnTimeout, func(req *Request, rep *Reply) error {
		order = append(order, "scope")
		return nil
	}))
	route := &RouteHooks{
		OnTimeout: []Hook{func(req *Request, rep *Reply) error {
			order = append(order, "route")
			return nil
		}},
	}

	req, rep, _ := newTestExchange("GET", "/", nil)
	h.RunOnTimeout(testLogger(), route, req, rep)
	assert.Equal(t, []string{"route", "scope"}, order)
}

func TestHooks_RunOnResponseRunsAfterSend(t *testing.T) {
	h := newHooks()
	var ran bool
	require.NoError(t, h.Add(OnResponse, func(req *Request, rep *Reply) error {
		ran = true
		return nil
	}))

	req, rep, _ := newTestExchange("GET", "/", nil)
	require.NoError(t, rep.Send("done"))
	h.RunOnResponse(testLogger(), nil, req, rep)
	assert.True(t, ran)
}

func TestHooks_CloneIsolatesLaterAdditions(t *testing.T) {
	parent := newHooks()
	require.NoError(t, parent.Add(PreHandler, func(req *Request, rep *Reply) error { return nil }))

	child := parent.Clone()
	require.NoError(t, child.Add(PreHandler, func(req *Request, rep *Reply) error { return nil }))
	require.NoError(t, parent.Add(OnSend, func(req *Request, rep *Reply) error { return nil }))

	assert.Equal(t, 1, parent.Count(PreHandler))
	assert.Equal(t, 2, child.Count(PreHandler))
	assert.Equal(t, 1, parent.Count(OnSend))
	assert.Equal(t, 0, child.Count(OnSend))
}

func TestHooks_InheritPutsParentHooksFirst(t *testing.T) {
	var order []string
	parent := newHooks()
	require.NoError(t, parent.Add(PreHandler, func(req *Request, rep *Reply) error {
		order = append(order, "parent")
		return nil
	}))
	child := newHooks()
	require.NoError(t, child.Add(PreHandler, func(req *Request, rep *Reply) error {
		order = append(order, "child")
		return nil
	}))

	child.Inherit(parent)
	req, rep, _ := newTestExchange("GET", "/", nil)
	require.NoError(t, child.Run(PreHandler, req, rep))
	assert.Equal(t, []string{"parent", "child"}, order)
}

func TestHooks_CountsCoverEveryPhase(t *testing.T) {
	h := newHooks()
	require.NoError(t, h.Add(OnRequest, func(req *Request, rep *Reply) error { return nil }))
	require.NoError(t, h.AddPreSerialization(func(req *Request, rep *Reply, payload any) (any, error) { return nil, nil }))
	require.NoError(t, h.AddOnError(func(req *Request, rep *Reply, reqErr error) error { return nil }))

	counts := h.Counts()
	assert.Len(t, counts, len(Phases()))
	assert.Equal(t, 1, counts[OnRequest])
	assert.Equal(t, 1, counts[PreSerialization])
	assert.Equal(t, 1, counts[OnError])
	assert.Equal(t, 0, counts[PreHandler])
}
