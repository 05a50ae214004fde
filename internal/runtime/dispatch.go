package runtime

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	configpkg "github.com/drblury/serveflow/internal/runtime/config"
	idspkg "github.com/drblury/serveflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/serveflow/internal/runtime/logging"
)

// ServeHTTP drives one request through the lifecycle state machine. The
// first request freezes registration; from then on hook and route tables
// are read-only.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.freeze()

	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = idspkg.New()
	}
	log := s.Logger.With(loggingpkg.LogFields{
		"request_id": id,
		"method":     r.Method,
		"path":       r.URL.Path,
	})

	req := newRequest(r, id, s.root, log)
	rep := newReply(w, s.root)

	d := &dispatch{server: s, req: req, rep: rep}
	d.run()
}

// dispatch carries the per-request lifecycle state: the resolved route, the
// hook manager of its scope, and the deadline cancel that must outlive the
// lifecycle states so that error hooks still observe a live context.
type dispatch struct {
	server *Server
	req    *Request
	rep    *Reply

	route  *Route
	hooks  *Hooks
	rh     *RouteHooks
	cancel context.CancelFunc
}

func (d *dispatch) run() {
	d.hooks = d.server.root.hooks

	reqErr := d.lifecycle()
	if d.cancel != nil {
		defer d.cancel()
	}

	aborted := d.terminal(reqErr)

	status := d.rep.writtenStatus()
	elapsed := time.Since(d.req.ReceivedAt)
	if d.route != nil {
		d.route.stats.onRequestFinish(status, elapsed, reqErr)
	}

	// onResponse is detached: it runs after the response was handed to
	// the transport and never adds latency to the critical path.
	d.server.detached.Add(1)
	go func() {
		defer d.server.detached.Done()
		d.hooks.RunOnResponse(d.req.log, d.rh, d.req, d.rep)
		d.publishEvent(status, reqErr, aborted, elapsed)
	}()
}

// lifecycle executes the ordered states up to the response write. Panics in
// any state or hook are recovered and surface as internal errors.
func (d *dispatch) lifecycle() (reqErr error) {
	defer func() {
		if r := recover(); r != nil {
			d.req.log.Error("Lifecycle state panicked", fmt.Errorf("%v", r), loggingpkg.LogFields{
				"stack": string(debug.Stack()),
			})
			if err, ok := r.(error); ok {
				reqErr = fmt.Errorf("serveflow: lifecycle panic: %w", err)
			} else {
				reqErr = fmt.Errorf("serveflow: lifecycle panic: %v", r)
			}
		}
	}()

	req, rep := d.req, d.rep

	// onRequest: server scope, before route resolution.
	if err := d.hooks.Run(OnRequest, req, rep); err != nil {
		return err
	}
	if rep.Sent() {
		return nil
	}

	// routeResolution.
	entry, params, ok := d.server.router.Find(req.Method, req.Path, req.Raw())
	if !ok {
		return d.runNotFound()
	}
	route := entry.(*Route)
	d.route = route
	d.hooks = route.scope.hooks
	d.rh = route.Hooks
	req.route = route
	req.scope = route.scope
	rep.scope = route.scope
	if len(params) > 0 {
		req.Params = params
	}
	req.log = req.log.With(loggingpkg.LogFields{"route": route.Pattern()})
	route.stats.onRequestStart()

	d.armDeadline(route)

	// preParsing.
	if err := d.state(PreParsing, func() error {
		return d.hooks.RunWithRoute(PreParsing, d.rh, req, rep)
	}); err != nil || rep.Sent() {
		return err
	}

	// bodyParse.
	if err := d.state("", func() error {
		return d.server.parsers.parse(req, rep, d.server.bodyLimit())
	}); err != nil || rep.Sent() {
		return err
	}

	// preValidation.
	if err := d.state(PreValidation, func() error {
		return d.hooks.RunWithRoute(PreValidation, d.rh, req, rep)
	}); err != nil || rep.Sent() {
		return err
	}

	// requestSchemaValidate.
	if err := d.state("", func() error {
		return route.validateRequest(req)
	}); err != nil || rep.Sent() {
		return err
	}

	// preHandler.
	if err := d.state(PreHandler, func() error {
		return d.hooks.RunWithRoute(PreHandler, d.rh, req, rep)
	}); err != nil || rep.Sent() {
		return err
	}

	// handlerExecute.
	var payload any
	if err := d.state("", func() error {
		var err error
		payload, err = route.Handler(req, rep)
		return err
	}); err != nil || rep.Sent() {
		return err
	}

	// preSerialization: payload hooks may replace the payload.
	if err := d.state(PreSerialization, func() error {
		var err error
		payload, err = d.hooks.RunPreSerialization(d.rh, req, rep, payload)
		return err
	}); err != nil || rep.Sent() {
		return err
	}

	// responseSchemaValidate + serialize.
	var body []byte
	var contentType string
	if err := d.state("", func() error {
		if err := route.validateResponse(rep.StatusCode(), payload); err != nil {
			return err
		}
		var err error
		body, contentType, err = serializePayload(payload)
		return err
	}); err != nil || rep.Sent() {
		return err
	}
	rep.body = payload

	// onSend: the serialized body is fixed, headers may still change.
	if err := d.state(OnSend, func() error {
		return d.hooks.RunWithRoute(OnSend, d.rh, req, rep)
	}); err != nil || rep.Sent() {
		return err
	}

	// send.
	return rep.write(rep.StatusCode(), body, contentType)
}

// state runs one lifecycle state, checking the request deadline at the
// boundary first so an expired context routes to the timeout path before
// further work starts. phase is empty for the non-hook states.
func (d *dispatch) state(phase Phase, fn func() error) error {
	if err := d.req.Context().Err(); err != nil {
		return err
	}
	err := fn()
	if err != nil && phase != "" {
		d.server.metrics.RecordHookFailure(phase)
	}
	return err
}

// armDeadline applies the route timeout (or the server default) to the
// request context. The cancel is released by run after the terminal state.
func (d *dispatch) armDeadline(route *Route) {
	timeout := route.Timeout
	if timeout <= 0 {
		timeout = d.server.Conf.RequestTimeout
	}
	if timeout <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(d.req.Context(), timeout)
	d.cancel = cancel
	d.req.raw = d.req.raw.WithContext(ctx)
}

func (d *dispatch) runNotFound() error {
	payload, err := d.server.notFound(d.req, d.rep)
	if err != nil {
		return err
	}
	if d.rep.Sent() {
		return nil
	}
	body, contentType, err := serializePayload(payload)
	if err != nil {
		return err
	}
	return d.rep.write(d.rep.StatusCode(), body, contentType)
}

// terminal resolves a lifecycle error into a wire outcome: the timeout
// path, an aborted write on client disconnect, or the onError chain
// followed by the classified envelope. Returns whether the request was
// aborted without a response.
func (d *dispatch) terminal(reqErr error) bool {
	if reqErr == nil {
		return false
	}
	if d.rep.Sent() {
		d.req.log.Error("Lifecycle error after the response was sent", reqErr, nil)
		return false
	}

	switch classifyError(reqErr) {
	case outcomeTimeout:
		d.server.metrics.RecordTimeout(routeOrPath(d.req))
		d.hooks.RunOnTimeout(d.req.log, d.rh, d.req, d.rep)
		if !d.rep.Sent() {
			status, envelope := errorEnvelope(reqErr, false)
			d.writeEnvelope(status, envelope)
		}
		return false

	case outcomeCanceled:
		// The client is gone; nothing is written.
		d.req.log.Debug("Request aborted by the client", nil)
		return true

	default:
		d.hooks.RunOnError(d.req.log, d.rh, d.req, d.rep, reqErr)
		if !d.rep.Sent() {
			status, envelope := errorEnvelope(reqErr, d.server.Conf.Development())
			if status >= http.StatusInternalServerError {
				d.req.log.Error("Request failed", reqErr, nil)
			}
			d.writeEnvelope(status, envelope)
		}
		return false
	}
}

func (d *dispatch) writeEnvelope(status int, envelope ErrorEnvelope) {
	if err := d.rep.writeJSON(status, envelope); err != nil {
		d.req.log.Error("Failed to write error envelope", err, loggingpkg.LogFields{"status": status})
	}
}

func (d *dispatch) publishEvent(status int, reqErr error, aborted bool, elapsed time.Duration) {
	if d.server.publisher == nil {
		return
	}
	event := newRequestEvent(d.req, d.rep, status, reqErr, aborted, elapsed)
	if err := PublishEvent(context.Background(), d.server.publisher, d.server.eventTopic(), event); err != nil {
		d.req.log.Error("Failed to publish lifecycle event", err, nil)
	}
}

func (s *Server) bodyLimit() int64 {
	if s.Conf.BodyLimit > 0 {
		return s.Conf.BodyLimit
	}
	return configpkg.DefaultBodyLimit
}

func (s *Server) eventTopic() string {
	if topic := s.Conf.GetEventTopic(); topic != "" {
		return topic
	}
	return configpkg.DefaultEventTopic
}
