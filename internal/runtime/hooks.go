package runtime

import (
	"fmt"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	"github.com/drblury/serveflow/internal/runtime/logging"
)

// Phase identifies one point in the request lifecycle where hooks run.
type Phase string

const (
	// OnRequest runs first, before route resolution. Server scope only.
	OnRequest Phase = "onRequest"

	// PreParsing runs after route resolution, before the body is read.
	PreParsing Phase = "preParsing"

	// PreValidation runs after body parsing, before schema validation.
	PreValidation Phase = "preValidation"

	// PreHandler runs after validation, immediately before the handler.
	PreHandler Phase = "preHandler"

	// PreSerialization runs between the handler and serialization and may
	// replace the payload.
	PreSerialization Phase = "preSerialization"

	// OnSend runs after serialization, before the bytes hit the wire.
	OnSend Phase = "onSend"

	// OnResponse runs detached after the response is handed off.
	OnResponse Phase = "onResponse"

	// OnError runs when any lifecycle state fails.
	OnError Phase = "onError"

	// OnTimeout runs when the request deadline expires.
	OnTimeout Phase = "onTimeout"
)

// Phases lists every lifecycle phase in execution order.
func Phases() []Phase {
	return []Phase{
		OnRequest,
		PreParsing,
		PreValidation,
		PreHandler,
		PreSerialization,
		OnSend,
		OnResponse,
		OnError,
		OnTimeout,
	}
}

// Hook observes one lifecycle phase. Returning an error aborts the
// remaining hooks of the phase and routes the request to onError. Sending
// the reply inside a hook stops the lifecycle without an error.
type Hook func(req *Request, rep *Reply) error

// PayloadHook runs in the preSerialization phase. Returning a non-nil
// payload replaces the current one for the hooks that follow and for
// serialization; returning nil leaves it unchanged.
type PayloadHook func(req *Request, rep *Reply, payload any) (any, error)

// ErrorHook observes a failed request in the onError phase. reqErr is the
// error that aborted the lifecycle. An ErrorHook may send a custom
// response; its own error return is logged and never replaces reqErr.
type ErrorHook func(req *Request, rep *Reply, reqErr error) error

// RouteHooks carries hooks registered on a single route. Route hooks of a
// phase run before the scope hooks of the same phase. There is no
// onRequest slot: routes are not resolved yet when onRequest runs.
type RouteHooks struct {
	PreParsing       []Hook
	PreValidation    []Hook
	PreHandler       []Hook
	PreSerialization []PayloadHook
	OnSend           []Hook
	OnResponse       []Hook
	OnError          []ErrorHook
	OnTimeout        []Hook
}

// Hooks stores the lifecycle hooks of one scope in registration order.
// Registration happens at boot; runs happen on the request path and read
// the slices without locking.
type Hooks struct {
	onRequest        []Hook
	preParsing       []Hook
	preValidation    []Hook
	preHandler       []Hook
	preSerialization []PayloadHook
	onSend           []Hook
	onResponse       []Hook
	onError          []ErrorHook
	onTimeout        []Hook
}

func newHooks() *Hooks {
	return &Hooks{}
}

// Add registers a hook for the given phase, appended after the hooks
// already present. Hooks added to preSerialization through Add keep the
// payload unchanged; use AddPreSerialization to replace payloads. Hooks
// added to onError observe the phase without seeing the request error.
func (h *Hooks) Add(phase Phase, hook Hook) error {
	if hook == nil {
		return errspkg.ErrHookRequired
	}
	switch phase {
	case OnRequest:
		h.onRequest = append(h.onRequest, hook)
	case PreParsing:
		h.preParsing = append(h.preParsing, hook)
	case PreValidation:
		h.preValidation = append(h.preValidation, hook)
	case PreHandler:
		h.preHandler = append(h.preHandler, hook)
	case PreSerialization:
		h.preSerialization = append(h.preSerialization, func(req *Request, rep *Reply, payload any) (any, error) {
			return payload, hook(req, rep)
		})
	case OnSend:
		h.onSend = append(h.onSend, hook)
	case OnResponse:
		h.onResponse = append(h.onResponse, hook)
	case OnError:
		h.onError = append(h.onError, func(req *Request, rep *Reply, _ error) error {
			return hook(req, rep)
		})
	case OnTimeout:
		h.onTimeout = append(h.onTimeout, hook)
	default:
		return fmt.Errorf("%w: %q", errspkg.ErrUnknownHookPhase, phase)
	}
	return nil
}

// AddPreSerialization registers a payload-replacing hook.
func (h *Hooks) AddPreSerialization(hook PayloadHook) error {
	if hook == nil {
		return errspkg.ErrHookRequired
	}
	h.preSerialization = append(h.preSerialization, hook)
	return nil
}

// AddOnError registers an error hook that receives the request error.
func (h *Hooks) AddOnError(hook ErrorHook) error {
	if hook == nil {
		return errspkg.ErrHookRequired
	}
	h.onError = append(h.onError, hook)
	return nil
}

// Run executes the scope hooks of a plain phase in registration order.
// The reply's sent flag is checked before every hook; once the reply is
// sent the rest of the phase is skipped. The first hook error stops the
// phase and is returned.
func (h *Hooks) Run(phase Phase, req *Request, rep *Reply) error {
	return runHooks(h.plain(phase), req, rep)
}

// RunWithRoute executes the route hooks of the phase, then the scope
// hooks, under the same sent-flag and first-error rules.
func (h *Hooks) RunWithRoute(phase Phase, route *RouteHooks, req *Request, rep *Reply) error {
	if route != nil {
		if err := runHooks(route.plain(phase), req, rep); err != nil {
			return err
		}
	}
	return h.Run(phase, req, rep)
}

func runHooks(hooks []Hook, req *Request, rep *Reply) error {
	for _, hook := range hooks {
		if rep.Sent() {
			return nil
		}
		if err := hook(req, rep); err != nil {
			return err
		}
	}
	return nil
}

// RunPreSerialization threads the payload through the route and scope
// payload hooks. Each non-nil return replaces the payload for the hooks
// that follow; the last replacement wins.
func (h *Hooks) RunPreSerialization(route *RouteHooks, req *Request, rep *Reply, payload any) (any, error) {
	hooks := h.preSerialization
	if route != nil && len(route.PreSerialization) > 0 {
		hooks = append(append([]PayloadHook{}, route.PreSerialization...), hooks...)
	}
	for _, hook := range hooks {
		if rep.Sent() {
			return payload, nil
		}
		out, err := hook(req, rep, payload)
		if err != nil {
			return payload, err
		}
		if out != nil {
			payload = out
		}
	}
	return payload, nil
}

// RunOnError executes the error hooks with the request error. Hook
// failures and panics are logged and contained so that error handling
// itself never aborts; the chain stops only when a hook sends the reply.
func (h *Hooks) RunOnError(log logging.ServiceLogger, route *RouteHooks, req *Request, rep *Reply, reqErr error) {
	hooks := h.onError
	if route != nil && len(route.OnError) > 0 {
		hooks = append(append([]ErrorHook{}, route.OnError...), hooks...)
	}
	for _, hook := range hooks {
		if rep.Sent() {
			return
		}
		runErrorHookContained(log, hook, req, rep, reqErr)
	}
}

func runErrorHookContained(log logging.ServiceLogger, hook ErrorHook, req *Request, rep *Reply, reqErr error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("onError hook panicked", fmt.Errorf("%v", r), logging.LogFields{
				"request_id": req.ID,
			})
		}
	}()
	if err := hook(req, rep, reqErr); err != nil {
		log.Error("onError hook failed", err, logging.LogFields{
			"request_id": req.ID,
		})
	}
}

// RunOnTimeout executes the timeout hooks. Failures and panics are logged
// and contained; the chain stops when a hook sends the reply. The caller
// writes the default 408 reply when no hook did.
func (h *Hooks) RunOnTimeout(log logging.ServiceLogger, route *RouteHooks, req *Request, rep *Reply) {
	hooks := h.onTimeout
	if route != nil && len(route.OnTimeout) > 0 {
		hooks = append(append([]Hook{}, route.OnTimeout...), hooks...)
	}
	for _, hook := range hooks {
		if rep.Sent() {
			return
		}
		runHookContained(log, "onTimeout", hook, req, rep)
	}
}

// RunOnResponse executes the response hooks detached from the request's
// critical path. Failures and panics are logged and contained; the sent
// flag no longer gates anything here because the response is already on
// the wire.
func (h *Hooks) RunOnResponse(log logging.ServiceLogger, route *RouteHooks, req *Request, rep *Reply) {
	hooks := h.onResponse
	if route != nil && len(route.OnResponse) > 0 {
		hooks = append(append([]Hook{}, route.OnResponse...), hooks...)
	}
	for _, hook := range hooks {
		runHookContained(log, "onResponse", hook, req, rep)
	}
}

func runHookContained(log logging.ServiceLogger, phase string, hook Hook, req *Request, rep *Reply) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(phase+" hook panicked", fmt.Errorf("%v", r), logging.LogFields{
				"request_id": req.ID,
			})
		}
	}()
	if err := hook(req, rep); err != nil {
		log.Error(phase+" hook failed", err, logging.LogFields{
			"request_id": req.ID,
		})
	}
}

// Clone returns a manager with copied hook slices. The copies share the
// hook functions; additions to either side after the clone stay local.
func (h *Hooks) Clone() *Hooks {
	return &Hooks{
		onRequest:        append([]Hook{}, h.onRequest...),
		preParsing:       append([]Hook{}, h.preParsing...),
		preValidation:    append([]Hook{}, h.preValidation...),
		preHandler:       append([]Hook{}, h.preHandler...),
		preSerialization: append([]PayloadHook{}, h.preSerialization...),
		onSend:           append([]Hook{}, h.onSend...),
		onResponse:       append([]Hook{}, h.onResponse...),
		onError:          append([]ErrorHook{}, h.onError...),
		onTimeout:        append([]Hook{}, h.onTimeout...),
	}
}

// Inherit prepends the parent's hooks to this manager's, so parent hooks
// run first in every phase.
func (h *Hooks) Inherit(parent *Hooks) {
	h.onRequest = append(append([]Hook{}, parent.onRequest...), h.onRequest...)
	h.preParsing = append(append([]Hook{}, parent.preParsing...), h.preParsing...)
	h.preValidation = append(append([]Hook{}, parent.preValidation...), h.preValidation...)
	h.preHandler = append(append([]Hook{}, parent.preHandler...), h.preHandler...)
	h.preSerialization = append(append([]PayloadHook{}, parent.preSerialization...), h.preSerialization...)
	h.onSend = append(append([]Hook{}, parent.onSend...), h.onSend...)
	h.onResponse = append(append([]Hook{}, parent.onResponse...), h.onResponse...)
	h.onError = append(append([]ErrorHook{}, parent.onError...), h.onError...)
	h.onTimeout = append(append([]Hook{}, parent.onTimeout...), h.onTimeout...)
}

// Count returns the number of hooks registered for a phase.
func (h *Hooks) Count(phase Phase) int {
	switch phase {
	case PreSerialization:
		return len(h.preSerialization)
	case OnError:
		return len(h.onError)
	default:
		return len(h.plain(phase))
	}
}

// Counts maps every phase to its registered hook count.
func (h *Hooks) Counts() map[Phase]int {
	counts := make(map[Phase]int, len(Phases()))
	for _, phase := range Phases() {
		counts[phase] = h.Count(phase)
	}
	return counts
}

func (h *Hooks) plain(phase Phase) []Hook {
	switch phase {
	case OnRequest:
		return h.onRequest
	case PreParsing:
		return h.preParsing
	case PreValidation:
		return h.preValidation
	case PreHandler:
		return h.preHandler
	case OnSend:
		return h.onSend
	case OnResponse:
		return h.onResponse
	case OnTimeout:
		return h.onTimeout
	default:
		return nil
	}
}

func (r *RouteHooks) plain(phase Phase) []Hook {
	switch phase {
	case PreParsing:
		return r.PreParsing
	case PreValidation:
		return r.PreValidation
	case PreHandler:
		return r.PreHandler
	case OnSend:
		return r.OnSend
	case OnResponse:
		return r.OnResponse
	case OnTimeout:
		return r.OnTimeout
	default:
		return nil
	}
}
