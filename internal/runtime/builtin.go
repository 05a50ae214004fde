package runtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	loggingpkg "github.com/drblury/serveflow/internal/runtime/logging"
)

// HookBuilder constructs a hook using the server instance. Returning a nil
// hook with a nil error skips the registration, e.g. when the feature is
// disabled in the configuration.
type HookBuilder func(*Server) (Hook, error)

// HookRegistration captures how a hook should be registered on the server
// root scope.
type HookRegistration struct {
	Name    string
	Phase   Phase
	Hook    Hook
	Builder HookBuilder
}

// DefaultHooks returns the standard hook set installed by NewServer unless
// the configuration disables them.
func DefaultHooks() []HookRegistration {
	return []HookRegistration{
		RequestIDHook(),
		MetricsStartHook(),
		RequestLoggingHook(nil),
		TracingHook(),
		MetricsEndHook(),
	}
}

// RequestIDHook exposes the request id as the X-Request-Id response header.
func RequestIDHook() HookRegistration {
	return HookRegistration{
		Name:  "request_id",
		Phase: OnRequest,
		Hook: func(req *Request, rep *Reply) error {
			rep.Header("X-Request-Id", req.ID)
			return nil
		},
	}
}

// RequestLoggingHook logs one line per completed request, detached from
// the response path.
func RequestLoggingHook(logger loggingpkg.ServiceLogger) HookRegistration {
	return HookRegistration{
		Name:  "request_logging",
		Phase: OnResponse,
		Builder: func(s *Server) (Hook, error) {
			if s.Conf.DisableRequestLogging {
				return nil, nil
			}
			l := logger
			if l == nil {
				l = s.Logger
			}
			if l == nil {
				return nil, errors.New("request logging hook requires a logger")
			}
			return func(req *Request, rep *Reply) error {
				fields := loggingpkg.LogFields{
					"request_id": req.ID,
					"method":     req.Method,
					"path":       req.Path,
					"status":     rep.writtenStatus(),
					"elapsed_ms": time.Since(req.ReceivedAt).Milliseconds(),
					"bytes_out":  rep.wrote,
				}
				if route := req.Route(); route != nil {
					fields["route"] = route.Pattern()
				}
				l.Debug("Request completed", fields)
				return nil
			}, nil
		},
	}
}

// TracingHook records each completed request as an OpenTelemetry span,
// timed from arrival to response handoff.
func TracingHook() HookRegistration {
	return HookRegistration{
		Name:  "tracing",
		Phase: OnResponse,
		Hook: func(req *Request, rep *Reply) error {
			tracer := otel.Tracer("serveflow")
			_, span := tracer.Start(
				req.Context(),
				req.Method+" "+routeOrPath(req),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithTimestamp(req.ReceivedAt),
			)
			status := rep.writtenStatus()
			span.SetAttributes(
				attribute.String("http.request_id", req.ID),
				attribute.String("http.method", req.Method),
				attribute.String("http.route", routeOrPath(req)),
				attribute.Int("http.status_code", status),
			)
			if status >= 500 {
				span.SetStatus(codes.Error, "request failed")
			}
			span.End()
			return nil
		},
	}
}

func routeOrPath(req *Request) string {
	if route := req.Route(); route != nil {
		return route.Pattern()
	}
	return req.Path
}

// MetricsStartHook marks requests entering the lifecycle and, when a
// metrics port is configured, exposes the Prometheus handler there.
func MetricsStartHook() HookRegistration {
	return HookRegistration{
		Name:  "metrics_start",
		Phase: OnRequest,
		Builder: func(s *Server) (Hook, error) {
			if !s.Conf.MetricsEnabled {
				return nil, nil
			}
			if err := s.metrics.Register(); err != nil {
				return nil, err
			}
			if s.Conf.MetricsPort > 0 {
				s.RegisterHTTPHandler(s.Conf.MetricsPort, "/metrics", promhttp.Handler())
			}
			return func(req *Request, rep *Reply) error {
				s.metrics.RecordRequestStart()
				return nil
			}, nil
		},
	}
}

// MetricsEndHook records the completed request on the Prometheus
// collectors.
func MetricsEndHook() HookRegistration {
	return HookRegistration{
		Name:  "metrics_end",
		Phase: OnResponse,
		Builder: func(s *Server) (Hook, error) {
			if !s.Conf.MetricsEnabled {
				return nil, nil
			}
			return func(req *Request, rep *Reply) error {
				route := ""
				if r := req.Route(); r != nil {
					route = r.Pattern()
				}
				s.metrics.RecordRequestEnd(req.Method, route, rep.writtenStatus(), time.Since(req.ReceivedAt))
				return nil
			}, nil
		},
	}
}

// RegisterHook attaches the hook to the server root scope, building it
// first when the registration carries a builder.
func (s *Server) RegisterHook(reg HookRegistration) error {
	var hook Hook
	switch {
	case reg.Hook != nil:
		hook = reg.Hook
	case reg.Builder != nil:
		var err error
		hook, err = reg.Builder(s)
		if err != nil {
			return fmt.Errorf("building hook %q: %w", reg.Name, err)
		}
	default:
		return errors.New("hook registration requires Hook or Builder")
	}

	if hook == nil {
		return nil
	}

	return s.root.AddHook(reg.Phase, hook)
}
