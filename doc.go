// Package serveflow is an embeddable HTTP server framework organised around
// an explicit request lifecycle. Every request walks a fixed sequence of
// phases (onRequest, preParsing, preValidation, preHandler, the handler,
// preSerialization, onSend, onResponse) and plugins attach hooks to those
// phases, decorate the server, request, or reply with named values, and
// register routes with JSON Schema validation for params, query, headers,
// body, and responses.
//
// Encapsulation is the central idea: a plugin registered without Shared gets
// a child scope whose hooks are invisible to siblings and to the parent,
// while decorators registered in the child remain visible downward through
// the scope chain. A reply can be sent from any hook or handler; once sent,
// every remaining phase except onResponse is skipped.
//
// # Lifecycle
//
// The orchestrator drives each request through these states in order:
//   - onRequest hooks (server scope only)
//   - route resolution (chi-based matcher, host constraints)
//   - preParsing hooks, then body parsing by content type
//   - preValidation hooks, then request schema validation
//   - preHandler hooks, then the route handler
//   - preSerialization hooks (payload transformation)
//   - response schema validation and serialization
//   - onSend hooks, then the write
//   - onResponse hooks, detached from the client connection
//
// Errors divert to onError hooks and a JSON error envelope; deadline
// expiry diverts to onTimeout hooks and a 408.
//
// # Events and observability
//
// Each completed request can be published as a RequestEvent on a Watermill
// event bus (in-memory channels, file-backed JSONL, or NATS), and the server
// ships Prometheus metrics, OpenTelemetry spans, and an introspection API
// for routes, plugins, hooks, config, and resource usage.
//
// A minimal setup fills Config, creates a Server, registers routes and
// plugins, and mounts the Server as an http.Handler; see the examples
// directory for runnable programs.
package serveflow
