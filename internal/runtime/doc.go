/*
Package runtime implements the request lifecycle engine behind serveflow.

# Architecture Overview

The runtime package drives each HTTP request through an explicit state
machine. Hooks attach to named phases, plugins fork encapsulated scopes,
and schema validation guards both the request and the response.

# Package Structure

## Core Server (server.go, dispatch.go)

The Server struct owns the route table, the root scope, the plugin
registry, the schema compiler, the body parser registry, and the event
publisher. dispatch.go contains the orchestrator that walks a request
through the phase sequence and the terminal error handling.

## Scopes and Hooks (scope.go, hooks.go)

Scope is the registration surface handed to plugins. Child scopes copy
the parent's hooks at creation time and delegate decorator lookups
upward, which is what makes plugin hook registration invisible to
siblings while decorations stay visible downward.

## Routes (routes.go, routes_json.go, validate.go)

Route declarations carry per-route hooks, timeouts, host constraints,
and a RouteSchema compiled at registration time. routes_json.go adds a
typed generic registration that decodes the raw body into a fresh
pointer instance per request.

## Request and Reply (request.go, reply.go)

Request is the framework view of an inbound request; Reply accumulates
status and headers until Send serializes and writes exactly once.

## Stats & Monitoring (stats.go, resources.go, metrics.go, introspect.go)

Per-route latency percentiles, throughput, status and error breakdowns,
process resource sampling, Prometheus metrics, and the debug HTTP API.

## Events (events.go)

RequestEvent publishing over Watermill after the response is written.

# Sub-packages

  - config/: server configuration with validation
  - errors/: sentinel errors
  - ids/: ULID generation for request IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: logger interface and adapters
  - routing/: the Router contract and the chi-backed matcher
  - schema/: JSON Schema compilation and violation collection
*/
package runtime
