// Package httpserver implements the HTTP surface of the replication
// service.
//
// The server exposes the replication API:
//
//	POST   /v1/replicate              - replicate one object source->destination
//	GET    /v1/object/{bucket}/{key}  - existence check against the destination
//	DELETE /v1/object/{bucket}/{key}  - delete from the destination
//	GET    /v1/objects/{bucket}       - list a destination bucket
//
// plus the operational endpoints: / and /health (info/liveness as served by
// the original API), /livez, /readyz (readiness flag and destination adapter
// availability), /drain and /undrain for load-balancer rotation, and an
// optional pprof mount at /debug.
//
// The handler performs no retry logic of its own. It parses requests into
// replicator and adapter calls, maps the error taxonomy onto status codes
// (400 invalid request, 404 not found, 502 exhausted/adapter failure), and
// always responds with a structured JSON body.
//
// Requests are logged through the structured slog middleware, responses pass
// through permissive CORS, and panics are converted to 500s by the chi
// recoverer. Graceful shutdown drains in-flight requests for a configurable
// duration; the optional Prometheus metrics server shares the server's
// lifecycle on its own listen address.
package httpserver
