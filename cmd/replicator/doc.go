// Package main (cmd/replicator) implements the cross-cloud object
// replication server.
//
// The server copies single objects from a source object store (S3 or any
// S3-compatible service) into a destination store (a local filesystem tree
// standing in for a second provider in this version), with a bounded
// fixed-delay retry loop around each transfer. It exposes the replication
// API together with existence, deletion and listing endpoints for the
// destination store.
//
// Configuration is handled through command-line flags; every operational
// flag also binds an environment variable, and a .env file in the working
// directory is loaded first when present. Storage backends are selected
// with adapter location URIs:
//
//	replicator --source-location 's3://?region=eu-west-1' \
//	           --dest-location 'file:///var/lib/replica' \
//	           --max-retries 3 --retry-delay 100ms
//
// With --dev the source is replaced by an in-memory bucket pre-seeded with
// source-bucket/hello.txt, so the whole API can be exercised without cloud
// credentials.
//
// The server implements graceful shutdown on SIGINT/SIGTERM and supports
// liveness/readiness checks, drain/undrain for load-balancer rotation,
// Prometheus metrics on a separate listen address, and an optional pprof
// endpoint.
package main
