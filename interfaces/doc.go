// Package interfaces defines the shared types and contracts of the
// cross-cloud object replicator.
//
// The package contains the object addressing types (ObjectRef, ObjectInfo),
// the storage adapter capability interface implemented by every concrete
// backend, the replication request/result types exchanged between the HTTP
// layer and the replication engine, and the error taxonomy shared by all
// components:
//
//   - ErrInvalidRequest: malformed input, fails fast, never retried
//   - ErrObjectNotFound: missing object, fails fast, never retried
//   - ErrAdapterIO: transient infrastructure fault, retried up to the policy limit
//
// Adapters raise taxonomy kinds; the replicator is the sole place that
// decides retry-vs-fail-fast based on kind; the HTTP layer only translates
// final results into status codes.
//
// # Adapter locations
//
// Storage adapters are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/replica/
//   - s3://?region=us-west-2&endpoint=custom.s3.com
//   - minio://minio.example.com:9000/?ssl=true
//   - mem://
//
// Unlike bucket-scoped clients, an adapter spans a whole storage account:
// the bucket is part of each ObjectRef, not of the adapter location.
package interfaces
