// Package storage provides the concrete storage adapters behind the
// replicator's adapter interface.
//
// Four adapter variants implement interfaces.StorageAdapter:
//
//   - S3Adapter: Amazon S3 or compatible services via the AWS SDK
//   - MinioAdapter: S3-compatible services via the MinIO client
//   - FileAdapter: a local filesystem tree mimicking a bucket/object namespace
//   - MemoryAdapter: process-local map for dev mode and tests
//
// # Adapter URI Format
//
// Adapters are specified using URI format and constructed through
// AdapterFactory:
//
//	file:///var/lib/replica/
//	s3://?region=us-west-2&endpoint=minio.internal:9000&pathstyle=true
//	minio://minio.internal:9000/?ssl=false
//	mem://
//
// # Error Mapping
//
// Each variant maps its provider-specific failures onto the shared taxonomy
// at this boundary. Missing objects and buckets become
// interfaces.ErrObjectNotFound; access-denied, throttling, connectivity and
// disk failures become interfaces.ErrAdapterIO. Nothing above this package
// inspects SDK error shapes.
//
// # Write Atomicity
//
// PutStream implementations guarantee that an aborted write leaves no
// partially written object visible to Exists or GetStream. The file adapter
// stages into a temporary file and renames it into place only after the full
// copy succeeded; the object-store variants rely on the staged multipart
// semantics of their protocols.
package storage
