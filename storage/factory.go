package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/crosscloud/object-replicator/interfaces"
)

// AdapterFactory creates storage adapters from location URIs.
type AdapterFactory struct {
	log *slog.Logger
}

// NewAdapterFactory creates a new factory instance that can create storage
// adapters.
func NewAdapterFactory(logger *slog.Logger) *AdapterFactory {
	return &AdapterFactory{log: logger}
}

// AdapterFor creates a storage adapter from a parsed location.
//
// Supported schemes:
//   - file:// - Local filesystem tree mimicking a bucket/object namespace
//   - s3:// - Amazon S3 or compatible object storage (AWS SDK)
//   - minio:// - S3-compatible object storage via the MinIO client
//   - mem:// - In-memory storage for dev mode and tests
//
// Returns ErrInvalidLocation if the scheme is unsupported.
func (f *AdapterFactory) AdapterFor(location interfaces.AdapterLocation) (interfaces.StorageAdapter, error) {
	switch location.Scheme {
	case "file":
		return f.createFileAdapter(location)
	case "s3":
		return f.createS3Adapter(location)
	case "minio":
		return f.createMinioAdapter(location)
	case "mem":
		return NewMemoryAdapter(f.log), nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocation, location.Scheme)
	}
}

// createFileAdapter creates a filesystem storage adapter.
// URI format: file:///absolute/path/ or file://./relative/path/
func (f *AdapterFactory) createFileAdapter(location interfaces.AdapterLocation) (interfaces.StorageAdapter, error) {
	f.log.Debug("Creating file adapter", slog.String("uri", location.String()))

	path := location.Path
	if location.Host != "" {
		path = location.Host + "/" + strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty path in file URI %q", interfaces.ErrInvalidLocation, location.String())
	}

	return NewFileAdapter(path, f.log)
}

// createS3Adapter creates an S3 or S3-compatible storage adapter.
// URI format: s3://[ACCESS_KEY:SECRET_KEY@]?region=us-west-2&endpoint=custom.s3.com&pathstyle=true
// Without embedded credentials the SDK's default chain (environment,
// profile, instance role) applies.
func (f *AdapterFactory) createS3Adapter(location interfaces.AdapterLocation) (interfaces.StorageAdapter, error) {
	f.log.Debug("Creating S3 adapter", slog.String("uri", location.String()))

	region := location.GetParam("region")
	endpoint := location.GetParam("endpoint")
	forcePathStyle := location.GetParamBool("pathstyle")

	var accessKey, secretKey string
	if location.User != nil {
		accessKey = location.User.Username()
		secretKey, _ = location.User.Password()
		f.log.Debug("Using embedded S3 credentials")
	} else {
		f.log.Debug("No embedded credentials, using the SDK default chain")
	}

	return NewS3Adapter(region, endpoint, accessKey, secretKey, forcePathStyle, f.log)
}

// createMinioAdapter creates a MinIO-backed storage adapter.
// URI format: minio://[ACCESS_KEY:SECRET_KEY@]host:port/?ssl=true
func (f *AdapterFactory) createMinioAdapter(location interfaces.AdapterLocation) (interfaces.StorageAdapter, error) {
	f.log.Debug("Creating MinIO adapter", slog.String("uri", location.String()))

	var accessKey, secretKey string
	if location.User != nil {
		accessKey = location.User.Username()
		secretKey, _ = location.User.Password()
	}

	return NewMinioAdapter(location.Host, accessKey, secretKey, location.GetParamBool("ssl"), f.log)
}
