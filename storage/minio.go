package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/crosscloud/object-replicator/interfaces"
)

// MinioAdapter implements a storage adapter using the MinIO client, which
// works against MinIO itself and any S3-compatible provider. It offers the
// same contract as S3Adapter through a different SDK, selected with the
// minio:// location scheme.
type MinioAdapter struct {
	client      *minio.Client
	endpoint    string
	log         *slog.Logger
	locationURI string
}

// NewMinioAdapter creates a MinIO-backed storage adapter for the given
// endpoint.
func NewMinioAdapter(endpoint, accessKey, secretKey string, useSSL bool, log *slog.Logger) (*MinioAdapter, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty minio endpoint", interfaces.ErrInvalidLocation)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioAdapter{
		client:      client,
		endpoint:    endpoint,
		log:         log,
		locationURI: fmt.Sprintf("minio://%s/?ssl=%t", endpoint, useSSL),
	}, nil
}

// GetStream retrieves an object as a streaming body. The object is stat-ed
// up front so a missing object surfaces as ErrObjectNotFound here rather
// than on the first read.
func (a *MinioAdapter) GetStream(ctx context.Context, ref interfaces.ObjectRef) (io.ReadCloser, error) {
	start := time.Now()

	obj, err := a.client.GetObject(ctx, ref.Bucket, ref.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioError(err)
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		mapped := mapMinioError(err)
		if !errors.Is(mapped, interfaces.ErrObjectNotFound) {
			a.log.Error("Failed to get object from MinIO",
				slog.String("bucket", ref.Bucket),
				slog.String("key", ref.Key),
				"err", err)
		}
		return nil, mapped
	}

	a.log.Debug("Opened object stream from MinIO",
		slog.String("bucket", ref.Bucket),
		slog.String("key", ref.Key),
		slog.Int64("size", info.Size),
		slog.Duration("duration", time.Since(start)))

	return obj, nil
}

// PutStream uploads the stream and returns the byte count reported by the
// server. MinIO uploads to a staging multipart target, so a failed upload
// leaves no complete object behind.
func (a *MinioAdapter) PutStream(ctx context.Context, ref interfaces.ObjectRef, data io.Reader) (int64, error) {
	start := time.Now()

	info, err := a.client.PutObject(ctx, ref.Bucket, ref.Key, data, -1, minio.PutObjectOptions{})
	if err != nil {
		a.log.Error("Failed to upload object to MinIO",
			slog.String("bucket", ref.Bucket),
			slog.String("key", ref.Key),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return 0, mapMinioError(err)
	}

	a.log.Debug("Stored object in MinIO",
		slog.String("bucket", ref.Bucket),
		slog.String("key", ref.Key),
		slog.Int64("size", info.Size),
		slog.Duration("duration", time.Since(start)))

	return info.Size, nil
}

// Exists reports whether the object is present.
func (a *MinioAdapter) Exists(ctx context.Context, ref interfaces.ObjectRef) (bool, error) {
	_, err := a.client.StatObject(ctx, ref.Bucket, ref.Key, minio.StatObjectOptions{})
	if err != nil {
		if errors.Is(mapMinioError(err), interfaces.ErrObjectNotFound) {
			return false, nil
		}
		return false, mapMinioError(err)
	}
	return true, nil
}

// Delete removes the object if present. MinIO's RemoveObject succeeds for
// absent objects, so presence is checked first to report whether anything
// was actually deleted.
func (a *MinioAdapter) Delete(ctx context.Context, ref interfaces.ObjectRef) (bool, error) {
	exists, err := a.Exists(ctx, ref)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	if err := a.client.RemoveObject(ctx, ref.Bucket, ref.Key, minio.RemoveObjectOptions{}); err != nil {
		return false, mapMinioError(err)
	}

	a.log.Debug("Deleted object from MinIO",
		slog.String("bucket", ref.Bucket),
		slog.String("key", ref.Key))

	return true, nil
}

// List enumerates all objects in a bucket. An absent bucket yields an empty
// list.
func (a *MinioAdapter) List(ctx context.Context, bucket string) ([]interfaces.ObjectInfo, error) {
	objects := []interfaces.ObjectInfo{}

	for obj := range a.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			if errors.Is(mapMinioError(obj.Err), interfaces.ErrObjectNotFound) {
				return []interfaces.ObjectInfo{}, nil
			}
			return nil, mapMinioError(obj.Err)
		}
		objects = append(objects, interfaces.ObjectInfo{
			Key:  obj.Key,
			Size: obj.Size,
		})
	}

	return objects, nil
}

// Available checks if the MinIO endpoint is reachable with the configured
// credentials.
func (a *MinioAdapter) Available(ctx context.Context) bool {
	_, err := a.client.ListBuckets(ctx)
	if err != nil {
		a.log.Warn("MinIO adapter unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage adapter.
func (a *MinioAdapter) Name() string {
	return fmt.Sprintf("minio-%s", a.endpoint)
}

// LocationURI returns the URI that identifies this storage adapter.
func (a *MinioAdapter) LocationURI() string {
	return a.locationURI
}

// mapMinioError translates MinIO client errors onto the shared taxonomy.
func mapMinioError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return interfaces.ErrObjectNotFound
	}
	if resp.StatusCode == http.StatusNotFound {
		return interfaces.ErrObjectNotFound
	}
	return fmt.Errorf("%w: %v", interfaces.ErrAdapterIO, err)
}
