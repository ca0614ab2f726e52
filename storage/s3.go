package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/crosscloud/object-replicator/interfaces"
)

// S3Adapter implements a storage adapter using Amazon S3 or compatible
// services. The adapter spans a whole account: the bucket comes from each
// ObjectRef rather than being fixed at construction.
type S3Adapter struct {
	client      *s3.S3
	uploader    *s3manager.Uploader
	region      string
	log         *slog.Logger
	locationURI string
}

// NewS3Adapter creates a new S3 storage adapter.
// If accessKey and secretKey are provided they are used as static
// credentials; otherwise the SDK's default credential chain applies.
func NewS3Adapter(region, endpoint, accessKey, secretKey string, forcePathStyle bool, log *slog.Logger) (*S3Adapter, error) {
	if region == "" {
		region = "us-east-1"
	}

	uri := fmt.Sprintf("s3://?region=%s", region)
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}

	cfg := aws.Config{
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(forcePathStyle),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	client := s3.New(sess)

	return &S3Adapter{
		client:      client,
		uploader:    s3manager.NewUploaderWithClient(client),
		region:      region,
		log:         log,
		locationURI: uri,
	}, nil
}

// GetStream retrieves an object from S3 as a streaming body.
// Returns ErrObjectNotFound if the object or its bucket doesn't exist.
func (a *S3Adapter) GetStream(ctx context.Context, ref interfaces.ObjectRef) (io.ReadCloser, error) {
	start := time.Now()

	result, err := a.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		mapped := mapS3Error(err)
		if errors.Is(mapped, interfaces.ErrObjectNotFound) {
			a.log.Debug("Object not found in S3",
				slog.String("bucket", ref.Bucket),
				slog.String("key", ref.Key),
				slog.Duration("duration", time.Since(start)))
		} else {
			a.log.Error("Failed to get object from S3",
				slog.String("bucket", ref.Bucket),
				slog.String("key", ref.Key),
				"err", err,
				slog.Duration("duration", time.Since(start)))
		}
		return nil, mapped
	}

	a.log.Debug("Opened object stream from S3",
		slog.String("bucket", ref.Bucket),
		slog.String("key", ref.Key),
		slog.Duration("duration", time.Since(start)))

	return result.Body, nil
}

// PutStream uploads the stream to S3 and returns the number of bytes
// consumed. The upload manager stages parts internally, so a failed upload
// leaves no complete object behind.
func (a *S3Adapter) PutStream(ctx context.Context, ref interfaces.ObjectRef, data io.Reader) (int64, error) {
	start := time.Now()
	counted := &countingReader{r: data}

	_, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
		Body:   counted,
	})
	if err != nil {
		a.log.Error("Failed to upload object to S3",
			slog.String("bucket", ref.Bucket),
			slog.String("key", ref.Key),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return 0, mapS3Error(err)
	}

	a.log.Debug("Stored object in S3",
		slog.String("bucket", ref.Bucket),
		slog.String("key", ref.Key),
		slog.Int64("size", counted.n),
		slog.Duration("duration", time.Since(start)))

	return counted.n, nil
}

// Exists reports whether the object is present. Missing objects and missing
// buckets are both (false, nil); only connectivity problems are errors.
func (a *S3Adapter) Exists(ctx context.Context, ref interfaces.ObjectRef) (bool, error) {
	_, err := a.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		if errors.Is(mapS3Error(err), interfaces.ErrObjectNotFound) {
			return false, nil
		}
		return false, mapS3Error(err)
	}
	return true, nil
}

// Delete removes the object if present. Returns true if an object was
// deleted, false if it was already absent.
func (a *S3Adapter) Delete(ctx context.Context, ref interfaces.ObjectRef) (bool, error) {
	exists, err := a.Exists(ctx, ref)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	_, err = a.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return false, mapS3Error(err)
	}

	a.log.Debug("Deleted object from S3",
		slog.String("bucket", ref.Bucket),
		slog.String("key", ref.Key))

	return true, nil
}

// List enumerates all objects in a bucket. An absent bucket yields an empty
// list.
func (a *S3Adapter) List(ctx context.Context, bucket string) ([]interfaces.ObjectInfo, error) {
	objects := []interfaces.ObjectInfo{}

	err := a.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			objects = append(objects, interfaces.ObjectInfo{
				Key:  aws.StringValue(obj.Key),
				Size: aws.Int64Value(obj.Size),
			})
		}
		return true
	})
	if err != nil {
		if errors.Is(mapS3Error(err), interfaces.ErrObjectNotFound) {
			return []interfaces.ObjectInfo{}, nil
		}
		return nil, mapS3Error(err)
	}

	return objects, nil
}

// Available checks if the S3 endpoint is reachable with the configured
// credentials.
func (a *S3Adapter) Available(ctx context.Context) bool {
	start := time.Now()

	_, err := a.client.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
	if err != nil {
		a.log.Warn("S3 adapter unavailable",
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return false
	}
	return true
}

// Name returns a unique identifier for this storage adapter.
func (a *S3Adapter) Name() string {
	return fmt.Sprintf("s3-%s", a.region)
}

// LocationURI returns the URI that identifies this storage adapter.
func (a *S3Adapter) LocationURI() string {
	return a.locationURI
}

// mapS3Error translates AWS SDK errors onto the shared taxonomy. Missing
// objects and buckets become ErrObjectNotFound; everything else (access
// denied, throttling, connectivity) is a transient ErrAdapterIO.
func mapS3Error(err error) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound", "404":
			return interfaces.ErrObjectNotFound
		}
	}
	return fmt.Errorf("%w: %v", interfaces.ErrAdapterIO, err)
}

// countingReader tracks how many bytes the upload manager consumed from the
// source stream.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
