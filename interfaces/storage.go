package interfaces

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

var (
	// ErrInvalidRequest is returned when a replication request or object
	// reference is malformed. Never retried, always a caller error.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrObjectNotFound is returned when the referenced object does not exist
	// in the storage backend. Not retried - a missing object will not appear
	// by trying again.
	ErrObjectNotFound = errors.New("object not found")

	// ErrAdapterIO is returned for transient infrastructure faults (network
	// errors, throttling, disk failures). Operations failing with this kind
	// may succeed on retry.
	ErrAdapterIO = errors.New("storage adapter I/O failure")

	// ErrInvalidLocation is returned when an adapter location URI is malformed
	// or uses an unsupported scheme.
	ErrInvalidLocation = errors.New("invalid adapter location URI")
)

// ObjectRef identifies a unique object within a storage namespace.
// It is immutable once constructed. The key is treated as opaque and may
// contain path separators.
type ObjectRef struct {
	Bucket string
	Key    string
}

// Validate checks that both bucket and key are non-empty.
func (r ObjectRef) Validate() error {
	if r.Bucket == "" {
		return fmt.Errorf("%w: empty bucket", ErrInvalidRequest)
	}
	if r.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidRequest)
	}
	return nil
}

// String returns the bucket/key form used in logs.
func (r ObjectRef) String() string {
	return r.Bucket + "/" + r.Key
}

// ObjectInfo describes a stored object when listing a bucket.
type ObjectInfo struct {
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// StorageAdapter provides access to one concrete storage backend.
// Implementations own their connection or handle state (an SDK client, a root
// directory) and are otherwise stateless between calls.
//
// All methods map provider-specific failures onto the shared error taxonomy:
// ErrObjectNotFound for missing objects, ErrAdapterIO for transient
// infrastructure faults. No caller above the adapter layer inspects
// provider-specific error shapes.
type StorageAdapter interface {
	// GetStream returns a lazy, forward-only byte stream for the object.
	// The caller must close the returned stream on every exit path.
	// Returns ErrObjectNotFound if the object does not exist.
	GetStream(ctx context.Context, ref ObjectRef) (io.ReadCloser, error)

	// PutStream consumes data fully, writing it to the destination object,
	// creating any needed namespace structure implicitly. It returns the
	// total number of bytes written. On failure no partially written object
	// may remain visible to Exists or GetStream (atomic-replace semantics).
	PutStream(ctx context.Context, ref ObjectRef, data io.Reader) (int64, error)

	// Exists reports whether the object is present. A missing object is
	// (false, nil), never an error; ErrAdapterIO is reserved for
	// connectivity problems.
	Exists(ctx context.Context, ref ObjectRef) (bool, error)

	// Delete removes the object if present. Returns true if something was
	// deleted, false if it was already absent.
	Delete(ctx context.Context, ref ObjectRef) (bool, error)

	// List enumerates the objects in a bucket. An absent bucket yields an
	// empty list, not an error.
	List(ctx context.Context, bucket string) ([]ObjectInfo, error)

	// Available checks if the backend is accessible.
	Available(ctx context.Context) bool

	// Name returns an identifier for logging.
	Name() string

	// LocationURI returns the URI identifying this backend.
	LocationURI() string
}

// AdapterLocation represents a parsed storage adapter URI.
type AdapterLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	User   *url.Userinfo
}

// NewAdapterLocation parses and validates an adapter URI.
// Supported schemes: file, s3, minio, mem.
func NewAdapterLocation(uri string) (AdapterLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return AdapterLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "file", "s3", "minio", "mem":
		// Valid scheme
	default:
		return AdapterLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocation, parsed.Scheme)
	}

	return AdapterLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		User:   parsed.User,
	}, nil
}

// String returns the original URI string.
func (loc AdapterLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc AdapterLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc AdapterLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// AdapterFactory creates storage adapters from location URIs.
type AdapterFactory interface {
	// AdapterFor creates an adapter from a parsed location.
	// Supports file://, s3://, minio://, mem://
	AdapterFor(location AdapterLocation) (StorageAdapter, error)
}
