package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/crosscloud/object-replicator/interfaces"
)

// FileAdapter implements a storage adapter on a local filesystem tree that
// mimics a bucket/object namespace. Objects live at <root>/<bucket>/<key>,
// with the key sanitized so it cannot escape the bucket directory.
type FileAdapter struct {
	rootDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileAdapter creates a filesystem storage adapter rooted at the
// specified base directory, creating it if needed.
func NewFileAdapter(rootDir string, log *slog.Logger) (*FileAdapter, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("%w: empty root directory", interfaces.ErrInvalidLocation)
	}

	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return &FileAdapter{
		rootDir:     rootDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", rootDir),
	}, nil
}

// GetStream opens the object file for reading. The returned stream is the
// open file handle; the caller owns closing it.
// Returns ErrObjectNotFound if the file doesn't exist.
func (a *FileAdapter) GetStream(ctx context.Context, ref interfaces.ObjectRef) (io.ReadCloser, error) {
	filePath, err := a.objectPath(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, interfaces.ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", interfaces.ErrAdapterIO, filePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", interfaces.ErrAdapterIO, filePath, err)
	}
	if info.IsDir() {
		// A directory is namespace structure, not an object.
		f.Close()
		return nil, interfaces.ErrObjectNotFound
	}

	a.log.Debug("Opened object for reading",
		slog.String("path", filePath),
		slog.Int64("size", info.Size()))

	return f, nil
}

// PutStream writes the stream to a temporary file next to the final path and
// renames it into place only after the full copy succeeded. An aborted write
// never leaves a partially written object visible to Exists or GetStream.
func (a *FileAdapter) PutStream(ctx context.Context, ref interfaces.ObjectRef, data io.Reader) (int64, error) {
	filePath, err := a.objectPath(ref)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return 0, fmt.Errorf("%w: create directory for %s: %v", interfaces.ErrAdapterIO, filePath, err)
	}

	// Staged in the same directory so the final rename stays on one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".partial-*")
	if err != nil {
		return 0, fmt.Errorf("%w: create staging file for %s: %v", interfaces.ErrAdapterIO, filePath, err)
	}

	written, err := io.Copy(tmp, data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("%w: write %s: %v", interfaces.ErrAdapterIO, filePath, err)
	}

	// CreateTemp stages at 0600; published objects are world-readable.
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("%w: finalize %s: %v", interfaces.ErrAdapterIO, filePath, err)
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("%w: finalize %s: %v", interfaces.ErrAdapterIO, filePath, err)
	}

	a.log.Debug("Stored object",
		slog.String("path", filePath),
		slog.Int64("size", written))

	return written, nil
}

// Exists reports whether the object file is present.
func (a *FileAdapter) Exists(ctx context.Context, ref interfaces.ObjectRef) (bool, error) {
	filePath, err := a.objectPath(ref)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", interfaces.ErrAdapterIO, filePath, err)
	}
	return !info.IsDir(), nil
}

// Delete removes the object file if present. Returns true if a file was
// deleted, false if it was already absent.
func (a *FileAdapter) Delete(ctx context.Context, ref interfaces.ObjectRef) (bool, error) {
	filePath, err := a.objectPath(ref)
	if err != nil {
		return false, err
	}

	err = os.Remove(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: remove %s: %v", interfaces.ErrAdapterIO, filePath, err)
	}

	a.log.Debug("Deleted object", slog.String("path", filePath))
	return true, nil
}

// List enumerates all object files under a bucket directory.
// An absent bucket yields an empty list.
func (a *FileAdapter) List(ctx context.Context, bucket string) ([]interfaces.ObjectInfo, error) {
	if err := validBucket(bucket); err != nil {
		return nil, err
	}

	bucketDir := filepath.Join(a.rootDir, bucket)
	if _, err := os.Stat(bucketDir); errors.Is(err, fs.ErrNotExist) {
		return []interfaces.ObjectInfo{}, nil
	}

	objects := []interfaces.ObjectInfo{}
	err := filepath.WalkDir(bucketDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(bucketDir, p)
		if err != nil {
			return err
		}
		objects = append(objects, interfaces.ObjectInfo{
			Key:  filepath.ToSlash(rel),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", interfaces.ErrAdapterIO, bucketDir, err)
	}

	return objects, nil
}

// Available checks if the adapter is usable by verifying the root directory exists.
func (a *FileAdapter) Available(ctx context.Context) bool {
	_, err := os.Stat(a.rootDir)
	if err != nil {
		a.log.Debug("File adapter unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage adapter.
func (a *FileAdapter) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(a.rootDir))
}

// LocationURI returns the URI that identifies this storage adapter.
func (a *FileAdapter) LocationURI() string {
	return a.locationURI
}

// objectPath maps a bucket/key pair onto a path under the root directory.
// Keys are normalized as rooted slash paths so ".." segments cannot climb
// out of the bucket directory.
func (a *FileAdapter) objectPath(ref interfaces.ObjectRef) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}
	if err := validBucket(ref.Bucket); err != nil {
		return "", err
	}

	cleaned := path.Clean("/" + strings.ReplaceAll(ref.Key, `\`, "/"))
	if cleaned == "/" {
		return "", fmt.Errorf("%w: unsafe key %q", interfaces.ErrInvalidRequest, ref.Key)
	}

	return filepath.Join(a.rootDir, ref.Bucket, filepath.FromSlash(cleaned)), nil
}

func validBucket(bucket string) error {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return fmt.Errorf("%w: unsafe bucket %q", interfaces.ErrInvalidRequest, bucket)
	}
	return nil
}
