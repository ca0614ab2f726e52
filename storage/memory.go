package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/crosscloud/object-replicator/interfaces"
)

// MemoryAdapter keeps objects in a process-local map. Dev mode uses it to
// stand in for a seeded source bucket; tests use it as a lightweight real
// adapter.
type MemoryAdapter struct {
	mu      sync.RWMutex
	objects map[interfaces.ObjectRef][]byte
	log     *slog.Logger
}

// NewMemoryAdapter creates an empty in-memory storage adapter.
func NewMemoryAdapter(log *slog.Logger) *MemoryAdapter {
	return &MemoryAdapter{
		objects: make(map[interfaces.ObjectRef][]byte),
		log:     log,
	}
}

// Seed stores an object directly, bypassing the stream contract. Used to
// preload dev-mode fixtures at startup.
func (a *MemoryAdapter) Seed(ref interfaces.ObjectRef, data []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[ref] = bytes.Clone(data)
}

// GetStream returns a reader over a copy of the stored bytes.
func (a *MemoryAdapter) GetStream(ctx context.Context, ref interfaces.ObjectRef) (io.ReadCloser, error) {
	a.mu.RLock()
	data, ok := a.objects[ref]
	a.mu.RUnlock()

	if !ok {
		return nil, interfaces.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

// PutStream consumes the stream fully before publishing the object, so a
// failed read leaves nothing behind.
func (a *MemoryAdapter) PutStream(ctx context.Context, ref interfaces.ObjectRef, data io.Reader) (int64, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return 0, fmt.Errorf("%w: read stream: %v", interfaces.ErrAdapterIO, err)
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", interfaces.ErrAdapterIO, err)
	}

	a.mu.Lock()
	a.objects[ref] = buf
	a.mu.Unlock()

	return int64(len(buf)), nil
}

// Exists reports whether the object is present.
func (a *MemoryAdapter) Exists(ctx context.Context, ref interfaces.ObjectRef) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.objects[ref]
	return ok, nil
}

// Delete removes the object if present.
func (a *MemoryAdapter) Delete(ctx context.Context, ref interfaces.ObjectRef) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.objects[ref]; !ok {
		return false, nil
	}
	delete(a.objects, ref)
	return true, nil
}

// List enumerates the objects in a bucket in key order.
func (a *MemoryAdapter) List(ctx context.Context, bucket string) ([]interfaces.ObjectInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	objects := []interfaces.ObjectInfo{}
	for ref, data := range a.objects {
		if ref.Bucket != bucket {
			continue
		}
		objects = append(objects, interfaces.ObjectInfo{
			Key:  ref.Key,
			Size: int64(len(data)),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	return objects, nil
}

// Available always reports true for the in-memory adapter.
func (a *MemoryAdapter) Available(ctx context.Context) bool {
	return true
}

// Name returns a unique identifier for this storage adapter.
func (a *MemoryAdapter) Name() string {
	return "memory"
}

// LocationURI returns the URI that identifies this storage adapter.
func (a *MemoryAdapter) LocationURI() string {
	return "mem://"
}
