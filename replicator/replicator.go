package replicator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crosscloud/object-replicator/interfaces"
)

// chunkSize bounds how much data moves between the source and destination
// streams in one read. A tunable, not a correctness constraint.
const chunkSize = 64 * 1024

// Replicator orchestrates single-object transfers between a source and a
// destination storage adapter. It holds no mutable state across calls, so
// concurrent Replicate calls for different object pairs need no
// coordination. Concurrent calls targeting the same destination object are
// not coordinated here; callers needing that guarantee must serialize
// externally.
type Replicator struct {
	source      interfaces.StorageAdapter
	destination interfaces.StorageAdapter
	policy      interfaces.RetryPolicy
	log         *slog.Logger
}

// New creates a replicator moving objects from source to destination under
// the given retry policy.
func New(source, destination interfaces.StorageAdapter, policy interfaces.RetryPolicy, log *slog.Logger) (*Replicator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	return &Replicator{
		source:      source,
		destination: destination,
		policy:      policy,
		log: log.With(
			slog.String("source_adapter", source.Name()),
			slog.String("destination_adapter", destination.Name())),
	}, nil
}

// Replicate copies one object from the source to the destination adapter.
//
// The request is validated first; malformed references fail fast with
// ErrInvalidRequest and are never retried. Each attempt opens a fresh read
// stream, transfers it in bounded chunks to the destination, and closes both
// handles before any retry sleep or return. A missing source object fails
// fast with ErrObjectNotFound. Transient ErrAdapterIO failures are retried
// up to MaxRetries times with a fixed delay between attempts; an aborted
// attempt leaves no partially written destination object behind (adapter
// PutStream atomicity).
func (r *Replicator) Replicate(ctx context.Context, req interfaces.ReplicationRequest) interfaces.ReplicationResult {
	log := r.log.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("source", req.Source.String()),
		slog.String("destination", req.Destination.String()))

	if err := req.Validate(); err != nil {
		log.Warn("Rejecting malformed replication request", "err", err)
		return interfaces.ReplicationResult{Attempts: 1, Err: err}
	}

	start := time.Now()
	maxAttempts := r.policy.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		written, err := r.copyOnce(ctx, req)
		if err == nil {
			log.Info("Replication succeeded",
				slog.Int("attempts", attempt),
				slog.Int64("bytes", written),
				slog.Duration("duration", time.Since(start)))
			return interfaces.ReplicationResult{
				Success:          true,
				BytesTransferred: written,
				Attempts:         attempt,
			}
		}

		if errors.Is(err, interfaces.ErrObjectNotFound) || errors.Is(err, interfaces.ErrInvalidRequest) {
			log.Warn("Replication failed permanently",
				"err", err,
				slog.Int("attempts", attempt))
			return interfaces.ReplicationResult{Attempts: attempt, Err: err}
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		log.Warn("Transient replication failure, will retry",
			"err", err,
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", r.policy.Delay))

		if err := sleepCtx(ctx, r.policy.Delay); err != nil {
			log.Warn("Replication aborted while waiting to retry", "err", err)
			return interfaces.ReplicationResult{Attempts: attempt, Err: lastErr}
		}
	}

	log.Error("Replication failed after exhausting retries",
		"err", lastErr,
		slog.Int("attempts", maxAttempts),
		slog.Duration("duration", time.Since(start)))

	return interfaces.ReplicationResult{Attempts: maxAttempts, Err: lastErr}
}

// copyOnce performs one full attempt: open the source stream, write it to
// the destination, release both handles on every exit path. The byte count
// comes from the destination, which consumed the stream.
func (r *Replicator) copyOnce(ctx context.Context, req interfaces.ReplicationRequest) (int64, error) {
	src, err := r.source.GetStream(ctx, req.Source)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	return r.destination.PutStream(ctx, req.Destination, chunkedReader{src})
}

// chunkedReader caps each read at chunkSize so the transfer moves in bounded
// chunks regardless of how greedily the destination adapter reads.
type chunkedReader struct {
	r io.Reader
}

func (c chunkedReader) Read(p []byte) (int, error) {
	if len(p) > chunkSize {
		p = p[:chunkSize]
	}
	return c.r.Read(p)
}

// sleepCtx waits the fixed retry delay, aborting early if the request
// context is cancelled. The wait blocks only its own replicate call.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
