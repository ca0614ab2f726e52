package interfaces

import (
	"errors"
	"fmt"
	"time"
)

// ReplicationRequest describes a single-object transfer between two storage
// namespaces. Constructed per API call, never persisted.
type ReplicationRequest struct {
	Source      ObjectRef
	Destination ObjectRef
}

// Validate checks that both object references are well-formed.
func (r ReplicationRequest) Validate() error {
	if err := r.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := r.Destination.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	return nil
}

// ReplicationResult reports the outcome of one replicate call.
// Attempts is always in [1, MaxRetries+1]. BytesTransferred is only
// meaningful when Success is true, in which case it equals the exact byte
// count read from the source and written to the destination.
type ReplicationResult struct {
	Success          bool
	BytesTransferred int64
	Attempts         int
	Err              error
}

// ErrorKind returns the taxonomy name of the result error for diagnostics,
// or an empty string on success.
func (r ReplicationResult) ErrorKind() string {
	switch {
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(r.Err, ErrObjectNotFound):
		return "not_found"
	case errors.Is(r.Err, ErrAdapterIO):
		return "adapter_io"
	default:
		return "internal"
	}
}

// RetryPolicy bounds the attempt loop of the replicator. Read once at
// startup and constant for the process lifetime.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt, so a
	// replicate call makes at most MaxRetries+1 attempts.
	MaxRetries int

	// Delay is the fixed wait between attempts. No exponential backoff or
	// jitter in this version.
	Delay time.Duration
}

// Validate rejects negative retry counts and delays.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: negative max retries", ErrInvalidRequest)
	}
	if p.Delay < 0 {
		return fmt.Errorf("%w: negative retry delay", ErrInvalidRequest)
	}
	return nil
}
