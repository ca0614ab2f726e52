// Package replicator implements the streaming-copy-with-retry engine at the
// core of the service.
//
// A Replicator is constructed with two storage adapters (source and
// destination) and a RetryPolicy, all injected at startup. One Replicate
// call runs a bounded attempt loop:
//
//	Validating -> Attempting -> {Succeeded, FailedPermanent, FailedExhausted}
//
// Attempting self-loops on transient ErrAdapterIO failures, sleeping the
// policy's fixed delay between attempts, until it either succeeds or the
// retry budget (MaxRetries+1 total attempts) is spent. Permanent failures -
// a malformed request or a missing source object - terminate the loop
// immediately without retrying.
//
// Each attempt is sequential and fully scoped: the source read stream and
// the destination write are opened, transferred chunk-by-chunk, and released
// before any retry sleep or return. Partial destination writes are never
// visible afterwards because adapters publish objects atomically.
package replicator
