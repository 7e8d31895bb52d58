// Package lock defines the lease-based mutual exclusion contract the
// pipeline relies on. Leases carry a TTL and expire on their own if the
// holder crashes, so a dead worker never wedges a queue entry or a product.
package lock

import (
	"context"
	"time"
)

// Lease is a time-bounded exclusive claim on a named resource.
type Lease interface {
	// TryAcquire polls for the lease until it is won or the timeout
	// elapses. Returns false on timeout; an error only on transport
	// failure.
	TryAcquire(ctx context.Context, timeout time.Duration) (bool, error)

	// Release gives the lease up early. Releasing a lease that expired or
	// is held by someone else is a no-op.
	Release(ctx context.Context) error
}

// Manager hands out leases by key.
type Manager interface {
	Obtain(key string) Lease
}
