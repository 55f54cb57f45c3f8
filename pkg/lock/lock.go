// Package lock provides keyed mutual exclusion for check-then-act sequences
// that must not interleave, such as the overlap scan and write for one provider.
package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock: could not acquire lock before deadline")

// Release frees a held lock. It is safe to call more than once.
type Release func()

type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done.
	Acquire(ctx context.Context, key string) (Release, error)
}

// ProviderKey namespaces a lock on a provider's schedule.
func ProviderKey(providerID string) string {
	return "appointly:lock:provider:" + providerID
}
