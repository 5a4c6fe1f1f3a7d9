package engine

import (
	"time"

	"github.com/inboxtriage/engine/domain"
	"github.com/inboxtriage/engine/kvstore"
	"github.com/inboxtriage/engine/metricshttp"
)

// acquireLock attempts to take the single persisted lock for kind. It is
// idempotent only with respect to its own kind; a conflicting kind already
// holding the lock is refused, never hijacked, mirroring
// BoltDBClient.AcquireLock's refuse-on-foreign-owner behavior but without
// the lease-expiry escape hatch (liveness here is the timeout logic's job,
// checkAndHandleTimeout, not the lock's).
func acquireLock(kv kvstore.Store, kind domain.LockKind, now time.Time) error {
	existing, ok, err := readLock(kv)
	if err != nil {
		return err
	}
	if ok {
		metricshttp.Get().LockContentions.Add(1)
		return newError(ErrLockContention, "another "+string(existing.Kind)+" workflow is already running", nil)
	}
	metricshttp.Get().LockAcquisitions.Add(1)
	return writeLock(kv, domain.Lock{Kind: kind, AcquiredAt: now})
}

// releaseLock unconditionally clears the lock. Active terminal transitions
// release it once, through finishTerminal; PassivePass releases it right
// after passiveLocked returns, whatever the outcome.
func releaseLock(kv kvstore.Store) error {
	return clearLock(kv)
}
