package stripe

import (
	"sync"
)

// LockManager manages per-key locks to prevent concurrent webhook processing
// for the same checkout session or user while allowing parallel processing
// for unrelated ones. Keys are external provider ids (session id, user id).
type LockManager struct {
	locks sync.Map // map[string]*sync.Mutex
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{}
}

// Lock acquires the lock for the given key.
// Returns a function that must be called to release the lock.
func (lm *LockManager) Lock(key string) func() {
	lockInterface, _ := lm.locks.LoadOrStore(key, &sync.Mutex{})
	lock, ok := lockInterface.(*sync.Mutex)
	if !ok {
		// This should never happen if we only store *sync.Mutex values
		panic("unexpected type in lock manager")
	}

	lock.Lock()

	return func() {
		lock.Unlock()
	}
}

// CleanupLocks removes unused locks. This can be called periodically to
// prevent memory growth from sessions that will never be touched again.
func (lm *LockManager) CleanupLocks() {
	lm.locks.Range(func(key, value any) bool {
		lock, ok := value.(*sync.Mutex)
		if !ok {
			return true
		}
		// Try to acquire the lock without blocking
		if lock.TryLock() {
			// If we can acquire it, it's not in use, so we can remove it
			lock.Unlock()
			lm.locks.Delete(key)
		}
		return true
	})
}
