package drive

import (
	"sync"
	"time"
)

// timedMutex wraps sync.RWMutex with bounded acquisition. Waiting past
// the deadline surfaces as ErrBusy instead of blocking a caller
// indefinitely; ErrBusy is the one retryable failure in this package.
type timedMutex struct {
	mu      sync.RWMutex
	timeout time.Duration
}

func (m *timedMutex) lock() error {
	if m.mu.TryLock() {
		return nil
	}
	deadline := time.Now().Add(m.timeout)
	for {
		time.Sleep(lockRetryInterval)
		if m.mu.TryLock() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBusy
		}
	}
}

func (m *timedMutex) unlock() { m.mu.Unlock() }

func (m *timedMutex) rlock() error {
	if m.mu.TryRLock() {
		return nil
	}
	deadline := time.Now().Add(m.timeout)
	for {
		time.Sleep(lockRetryInterval)
		if m.mu.TryRLock() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBusy
		}
	}
}

func (m *timedMutex) runlock() { m.mu.RUnlock() }
