package drive

import "fmt"

// quotaState tracks one owner's storage counters. used is maintained
// incrementally by the mutating operations and always equals the sum
// of the owner's live file sizes.
type quotaState struct {
	limit int64 // <0 means unlimited
	used  int64
}

func (s *Store) ownerQuota(ownerID string) *quotaState {
	q := s.quotas[ownerID]
	if q == nil {
		q = &quotaState{limit: s.defaultQuota}
		s.quotas[ownerID] = q
	}
	return q
}

// reserve admits delta bytes against the owner's limit. Called with
// the store lock held, in the same critical section as the mutation it
// guards. A negative delta (shrinking replace) always succeeds.
func (s *Store) reserve(ownerID string, delta int64) error {
	q := s.ownerQuota(ownerID)
	if delta > 0 && q.limit >= 0 && q.used+delta > q.limit {
		return fmt.Errorf("%d+%d exceeds limit %d: %w", q.used, delta, q.limit, ErrQuotaExceeded)
	}
	q.used += delta
	return nil
}

// release returns bytes to the owner's budget.
func (s *Store) release(ownerID string, bytes int64) {
	q := s.ownerQuota(ownerID)
	q.used -= bytes
	if q.used < 0 {
		q.used = 0
	}
}

// SetQuotaLimit sets an owner's storage limit in bytes. Negative means
// unlimited.
func (s *Store) SetQuotaLimit(ownerID string, limit int64) error {
	if err := s.mu.lock(); err != nil {
		return err
	}
	defer s.mu.unlock()
	s.ownerQuota(ownerID).limit = limit
	return nil
}

// QuotaUsage reports an owner's used bytes and limit.
func (s *Store) QuotaUsage(ownerID string) (used, limit int64, err error) {
	if err := s.mu.rlock(); err != nil {
		return 0, 0, err
	}
	defer s.mu.runlock()
	q := s.quotas[ownerID]
	if q == nil {
		return 0, s.defaultQuota, nil
	}
	return q.used, q.limit, nil
}
