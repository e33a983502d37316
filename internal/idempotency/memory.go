package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/c50bossio/6fb-booking-sub035/internal/models"
)

// MemoryStore is a process-local Store. It backs development setups and
// tests; atomicity comes from its internal mutex, which plays the role a
// unique index plays in the persistent backends.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.IdempotencyRecord
	now     func() time.Time
}

// NewMemoryStore builds an empty store using the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.IdempotencyRecord),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock builds a store with an injected clock, for
// exercising TTL expiry without sleeping.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*models.IdempotencyRecord),
		now:     now,
	}
}

func (s *MemoryStore) TryBegin(ctx context.Context, key, payloadHash string, ttl time.Duration, metadata map[string]string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return FirstSeen, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	existing, ok := s.records[key]
	if ok && !existing.Expired(now) {
		if existing.PayloadHash == payloadHash {
			return DuplicateSameBody, nil
		}
		return DuplicateBodyMismatch, nil
	}

	s.records[key] = newRecord(key, payloadHash, ttl, metadata, now)
	return FirstSeen, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// Len reports the number of records held, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
