// Package idempotency provides exactly-once admission for webhook events.
// The correctness anchor is the backing store's atomic insert-if-absent:
// under concurrent deliveries of the same event exactly one caller observes
// FirstSeen, and no application-level locking is involved.
package idempotency

import (
	"context"
	"time"

	"github.com/c50bossio/6fb-booking-sub035/internal/models"
)

// Outcome is the result of attempting to begin processing an event.
type Outcome int

const (
	// FirstSeen means the key was inserted: this caller owns the event.
	FirstSeen Outcome = iota
	// DuplicateSameBody means the key exists with the same payload hash: a
	// benign provider retry.
	DuplicateSameBody
	// DuplicateBodyMismatch means the key exists with a different payload
	// hash: an ID collision or a tampered replay. Treated as a security
	// signal, never as a soft duplicate.
	DuplicateBodyMismatch
)

func (o Outcome) String() string {
	switch o {
	case FirstSeen:
		return "first_seen"
	case DuplicateSameBody:
		return "duplicate_same_body"
	case DuplicateBodyMismatch:
		return "duplicate_body_mismatch"
	}
	return "unknown"
}

// DefaultTTL is the retention window for idempotency records. It exceeds
// every provider retry window we handle (Stripe retries for up to 3 days
// only in rare configurations; 48h covers the standard schedule), so an
// event ID cannot be replayed as new while the provider may still resend it.
const DefaultTTL = 48 * time.Hour

// Store is the shared admission gate. TryBegin must be a single atomic
// insert-if-absent-else-read against the backing store; a record whose
// expiry has passed is treated as absent. Errors indicate store
// unavailability, not a verdict — the caller's fail-open/fail-closed policy
// decides what happens next.
type Store interface {
	TryBegin(ctx context.Context, key, payloadHash string, ttl time.Duration, metadata map[string]string) (Outcome, error)
	Close(ctx context.Context) error
}

func newRecord(key, payloadHash string, ttl time.Duration, metadata map[string]string, now time.Time) *models.IdempotencyRecord {
	return &models.IdempotencyRecord{
		Key:           key,
		OperationType: models.OperationType(models.Provider(metadata["provider"])),
		PayloadHash:   payloadHash,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
		Metadata:      metadata,
	}
}
