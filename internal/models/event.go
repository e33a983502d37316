package models

import (
	"fmt"
	"time"
)

// Provider identifies a webhook source. The set is closed: validation code
// switches exhaustively over these values, so adding a provider is a
// compile-visible change rather than a new string branch.
type Provider string

const (
	ProviderStripe  Provider = "stripe"
	ProviderTwilio  Provider = "twilio"
	ProviderGeneric Provider = "generic"
)

// Known returns whether p is one of the supported providers.
func (p Provider) Known() bool {
	switch p {
	case ProviderStripe, ProviderTwilio, ProviderGeneric:
		return true
	}
	return false
}

// SignatureEnvelope is the parsed signature material for one delivery.
// It lives only for the duration of a request.
type SignatureEnvelope struct {
	Provider   Provider
	Timestamp  int64    // unix seconds from the header; 0 when the scheme has none
	Signatures []string // candidate signatures, in header order (key rotation)
	RawHeader  string   // original header value, kept for audit logging only
}

// WebhookEvent is a delivery that passed signature and freshness checks.
type WebhookEvent struct {
	Provider    Provider  `json:"provider" bson:"provider"`
	EventID     string    `json:"event_id" bson:"event_id"`
	EventType   string    `json:"event_type,omitempty" bson:"event_type,omitempty"`
	PayloadHash string    `json:"payload_hash" bson:"payload_hash"`
	PayloadSize int       `json:"payload_size" bson:"payload_size"`
	ReceivedAt  time.Time `json:"received_at" bson:"received_at"`
}

// IdempotencyKey builds the composite store key for an event.
func (e *WebhookEvent) IdempotencyKey() string {
	return IdempotencyKey(e.Provider, e.EventID)
}

// IdempotencyKey is the canonical key format shared by every store backend.
func IdempotencyKey(provider Provider, eventID string) string {
	return fmt.Sprintf("webhook_%s_%s", provider, eventID)
}

// OperationType labels idempotency records by the operation they guard.
func OperationType(provider Provider) string {
	return fmt.Sprintf("webhook_%s", provider)
}

// IdempotencyRecord is the persisted form of a first-seen delivery.
type IdempotencyRecord struct {
	Key           string            `json:"key" bson:"key"`
	OperationType string            `json:"operation_type" bson:"operation_type"`
	PayloadHash   string            `json:"payload_hash" bson:"payload_hash"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
	ExpiresAt     time.Time         `json:"expires_at" bson:"expires_at"`
	Metadata      map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Expired reports whether the record is logically absent at now.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// RejectReason enumerates why a delivery was refused.
type RejectReason string

const (
	ReasonMalformedSignature RejectReason = "malformed_signature"
	ReasonInvalidSignature   RejectReason = "invalid_signature"
	ReasonStaleTimestamp     RejectReason = "stale_timestamp"
	ReasonFutureTimestamp    RejectReason = "future_timestamp"
	ReasonMissingEventID     RejectReason = "missing_event_id"
	ReasonBodyMismatch       RejectReason = "body_mismatch_on_known_id"
	ReasonStoreUnavailable   RejectReason = "store_unavailable"
)

// ValidationResult is the single verdict produced for a delivery.
type ValidationResult struct {
	Accepted  bool
	Duplicate bool
	Reason    RejectReason // set only when !Accepted
	Event     *WebhookEvent
}

func Accepted(event *WebhookEvent, duplicate bool) ValidationResult {
	return ValidationResult{Accepted: true, Duplicate: duplicate, Event: event}
}

func Rejected(reason RejectReason) ValidationResult {
	return ValidationResult{Reason: reason}
}

// ValidatedEvent is what the gateway hands to the event dispatcher for a
// first-seen, fully validated delivery.
type ValidatedEvent struct {
	MessageID  string    `json:"message_id"`
	Provider   Provider  `json:"provider"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type,omitempty"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// DeliveryStatus tracks a dispatched event through the worker.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusProcessed DeliveryStatus = "processed"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusRetrying  DeliveryStatus = "retrying"
)

// DeliveryRecord is the worker-side persisted view of a validated event.
type DeliveryRecord struct {
	MessageID  string         `json:"message_id" bson:"message_id"`
	Provider   Provider       `json:"provider" bson:"provider"`
	EventID    string         `json:"event_id" bson:"event_id"`
	EventType  string         `json:"event_type,omitempty" bson:"event_type,omitempty"`
	ReceivedAt time.Time      `json:"received_at" bson:"received_at"`
	UpdatedAt  time.Time      `json:"-" bson:"updated_at"`
	RetryCount int            `json:"-" bson:"retry_count"`
	Status     DeliveryStatus `json:"-" bson:"status"`
}
