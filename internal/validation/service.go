// Package validation orchestrates webhook admission: envelope parsing,
// signature verification, freshness, event identification and idempotent
// admission, yielding a single verdict per delivery.
package validation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/c50bossio/6fb-booking-sub035/internal/audit"
	"github.com/c50bossio/6fb-booking-sub035/internal/idempotency"
	"github.com/c50bossio/6fb-booking-sub035/internal/models"
	"github.com/c50bossio/6fb-booking-sub035/internal/replay"
	"github.com/c50bossio/6fb-booking-sub035/internal/signature"

	"go.uber.org/zap"
)

// ProviderConfig is the per-provider verification setup.
type ProviderConfig struct {
	// Secret is the shared HMAC secret (Stripe signing secret, Twilio auth
	// token, generic shared key).
	Secret string
	// WebhookURL is the exact URL registered with the provider. Twilio
	// signs it byte-for-byte, so scheme and host must match registration.
	WebhookURL string
	// FailOpen accepts a delivery when the idempotency store is down,
	// risking one duplicate. Payment providers must keep this false.
	FailOpen bool
}

// Request carries one delivery into the service. Body must be the raw
// request bytes; re-serialized JSON breaks HMAC verification.
type Request struct {
	Provider        models.Provider
	Body            []byte
	SignatureHeader string
	FormFields      map[string]string // Twilio deliveries only
	EventIDHeader   string            // generic HMAC deliveries only
	EventTypeHeader string            // generic HMAC deliveries only
	ClientIP        string
}

// Service runs the admission pipeline. It holds no mutable state of its
// own; the idempotency store is the only shared resource underneath.
type Service struct {
	providers map[models.Provider]ProviderConfig
	guard     *replay.Guard
	store     idempotency.Store
	sink      audit.Sink
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(providers map[models.Provider]ProviderConfig, guard *replay.Guard, store idempotency.Store, sink audit.Sink, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &Service{
		providers: providers,
		guard:     guard,
		store:     store,
		sink:      sink,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the service clock. Tests use it to pin freshness
// windows without sleeping.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Validate drives a delivery through signature, freshness and dedup checks.
// The caller dispatches business effects only for Accepted && !Duplicate and
// still answers the provider with success on duplicates so retries stop.
func (s *Service) Validate(ctx context.Context, req Request) models.ValidationResult {
	cfg, ok := s.providers[req.Provider]
	if !ok || !req.Provider.Known() {
		return s.reject(ctx, req, models.SignatureEnvelope{}, models.ReasonMalformedSignature, 0)
	}

	now := s.now().UTC()

	env, verified, reason := s.verifySignature(req, cfg)
	if reason != "" {
		return s.reject(ctx, req, env, reason, 0)
	}
	if !verified {
		return s.reject(ctx, req, env, models.ReasonInvalidSignature, 0)
	}

	var skew int64
	if env.Timestamp != 0 {
		skew = now.Unix() - env.Timestamp
		if err := s.guard.CheckFreshness(env.Timestamp, now.Unix()); err != nil {
			var rerr *replay.Error
			if errors.As(err, &rerr) && rerr.FromFuture {
				return s.reject(ctx, req, env, models.ReasonFutureTimestamp, skew)
			}
			return s.reject(ctx, req, env, models.ReasonStaleTimestamp, skew)
		}
	}

	eventID, eventType := extractEvent(req)
	if eventID == "" {
		return s.reject(ctx, req, env, models.ReasonMissingEventID, skew)
	}

	sum := sha256.Sum256(req.Body)
	event := &models.WebhookEvent{
		Provider:    req.Provider,
		EventID:     eventID,
		EventType:   eventType,
		PayloadHash: hex.EncodeToString(sum[:]),
		PayloadSize: len(req.Body),
		ReceivedAt:  now,
	}

	metadata := map[string]string{
		"provider":     string(req.Provider),
		"event_id":     eventID,
		"event_type":   eventType,
		"payload_size": strconv.Itoa(event.PayloadSize),
	}

	outcome, err := s.store.TryBegin(ctx, event.IdempotencyKey(), event.PayloadHash, s.ttl, metadata)
	if err != nil {
		if cfg.FailOpen {
			s.logger.Warn("Idempotency store unavailable, accepting fail-open",
				zap.String("provider", string(req.Provider)),
				zap.String("event_id", eventID),
				zap.Error(err))
			return s.accept(ctx, req, env, event, false, skew)
		}
		s.logger.Error("Idempotency store unavailable, rejecting fail-closed",
			zap.String("provider", string(req.Provider)),
			zap.String("event_id", eventID),
			zap.Error(err))
		return s.reject(ctx, req, env, models.ReasonStoreUnavailable, skew)
	}

	switch outcome {
	case idempotency.FirstSeen:
		return s.accept(ctx, req, env, event, false, skew)
	case idempotency.DuplicateSameBody:
		return s.accept(ctx, req, env, event, true, skew)
	case idempotency.DuplicateBodyMismatch:
		return s.reject(ctx, req, env, models.ReasonBodyMismatch, skew)
	}
	return s.reject(ctx, req, env, models.ReasonStoreUnavailable, skew)
}

func (s *Service) verifySignature(req Request, cfg ProviderConfig) (models.SignatureEnvelope, bool, models.RejectReason) {
	switch req.Provider {
	case models.ProviderStripe:
		env, err := signature.ParseStripeHeader(req.SignatureHeader)
		if err != nil {
			return env, false, models.ReasonMalformedSignature
		}
		ok := signature.VerifyStripe(req.Body, strconv.FormatInt(env.Timestamp, 10), env.Signatures, cfg.Secret)
		return env, ok, ""
	case models.ProviderTwilio:
		env, err := signature.ParseSingleSignature(models.ProviderTwilio, req.SignatureHeader)
		if err != nil {
			return env, false, models.ReasonMalformedSignature
		}
		ok := signature.VerifyTwilio(req.FormFields, env.Signatures[0], cfg.WebhookURL, cfg.Secret)
		return env, ok, ""
	case models.ProviderGeneric:
		env, err := signature.ParseSingleSignature(models.ProviderGeneric, req.SignatureHeader)
		if err != nil {
			return env, false, models.ReasonMalformedSignature
		}
		ok := signature.VerifyGeneric(req.Body, env.Signatures[0], cfg.Secret)
		return env, ok, ""
	}
	return models.SignatureEnvelope{}, false, models.ReasonMalformedSignature
}

// extractEvent pulls the provider-assigned event identity out of a verified
// delivery. Stripe carries it in the JSON body, Twilio in its form fields,
// generic HMAC providers in headers.
func extractEvent(req Request) (string, string) {
	switch req.Provider {
	case models.ProviderStripe:
		var body struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return "", ""
		}
		return body.ID, body.Type
	case models.ProviderTwilio:
		if sid := req.FormFields["MessageSid"]; sid != "" {
			return sid, req.FormFields["MessageStatus"]
		}
		if sid := req.FormFields["CallSid"]; sid != "" {
			return sid, req.FormFields["CallStatus"]
		}
		return "", ""
	case models.ProviderGeneric:
		return req.EventIDHeader, req.EventTypeHeader
	}
	return "", ""
}

func (s *Service) accept(ctx context.Context, req Request, env models.SignatureEnvelope, event *models.WebhookEvent, duplicate bool, skew int64) models.ValidationResult {
	s.sink.Record(ctx, audit.Entry{
		Provider:        req.Provider,
		Accepted:        true,
		Duplicate:       duplicate,
		EventID:         event.EventID,
		SignaturePrefix: audit.TruncateSignature(env.RawHeader),
		TimestampSkew:   skew,
		ClientIP:        req.ClientIP,
		Severity:        audit.SeverityInfo,
	})
	return models.Accepted(event, duplicate)
}

func (s *Service) reject(ctx context.Context, req Request, env models.SignatureEnvelope, reason models.RejectReason, skew int64) models.ValidationResult {
	severity := audit.SeverityInfo
	if reason == models.ReasonInvalidSignature || reason == models.ReasonBodyMismatch {
		severity = audit.SeverityElevated
	}

	eventID, _ := extractEvent(req)
	s.sink.Record(ctx, audit.Entry{
		Provider:        req.Provider,
		Reason:          reason,
		EventID:         eventID,
		SignaturePrefix: audit.TruncateSignature(env.RawHeader),
		TimestampSkew:   skew,
		ClientIP:        req.ClientIP,
		Severity:        severity,
	})
	return models.Rejected(reason)
}
