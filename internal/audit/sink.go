// Package audit records webhook verification decisions for the operator.
// Entries never contain the shared secret or, for financial providers, the
// raw payload; signatures are truncated before logging.
package audit

import (
	"context"

	"github.com/c50bossio/6fb-booking-sub035/internal/models"

	"go.uber.org/zap"
)

// Severity ranks audit entries. Elevated entries are the two signals most
// indicative of active attack: forged signatures and body mismatches on a
// known event ID.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityElevated Severity = "elevated"
)

// Entry is one verification decision.
type Entry struct {
	Provider        models.Provider
	Accepted        bool
	Duplicate       bool
	Reason          models.RejectReason
	EventID         string
	SignaturePrefix string
	TimestampSkew   int64
	ClientIP        string
	Severity        Severity
}

// Sink receives audit entries. Implementations must not block the request
// path for long; the zap sink writes synchronously to stdout which is fine.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

// TruncateSignature shortens a signature for logging. Eight characters is
// enough to correlate without handing an attacker a usable prefix oracle.
func TruncateSignature(sig string) string {
	if len(sig) > 8 {
		return sig[:8]
	}
	return sig
}

// ZapSink logs audit entries as structured JSON.
type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) Record(ctx context.Context, entry Entry) {
	fields := []zap.Field{
		zap.String("provider", string(entry.Provider)),
		zap.Bool("accepted", entry.Accepted),
		zap.Bool("duplicate", entry.Duplicate),
		zap.String("event_id", entry.EventID),
		zap.String("signature_prefix", entry.SignaturePrefix),
		zap.Int64("timestamp_skew", entry.TimestampSkew),
		zap.String("client_ip", entry.ClientIP),
	}

	if entry.Accepted {
		s.logger.Info("Webhook accepted", fields...)
		return
	}

	fields = append(fields, zap.String("reason", string(entry.Reason)))
	if entry.Severity == SeverityElevated {
		s.logger.Warn("Webhook rejected", fields...)
		return
	}
	s.logger.Info("Webhook rejected", fields...)
}

// MemorySink collects entries for assertions in tests.
type MemorySink struct {
	Entries []Entry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(ctx context.Context, entry Entry) {
	s.Entries = append(s.Entries, entry)
}
