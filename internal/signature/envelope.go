package signature

import (
	"errors"
	"strconv"
	"strings"

	"github.com/c50bossio/6fb-booking-sub035/internal/models"
)

var (
	// ErrMalformedHeader is returned when a signature header cannot be parsed.
	ErrMalformedHeader = errors.New("signature: malformed signature header")
)

const stripeSigningVersion = "v1"

// ParseStripeHeader parses a Stripe-Signature header of the form
// "t=1614556800,v1=abc...,v1=def...,v0=...". Multiple v1 entries are kept in
// order so secret rotation works; other schemes are ignored.
func ParseStripeHeader(header string) (models.SignatureEnvelope, error) {
	env := models.SignatureEnvelope{
		Provider:  models.ProviderStripe,
		RawHeader: header,
	}

	if strings.TrimSpace(header) == "" {
		return env, ErrMalformedHeader
	}

	sawTimestamp := false
	for _, pair := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return env, ErrMalformedHeader
			}
			env.Timestamp = ts
			sawTimestamp = true
		case stripeSigningVersion:
			env.Signatures = append(env.Signatures, kv[1])
		}
	}

	if !sawTimestamp || len(env.Signatures) == 0 {
		return env, ErrMalformedHeader
	}
	return env, nil
}

// ParseSingleSignature wraps a bare signature header (Twilio, generic HMAC)
// in an envelope. The header must be non-empty.
func ParseSingleSignature(provider models.Provider, header string) (models.SignatureEnvelope, error) {
	env := models.SignatureEnvelope{
		Provider:  provider,
		RawHeader: header,
	}
	sig := strings.TrimSpace(header)
	if sig == "" {
		return env, ErrMalformedHeader
	}
	env.Signatures = []string{sig}
	return env, nil
}
