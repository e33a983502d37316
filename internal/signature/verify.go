// Package signature verifies inbound webhook payloads against
// provider-specific HMAC schemes. All functions here are pure: no I/O, no
// shared state, safe under arbitrary parallelism.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sort"
)

// VerifyStripe checks a Stripe-style signature: HMAC-SHA256 over
// "{timestamp}.{payload}", hex encoded. Every candidate is compared in
// constant time and any match is sufficient, so a secret rotation with
// overlapping v1 entries never drops deliveries.
func VerifyStripe(payload []byte, timestamp string, candidates []string, secret string) bool {
	if secret == "" || timestamp == "" || len(candidates) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	matched := false
	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			matched = true
		}
	}
	return matched
}

// VerifyTwilio checks a Twilio-style signature: HMAC-SHA1 over the webhook
// URL followed by every form field as key then value, keys sorted ascending,
// no separators, base64 encoded. An empty form signs the URL alone, which is
// how minimal status callbacks arrive.
//
// Values are concatenated exactly as decoded, without re-normalizing their
// encoding. That matches what providers actually sign and must not change.
func VerifyTwilio(formFields map[string]string, sig, webhookURL, authToken string) bool {
	if authToken == "" || sig == "" || webhookURL == "" {
		return false
	}

	keys := make([]string, 0, len(formFields))
	for k := range formFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(webhookURL))
	for _, k := range keys {
		mac.Write([]byte(k))
		mac.Write([]byte(formFields[k]))
	}
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}

// VerifyGeneric checks a plain HMAC-SHA256 signature over the raw body, hex
// encoded. Used by providers without a timestamped envelope.
func VerifyGeneric(payload []byte, sig, secret string) bool {
	if secret == "" || sig == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}
