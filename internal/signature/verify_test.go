package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stripeSig(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", timestamp, payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func twilioSig(authToken, canonical string) string {
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyStripe(t *testing.T) {
	secret := "whsec_test_secret"
	timestamp := "1614556800"
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	valid := stripeSig(secret, timestamp, payload)

	tests := []struct {
		name       string
		payload    []byte
		timestamp  string
		candidates []string
		secret     string
		want       bool
	}{
		{
			name:       "valid signature",
			payload:    payload,
			timestamp:  timestamp,
			candidates: []string{valid},
			secret:     secret,
			want:       true,
		},
		{
			name:       "rotation: wrong candidate before the right one",
			payload:    payload,
			timestamp:  timestamp,
			candidates: []string{"deadbeef", valid},
			secret:     secret,
			want:       true,
		},
		{
			name:       "rotation: right candidate before a wrong one",
			payload:    payload,
			timestamp:  timestamp,
			candidates: []string{valid, "deadbeef"},
			secret:     secret,
			want:       true,
		},
		{
			name:       "no candidate matches",
			payload:    payload,
			timestamp:  timestamp,
			candidates: []string{"deadbeef", "cafebabe"},
			secret:     secret,
			want:       false,
		},
		{
			name:       "tampered payload",
			payload:    []byte(`{"id":"evt_2","type":"payment_intent.succeeded"}`),
			timestamp:  timestamp,
			candidates: []string{valid},
			secret:     secret,
			want:       false,
		},
		{
			name:       "wrong secret",
			payload:    payload,
			timestamp:  timestamp,
			candidates: []string{valid},
			secret:     "whsec_other_secret",
			want:       false,
		},
		{
			name:       "signature valid for a different timestamp",
			payload:    payload,
			timestamp:  "1614556801",
			candidates: []string{valid},
			secret:     secret,
			want:       false,
		},
		{
			name:       "empty secret",
			payload:    payload,
			timestamp:  timestamp,
			candidates: []string{valid},
			secret:     "",
			want:       false,
		},
		{
			name:       "no candidates",
			payload:    payload,
			timestamp:  timestamp,
			candidates: nil,
			secret:     secret,
			want:       false,
		},
		{
			name:       "empty payload still verifiable",
			payload:    nil,
			timestamp:  timestamp,
			candidates: []string{stripeSig(secret, timestamp, nil)},
			secret:     secret,
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifyStripe(tt.payload, tt.timestamp, tt.candidates, tt.secret)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyStripeBitFlip(t *testing.T) {
	secret := "whsec_test_secret"
	timestamp := "1614556800"
	payload := []byte(`{"id":"evt_1"}`)
	valid := stripeSig(secret, timestamp, payload)

	// Flipping any single character of the hex signature must fail
	for i := 0; i < len(valid); i++ {
		flipped := []byte(valid)
		if flipped[i] == 'a' {
			flipped[i] = 'b'
		} else {
			flipped[i] = 'a'
		}
		assert.False(t, VerifyStripe(payload, timestamp, []string{string(flipped)}, secret),
			"flipped hex char at %d should not verify", i)
	}

	// Flipping a bit in the payload must fail
	for i := 0; i < len(payload); i++ {
		tampered := append([]byte(nil), payload...)
		tampered[i] ^= 0x01
		assert.False(t, VerifyStripe(tampered, timestamp, []string{valid}, secret),
			"flipped payload bit at %d should not verify", i)
	}
}

func TestVerifyTwilio(t *testing.T) {
	authToken := "twilio_auth_token"
	webhookURL := "https://api.example.com/hooks/sms"

	tests := []struct {
		name      string
		fields    map[string]string
		canonical string
		want      bool
	}{
		{
			name:      "sorted key canonicalization",
			fields:    map[string]string{"MessageSid": "SM1", "Body": "YES"},
			canonical: webhookURL + "BodyYES" + "MessageSidSM1",
			want:      true,
		},
		{
			name:      "unsorted canonical string does not match",
			fields:    map[string]string{"MessageSid": "SM1", "Body": "YES"},
			canonical: webhookURL + "MessageSidSM1" + "BodyYES",
			want:      false,
		},
		{
			name:      "empty form signs the URL alone",
			fields:    map[string]string{},
			canonical: webhookURL,
			want:      true,
		},
		{
			name: "values appended as decoded, not re-encoded",
			fields: map[string]string{
				"Body": "YES PLEASE",
			},
			canonical: webhookURL + "BodyYES PLEASE",
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := twilioSig(authToken, tt.canonical)
			got := VerifyTwilio(tt.fields, sig, webhookURL, authToken)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyTwilioRejections(t *testing.T) {
	authToken := "twilio_auth_token"
	webhookURL := "https://api.example.com/hooks/sms"
	fields := map[string]string{"MessageSid": "SM1", "Body": "YES"}
	valid := twilioSig(authToken, webhookURL+"BodyYES"+"MessageSidSM1")

	assert.True(t, VerifyTwilio(fields, valid, webhookURL, authToken))
	assert.False(t, VerifyTwilio(fields, valid, webhookURL, "other_token"), "wrong auth token")
	assert.False(t, VerifyTwilio(fields, valid, "https://api.example.com/hooks/voice", authToken), "different URL")
	assert.False(t, VerifyTwilio(fields, "", webhookURL, authToken), "empty signature")
	assert.False(t, VerifyTwilio(fields, valid, "", authToken), "empty URL")
	assert.False(t, VerifyTwilio(map[string]string{"MessageSid": "SM2", "Body": "YES"}, valid, webhookURL, authToken), "changed field value")
}

func TestVerifyGeneric(t *testing.T) {
	secret := "generic_secret"
	payload := []byte(`{"order":"o_1"}`)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifyGeneric(payload, valid, secret))
	assert.False(t, VerifyGeneric([]byte(`{"order":"o_2"}`), valid, secret))
	assert.False(t, VerifyGeneric(payload, valid, "other_secret"))
	assert.False(t, VerifyGeneric(payload, "", secret))
	assert.False(t, VerifyGeneric(payload, valid, ""))
}
