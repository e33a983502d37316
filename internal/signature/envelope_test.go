package signature

import (
	"testing"

	"github.com/c50bossio/6fb-booking-sub035/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStripeHeader(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantTS   int64
		wantSigs []string
		wantErr  bool
	}{
		{
			name:     "single signature",
			header:   "t=1614556800,v1=abcdef",
			wantTS:   1614556800,
			wantSigs: []string{"abcdef"},
		},
		{
			name:     "multiple v1 signatures for rotation",
			header:   "t=1614556800,v1=old,v1=new",
			wantTS:   1614556800,
			wantSigs: []string{"old", "new"},
		},
		{
			name:     "unknown schemes ignored",
			header:   "t=1614556800,v0=legacy,v1=abcdef",
			wantTS:   1614556800,
			wantSigs: []string{"abcdef"},
		},
		{
			name:     "whitespace tolerated",
			header:   " t=1614556800 , v1=abcdef",
			wantTS:   1614556800,
			wantSigs: []string{"abcdef"},
		},
		{
			name:    "empty header",
			header:  "",
			wantErr: true,
		},
		{
			name:    "missing timestamp",
			header:  "v1=abcdef",
			wantErr: true,
		},
		{
			name:    "missing signature",
			header:  "t=1614556800",
			wantErr: true,
		},
		{
			name:    "non-numeric timestamp",
			header:  "t=notanumber,v1=abcdef",
			wantErr: true,
		},
		{
			name:    "only v0 signatures",
			header:  "t=1614556800,v0=legacy",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseStripeHeader(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedHeader)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.ProviderStripe, env.Provider)
			assert.Equal(t, tt.wantTS, env.Timestamp)
			assert.Equal(t, tt.wantSigs, env.Signatures)
			assert.Equal(t, tt.header, env.RawHeader)
		})
	}
}

func TestParseSingleSignature(t *testing.T) {
	env, err := ParseSingleSignature(models.ProviderTwilio, "c29tZXNpZw==")
	require.NoError(t, err)
	assert.Equal(t, models.ProviderTwilio, env.Provider)
	assert.Equal(t, []string{"c29tZXNpZw=="}, env.Signatures)
	assert.Zero(t, env.Timestamp)

	_, err = ParseSingleSignature(models.ProviderGeneric, "   ")
	assert.ErrorIs(t, err, ErrMalformedHeader)
}
