package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFreshness(t *testing.T) {
	const now int64 = 1614556800
	guard := NewGuard(300, 60)

	tests := []struct {
		name       string
		signed     int64
		wantErr    bool
		fromFuture bool
	}{
		{name: "exactly now", signed: now},
		{name: "within the window", signed: now - 120},
		{name: "boundary: exactly max age old", signed: now - 300},
		{name: "one past max age", signed: now - 301, wantErr: true},
		{name: "far in the past", signed: now - 600, wantErr: true},
		{name: "boundary: exactly max future skew ahead", signed: now + 60},
		{name: "one past future skew", signed: now + 61, wantErr: true, fromFuture: true},
		{name: "far in the future", signed: now + 3600, wantErr: true, fromFuture: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.CheckFreshness(tt.signed, now)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var rerr *Error
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, tt.fromFuture, rerr.FromFuture)
			assert.Equal(t, now-tt.signed, rerr.Age)
		})
	}
}

func TestNewGuardDefaults(t *testing.T) {
	guard := NewGuard(0, -5)

	const now int64 = 1614556800
	assert.NoError(t, guard.CheckFreshness(now-DefaultMaxAgeSeconds, now))
	assert.Error(t, guard.CheckFreshness(now-DefaultMaxAgeSeconds-1, now))
	assert.NoError(t, guard.CheckFreshness(now+DefaultMaxFutureSkewSeconds, now))
	assert.Error(t, guard.CheckFreshness(now+DefaultMaxFutureSkewSeconds+1, now))
}
