// Package replay rejects signed deliveries whose embedded timestamp is
// implausible relative to the gateway clock.
package replay

import "fmt"

// Defaults for the freshness window. Both are configuration, not policy
// baked into callers.
const (
	DefaultMaxAgeSeconds        = 300
	DefaultMaxFutureSkewSeconds = 60
)

// Error is a freshness violation. Age is signed: negative means the
// timestamp is ahead of the gateway clock.
type Error struct {
	Age        int64
	FromFuture bool
}

func (e *Error) Error() string {
	if e.FromFuture {
		return fmt.Sprintf("replay: timestamp %ds in the future", -e.Age)
	}
	return fmt.Sprintf("replay: timestamp %ds old", e.Age)
}

// Guard holds the configured freshness window.
type Guard struct {
	maxAgeSeconds        int64
	maxFutureSkewSeconds int64
}

// NewGuard builds a guard. Non-positive limits fall back to the defaults.
func NewGuard(maxAgeSeconds, maxFutureSkewSeconds int64) *Guard {
	if maxAgeSeconds <= 0 {
		maxAgeSeconds = DefaultMaxAgeSeconds
	}
	if maxFutureSkewSeconds <= 0 {
		maxFutureSkewSeconds = DefaultMaxFutureSkewSeconds
	}
	return &Guard{
		maxAgeSeconds:        maxAgeSeconds,
		maxFutureSkewSeconds: maxFutureSkewSeconds,
	}
}

// CheckFreshness validates a signed timestamp against now. The bound is
// two-sided: a very old but legitimately signed payload is a replay, and a
// far-future timestamp is either severe clock skew or a forgery. Boundary
// values (exactly maxAge old, exactly maxFutureSkew ahead) pass.
func (g *Guard) CheckFreshness(signedTimestamp, now int64) error {
	age := now - signedTimestamp
	if age > g.maxAgeSeconds {
		return &Error{Age: age}
	}
	if age < -g.maxFutureSkewSeconds {
		return &Error{Age: age, FromFuture: true}
	}
	return nil
}
