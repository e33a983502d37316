// Package dispatch hands validated, first-seen events to the business
// layer. The gateway never dispatches duplicates; that is enforced by the
// caller checking the validation verdict, not here.
package dispatch

import (
	"context"

	"github.com/c50bossio/6fb-booking-sub035/internal/models"
)

// Dispatcher receives exactly the events that passed signature, freshness
// and dedup checks. Implementations own their delivery guarantees.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.ValidatedEvent) error
	Close() error
}
