// Package ticket checks a resolved passenger's season ticket against its
// validity window and route eligibility. The outcome is advisory metadata on
// the boarding record unless the route requires a ticket, in which case the
// lifecycle manager uses it as a boarding gate.
package ticket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sanjeevantech/bustrack/internal/passenger/models"
	"github.com/sanjeevantech/bustrack/internal/passenger/store"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// Status classifies the ticket check outcome.
type Status string

const (
	StatusValid       Status = "valid"
	StatusExpired     Status = "expired"
	StatusNotEligible Status = "not_eligible_for_route"
	StatusNoTicket    Status = "no_ticket"
)

// BlocksBoarding reports whether this status excludes the passenger on a
// ticket-required route. NoTicket passengers may still board on fare-free
// routes; the caller decides using the route flag.
func (s Status) BlocksBoarding() bool {
	return s != StatusValid
}

// Validator resolves the ticket status for a passenger on a route.
type Validator struct {
	directory store.Directory
	logger    *slog.Logger
	clock     func() time.Time
	retries   int
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(v *Validator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// WithRetries bounds lookup retries before lookup_failed is surfaced.
func WithRetries(n int) Option {
	return func(v *Validator) {
		if n >= 0 {
			v.retries = n
		}
	}
}

// New constructs a Validator over the passenger directory.
func New(directory store.Directory, opts ...Option) (*Validator, error) {
	if directory == nil {
		return nil, errors.New("passenger directory is required")
	}
	v := &Validator{
		directory: directory,
		logger:    slog.Default(),
		clock:     time.Now,
		retries:   3,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate returns the ticket status for passengerKey on routeID at the
// given time. The key must be enrolled in the directory; a resolved key the
// directory has never seen is surfaced as an unknown_passenger error rather
// than boarded as a ticketless rider. Empty eligible route sets allow all
// routes: season tickets without route restrictions are network-wide passes,
// and we keep that policy explicit rather than treating an empty set as "no
// routes".
//
// Store unavailability is retried a bounded number of times, then surfaced
// as a lookup_failed domain error. It is never fatal to the process.
func (v *Validator) Validate(ctx context.Context, passengerKey id.PassengerKey, routeID id.RouteID, at time.Time) (Status, error) {
	if at.IsZero() {
		at = v.clock()
	}

	err := v.lookupWithRetry(ctx, passengerKey, "passenger", func() error {
		_, findErr := v.directory.FindPassenger(ctx, passengerKey)
		return findErr
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeUnknownPassenger, "passenger is not enrolled")
		}
		return "", dErrors.Wrap(err, dErrors.CodeLookupFailed, "passenger lookup failed")
	}

	var ticket *models.SeasonTicket
	err = v.lookupWithRetry(ctx, passengerKey, "ticket", func() error {
		var lookupErr error
		ticket, lookupErr = v.directory.ActiveTicket(ctx, passengerKey)
		return lookupErr
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return StatusNoTicket, nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeLookupFailed, "ticket lookup failed")
	}

	if !ticket.WithinWindow(at) {
		return StatusExpired, nil
	}
	if !ticket.CoversRoute(routeID) {
		return StatusNotEligible, nil
	}
	return StatusValid, nil
}

func (v *Validator) lookupWithRetry(ctx context.Context, key id.PassengerKey, what string, lookup func() error) error {
	for attempt := 0; ; attempt++ {
		lookupErr := lookup()
		if lookupErr == nil {
			return nil
		}
		if !errors.Is(lookupErr, sentinel.ErrUnavailable) || attempt >= v.retries {
			return lookupErr
		}
		v.logger.WarnContext(ctx, "directory lookup retry",
			"lookup", what,
			"passenger_key", key,
			"attempt", attempt+1,
			"error", lookupErr,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 50 * time.Millisecond):
		}
	}
}
