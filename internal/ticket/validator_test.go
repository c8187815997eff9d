package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/sanjeevantech/bustrack/internal/passenger/models"
	"github.com/sanjeevantech/bustrack/internal/passenger/store"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

type ValidatorSuite struct {
	suite.Suite
	now       time.Time
	directory *store.InMemoryDirectory
	validator *Validator
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC)
	s.directory = store.NewInMemoryDirectory()

	var err error
	s.validator, err = New(s.directory,
		WithClock(func() time.Time { return s.now }),
		WithRetries(2),
	)
	s.Require().NoError(err)
}

func (s *ValidatorSuite) seed(key string, from, to time.Time, routes ...id.RouteID) {
	k := id.PassengerKey(key)
	s.directory.Seed(
		&models.Passenger{Key: k, DisplayName: "Rider " + key},
		&models.SeasonTicket{PassengerKey: k, ValidFrom: from, ValidTo: to, EligibleRoutes: routes},
	)
}

func (s *ValidatorSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
}

func (s *ValidatorSuite) TestValidate() {
	ctx := context.Background()
	route := id.RouteID("route-12")

	s.Run("unenrolled key is unknown, not ticketless", func() {
		_, err := s.validator.Validate(ctx, id.PassengerKey("stranger"), route, s.now)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownPassenger))
	})

	s.Run("no ticket on record", func() {
		s.directory.Seed(&models.Passenger{Key: id.PassengerKey("p-0"), DisplayName: "Rider p-0"}, nil)
		status, err := s.validator.Validate(ctx, id.PassengerKey("p-0"), route, s.now)
		s.NoError(err)
		s.Equal(StatusNoTicket, status)
		s.True(status.BlocksBoarding())
	})

	s.Run("valid network-wide pass", func() {
		s.seed("p-1", s.now.AddDate(0, -1, 0), s.now.AddDate(0, 1, 0))
		status, err := s.validator.Validate(ctx, id.PassengerKey("p-1"), route, s.now)
		s.NoError(err)
		s.Equal(StatusValid, status)
		s.False(status.BlocksBoarding())
	})

	s.Run("route-scoped ticket on a covered route", func() {
		s.seed("p-2", s.now.AddDate(0, -1, 0), s.now.AddDate(0, 1, 0), route, id.RouteID("route-9"))
		status, err := s.validator.Validate(ctx, id.PassengerKey("p-2"), route, s.now)
		s.NoError(err)
		s.Equal(StatusValid, status)
	})

	s.Run("route-scoped ticket elsewhere", func() {
		status, err := s.validator.Validate(ctx, id.PassengerKey("p-2"), id.RouteID("route-44"), s.now)
		s.NoError(err)
		s.Equal(StatusNotEligible, status)
		s.True(status.BlocksBoarding())
	})

	s.Run("expired ticket", func() {
		s.seed("p-3", s.now.AddDate(-1, 0, 0), s.now.AddDate(0, 0, -1))
		status, err := s.validator.Validate(ctx, id.PassengerKey("p-3"), route, s.now)
		s.NoError(err)
		s.Equal(StatusExpired, status)
	})

	s.Run("window bounds are inclusive", func() {
		from := s.now
		to := s.now.Add(30 * 24 * time.Hour)
		s.seed("p-4", from, to)

		status, err := s.validator.Validate(ctx, id.PassengerKey("p-4"), route, from)
		s.NoError(err)
		s.Equal(StatusValid, status)

		status, err = s.validator.Validate(ctx, id.PassengerKey("p-4"), route, to)
		s.NoError(err)
		s.Equal(StatusValid, status)

		status, err = s.validator.Validate(ctx, id.PassengerKey("p-4"), route, to.Add(time.Second))
		s.NoError(err)
		s.Equal(StatusExpired, status)
	})

	s.Run("zero time falls back to the clock", func() {
		s.seed("p-5", s.now.AddDate(0, -1, 0), s.now.AddDate(0, 1, 0))
		status, err := s.validator.Validate(ctx, id.PassengerKey("p-5"), route, time.Time{})
		s.NoError(err)
		s.Equal(StatusValid, status)
	})
}

// failingDirectory simulates an unreachable passenger store.
type failingDirectory struct {
	findCalls   int
	ticketCalls int
}

func (d *failingDirectory) FindPassenger(context.Context, id.PassengerKey) (*models.Passenger, error) {
	d.findCalls++
	return nil, sentinel.ErrUnavailable
}

func (d *failingDirectory) ActiveTicket(context.Context, id.PassengerKey) (*models.SeasonTicket, error) {
	d.ticketCalls++
	return nil, sentinel.ErrUnavailable
}

func (s *ValidatorSuite) TestLookupFailure() {
	ctx := context.Background()
	dir := &failingDirectory{}

	validator, err := New(dir, WithRetries(2))
	s.Require().NoError(err)

	_, err = validator.Validate(ctx, id.PassengerKey("p-1"), id.RouteID("route-12"), s.now)
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeLookupFailed))
	// Initial attempt plus two retries against the enrollment lookup; the
	// ticket lookup is never reached once the store is declared down.
	s.Equal(3, dir.findCalls)
	s.Zero(dir.ticketCalls)
}
