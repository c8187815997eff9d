package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/sanjeevantech/bustrack/internal/ticket"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// =============================================================================
// Trip Aggregate Test Suite
// =============================================================================
// Justification for unit tests: the aggregate enforces the state machine and
// manifest invariants that every transport and store depends on. Violations
// here corrupt fare and audit data silently, so the rules are pinned at the
// model level.

type TripSuite struct {
	suite.Suite
	now  time.Time
	trip *Trip
}

func TestTripSuite(t *testing.T) {
	suite.Run(t, new(TripSuite))
}

func (s *TripSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)
	s.trip = NewTrip(id.RouteID("route-12"), id.VehicleID("bus-07"), s.now)
}

func (s *TripSuite) TestNewTrip() {
	s.Equal(StateActive, s.trip.State)
	s.Equal(-1, s.trip.CurrentStopSeq)
	s.False(s.trip.ID.IsNil())
	s.Empty(s.trip.Boardings)
	s.Equal(s.now, s.trip.LastActivityAt)
}

// =============================================================================
// Boarding Tests
// =============================================================================

func (s *TripSuite) TestBoard() {
	key := id.PassengerKey("p-100")

	s.Run("first sighting grows the manifest", func() {
		added, err := s.trip.Board(key, ticket.StatusValid, 0.91, s.now.Add(time.Minute))
		s.NoError(err)
		s.True(added)
		s.Equal(1, s.trip.BoardingCount)
		s.True(s.trip.IsOnboard(key))
	})

	s.Run("repeat sighting is idempotent", func() {
		added, err := s.trip.Board(key, ticket.StatusValid, 0.88, s.now.Add(2*time.Minute))
		s.NoError(err)
		s.False(added)
		s.Equal(1, s.trip.BoardingCount)
	})

	s.Run("re-board after alighting reuses the original record", func() {
		removed, record, err := s.trip.Alight(key, s.now.Add(10*time.Minute))
		s.Require().NoError(err)
		s.Require().True(removed)
		s.Require().NotNil(record.AlightedAt)

		added, err := s.trip.Board(key, ticket.StatusValid, 0.9, s.now.Add(12*time.Minute))
		s.NoError(err)
		s.False(added)
		s.Equal(1, s.trip.BoardingCount)
		s.Nil(s.trip.Boardings[key].AlightedAt)
		s.Nil(s.trip.Boardings[key].Fare)
		s.True(s.trip.IsOnboard(key))
	})

	s.Run("boarding an ended trip is rejected", func() {
		s.trip.End(EndReasonExplicit, s.now.Add(time.Hour))
		_, err := s.trip.Board(id.PassengerKey("p-200"), ticket.StatusValid, 0.9, s.now.Add(time.Hour))
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *TripSuite) TestBoardRecordsCurrentStop() {
	s.Require().NoError(s.trip.RecordArrival(StopArrival{Sequence: 2, StopName: "Market", At: s.now.Add(5 * time.Minute)}))

	_, err := s.trip.Board(id.PassengerKey("p-1"), ticket.StatusNoTicket, 0.8, s.now.Add(6*time.Minute))
	s.NoError(err)
	s.Equal(2, s.trip.Boardings[id.PassengerKey("p-1")].BoardedSeq)
}

// =============================================================================
// Alighting Tests
// =============================================================================

func (s *TripSuite) TestAlight() {
	key := id.PassengerKey("p-100")
	_, err := s.trip.Board(key, ticket.StatusValid, 0.9, s.now)
	s.Require().NoError(err)

	s.Run("unknown passenger is a no-op", func() {
		removed, record, err := s.trip.Alight(id.PassengerKey("stranger"), s.now.Add(time.Minute))
		s.NoError(err)
		s.False(removed)
		s.Nil(record)
	})

	s.Run("onboard passenger is marked off at the current stop", func() {
		s.Require().NoError(s.trip.RecordArrival(StopArrival{Sequence: 3, StopName: "Depot", At: s.now.Add(20 * time.Minute)}))

		removed, record, err := s.trip.Alight(key, s.now.Add(21*time.Minute))
		s.NoError(err)
		s.True(removed)
		s.Require().NotNil(record.AlightedSeq)
		s.Equal(3, *record.AlightedSeq)
		s.False(s.trip.IsOnboard(key))
	})

	s.Run("second alight is a no-op", func() {
		removed, record, err := s.trip.Alight(key, s.now.Add(25*time.Minute))
		s.NoError(err)
		s.False(removed)
		s.Nil(record)
	})
}

// =============================================================================
// Route Progress Tests
// =============================================================================

func (s *TripSuite) TestRecordArrival() {
	s.Run("advances the current stop", func() {
		err := s.trip.RecordArrival(StopArrival{Sequence: 0, StopName: "Origin", At: s.now.Add(time.Minute)})
		s.NoError(err)
		s.Equal(0, s.trip.CurrentStopSeq)
	})

	s.Run("rejects equal or earlier sequences", func() {
		s.ErrorIs(s.trip.RecordArrival(StopArrival{Sequence: 0, At: s.now.Add(2 * time.Minute)}), sentinel.ErrConflict)
		s.ErrorIs(s.trip.RecordArrival(StopArrival{Sequence: -1, At: s.now.Add(2 * time.Minute)}), sentinel.ErrConflict)
		s.Equal(0, s.trip.CurrentStopSeq)
	})

	s.Run("clamps timestamps so arrivals never go backwards", func() {
		err := s.trip.RecordArrival(StopArrival{Sequence: 1, StopName: "Bridge", At: s.now.Add(-time.Hour)})
		s.NoError(err)
		last := s.trip.StopArrivals[len(s.trip.StopArrivals)-1]
		s.Equal(s.now.Add(time.Minute), last.At)
	})

	s.Run("rejected on an ended trip", func() {
		s.trip.End(EndReasonExplicit, s.now.Add(time.Hour))
		s.ErrorIs(s.trip.RecordArrival(StopArrival{Sequence: 5, At: s.now.Add(time.Hour)}), sentinel.ErrInvalidState)
	})
}

// =============================================================================
// End and Inactivity Tests
// =============================================================================

func (s *TripSuite) TestEnd() {
	endAt := s.now.Add(40 * time.Minute)
	s.trip.End(EndReasonTimeout, endAt)

	s.Equal(StateEnded, s.trip.State)
	s.Equal(EndReasonTimeout, s.trip.EndReason)
	s.Require().NotNil(s.trip.EndedAt)
	s.Equal(endAt, *s.trip.EndedAt)

	// Idempotent, first reason wins.
	s.trip.End(EndReasonExplicit, endAt.Add(time.Minute))
	s.Equal(EndReasonTimeout, s.trip.EndReason)
	s.Equal(endAt, *s.trip.EndedAt)
}

func (s *TripSuite) TestIdleSince() {
	timeout := 45 * time.Minute

	s.False(s.trip.IdleSince(s.now.Add(timeout), timeout))
	s.True(s.trip.IdleSince(s.now.Add(timeout+time.Second), timeout))

	// Activity resets the window.
	_, err := s.trip.Board(id.PassengerKey("p-1"), ticket.StatusValid, 0.9, s.now.Add(30*time.Minute))
	s.Require().NoError(err)
	s.False(s.trip.IdleSince(s.now.Add(timeout+time.Minute), timeout))

	// Ended trips are never idle-eligible.
	s.trip.End(EndReasonExplicit, s.now.Add(time.Hour))
	s.False(s.trip.IdleSince(s.now.Add(24*time.Hour), timeout))
}

func (s *TripSuite) TestClone() {
	key := id.PassengerKey("p-1")
	_, err := s.trip.Board(key, ticket.StatusValid, 0.9, s.now)
	s.Require().NoError(err)

	clone := s.trip.Clone()
	clone.Boardings[key].Confidence = 0.1
	clone.BoardingCount = 99

	s.Equal(0.9, s.trip.Boardings[key].Confidence)
	s.Equal(1, s.trip.BoardingCount)
}
