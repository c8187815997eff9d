package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/sanjeevantech/bustrack/internal/ticket"
	"github.com/sanjeevantech/bustrack/internal/trip/models"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.now = time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC)
}

func (s *MemoryStoreSuite) newTrip(vehicle string, startedAt time.Time) *models.Trip {
	return models.NewTrip(id.RouteID("route-12"), id.VehicleID(vehicle), startedAt)
}

func (s *MemoryStoreSuite) TestCreate() {
	ctx := context.Background()
	trip := s.newTrip("bus-07", s.now)

	s.Run("stores a new trip", func() {
		s.NoError(s.store.Create(ctx, trip))
		got, err := s.store.FindByID(ctx, trip.ID)
		s.NoError(err)
		s.Equal(trip.ID, got.ID)
	})

	s.Run("rejects a second active trip for the same vehicle", func() {
		err := s.store.Create(ctx, s.newTrip("bus-07", s.now.Add(time.Minute)))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("allows a new trip once the previous one ended", func() {
		trip.End(models.EndReasonExplicit, s.now.Add(30*time.Minute))
		s.Require().NoError(s.store.Update(ctx, trip))
		s.NoError(s.store.Create(ctx, s.newTrip("bus-07", s.now.Add(time.Hour))))
	})
}

func (s *MemoryStoreSuite) TestUpdate() {
	ctx := context.Background()

	s.Run("unknown trip returns not found", func() {
		s.ErrorIs(s.store.Update(ctx, s.newTrip("bus-01", s.now)), sentinel.ErrNotFound)
	})

	s.Run("persists the full aggregate", func() {
		trip := s.newTrip("bus-01", s.now)
		s.Require().NoError(s.store.Create(ctx, trip))

		_, err := trip.Board(id.PassengerKey("p-1"), ticket.StatusValid, 0.9, s.now.Add(time.Minute))
		s.Require().NoError(err)
		s.Require().NoError(s.store.Update(ctx, trip))

		got, err := s.store.FindByID(ctx, trip.ID)
		s.NoError(err)
		s.Equal(1, got.BoardingCount)
	})
}

func (s *MemoryStoreSuite) TestSnapshotsAreIsolated() {
	ctx := context.Background()
	trip := s.newTrip("bus-02", s.now)
	s.Require().NoError(s.store.Create(ctx, trip))

	got, err := s.store.FindByID(ctx, trip.ID)
	s.Require().NoError(err)
	got.BoardingCount = 42

	again, err := s.store.FindByID(ctx, trip.ID)
	s.Require().NoError(err)
	s.Zero(again.BoardingCount)
}

func (s *MemoryStoreSuite) TestFindActive() {
	ctx := context.Background()
	trip := s.newTrip("bus-03", s.now)
	s.Require().NoError(s.store.Create(ctx, trip))

	s.Run("by vehicle", func() {
		got, err := s.store.FindActiveByVehicle(ctx, id.VehicleID("bus-03"))
		s.NoError(err)
		s.Equal(trip.ID, got.ID)

		_, err = s.store.FindActiveByVehicle(ctx, id.VehicleID("bus-99"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("by route", func() {
		got, err := s.store.FindActiveByRoute(ctx, id.RouteID("route-12"))
		s.NoError(err)
		s.Equal(trip.ID, got.ID)
	})

	s.Run("ended trips are invisible", func() {
		trip.End(models.EndReasonTimeout, s.now.Add(time.Hour))
		s.Require().NoError(s.store.Update(ctx, trip))

		_, err := s.store.FindActiveByVehicle(ctx, id.VehicleID("bus-03"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *MemoryStoreSuite) TestRecent() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		trip := s.newTrip("bus-"+string(rune('a'+i)), s.now.Add(time.Duration(i)*time.Hour))
		s.Require().NoError(s.store.Create(ctx, trip))
	}

	trips, err := s.store.Recent(ctx, 3)
	s.NoError(err)
	s.Require().Len(trips, 3)
	s.True(trips[0].StartedAt.After(trips[1].StartedAt))
	s.True(trips[1].StartedAt.After(trips[2].StartedAt))
}
