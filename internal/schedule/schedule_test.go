package schedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/geo"
	"github.com/sanjeevantech/bustrack/pkg/platform/sentinel"
)

// =============================================================================
// Schedule Test Suite
// =============================================================================
// Justification: the tracker and the fare calculator both trust the provider
// to hand back normalized, isolated route copies; these tests pin the
// normalization, the snapshot isolation, and the departure window math.

type ScheduleSuite struct {
	suite.Suite
	provider *InMemoryProvider
}

func TestScheduleSuite(t *testing.T) {
	suite.Run(t, new(ScheduleSuite))
}

func (s *ScheduleSuite) SetupTest() {
	s.provider = NewInMemoryProvider()
}

func (s *ScheduleSuite) harborLine() Route {
	return Route{
		ID:   id.RouteID("route-12"),
		Name: "Harbor Line",
		Stops: []Stop{
			{Name: "Origin", Sequence: 0, Location: geo.Point{Latitude: 6.90, Longitude: 79.85}},
			{Name: "Market", Sequence: 1, Location: geo.Point{Latitude: 6.95, Longitude: 79.85}},
			{Name: "Depot", Sequence: 2, Location: geo.Point{Latitude: 7.00, Longitude: 79.85}},
		},
	}
}

func (s *ScheduleSuite) TestRouteLookup() {
	ctx := context.Background()

	s.Run("unknown route", func() {
		_, err := s.provider.Route(ctx, id.RouteID("route-99"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("known route", func() {
		s.provider.SetRoute(s.harborLine())
		route, err := s.provider.Route(ctx, id.RouteID("route-12"))
		s.NoError(err)
		s.Equal("Harbor Line", route.Name)
		s.Len(route.Stops, 3)
	})

	s.Run("stops are normalized to sequence order", func() {
		line := s.harborLine()
		line.Stops[0], line.Stops[2] = line.Stops[2], line.Stops[0]
		s.provider.SetRoute(line)

		route, err := s.provider.Route(ctx, id.RouteID("route-12"))
		s.Require().NoError(err)
		s.Equal(0, route.Stops[0].Sequence)
		s.Equal(2, route.Stops[2].Sequence)
	})

	s.Run("returned route is a copy", func() {
		s.provider.SetRoute(s.harborLine())
		route, err := s.provider.Route(ctx, id.RouteID("route-12"))
		s.Require().NoError(err)
		route.Stops[0].Name = "Tampered"

		again, err := s.provider.Route(ctx, id.RouteID("route-12"))
		s.Require().NoError(err)
		s.Equal("Origin", again.Stops[0].Name)
	})
}

func (s *ScheduleSuite) TestSnapshot() {
	ctx := context.Background()
	s.provider.SetRoute(s.harborLine())
	s.provider.SetRoute(Route{ID: id.RouteID("route-01"), Name: "Airport Express"})
	s.provider.SetDepartures([]Departure{
		{RouteID: id.RouteID("route-12"), TimeOfDay: "07:30", EstimatedDuration: 50 * time.Minute},
	})

	snap, err := s.provider.Snapshot(ctx)
	s.Require().NoError(err)
	s.Require().Len(snap.Routes, 2)
	s.Equal(id.RouteID("route-01"), snap.Routes[0].ID)
	s.Equal(id.RouteID("route-12"), snap.Routes[1].ID)
	s.Len(snap.Departures, 1)
}

func (s *ScheduleSuite) TestNearestStop() {
	route := s.harborLine()

	s.Run("closest stop wins", func() {
		stop, dist, ok := route.NearestStop(geo.Point{Latitude: 6.951, Longitude: 79.85})
		s.True(ok)
		s.Equal("Market", stop.Name)
		s.InDelta(0.11, dist, 0.02)
	})

	s.Run("no fix", func() {
		_, _, ok := route.NearestStop(geo.Point{})
		s.False(ok)
	})

	s.Run("no stops", func() {
		_, _, ok := Route{}.NearestStop(geo.Point{Latitude: 6.9, Longitude: 79.85})
		s.False(ok)
	})
}

func (s *ScheduleSuite) TestFinalSequence() {
	s.Equal(2, s.harborLine().FinalSequence())
	s.Equal(-1, Route{}.FinalSequence())
}

func (s *ScheduleSuite) TestNearDeparture() {
	snap := &Snapshot{Departures: []Departure{
		{RouteID: id.RouteID("route-12"), TimeOfDay: "07:30"},
		{RouteID: id.RouteID("route-12"), TimeOfDay: "23:55"},
	}}
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	s.Run("inside the window", func() {
		dep, ok := NearDeparture(snap, day.Add(7*time.Hour+20*time.Minute), 15*time.Minute)
		s.True(ok)
		s.Equal("07:30", dep.TimeOfDay)
	})

	s.Run("outside the window", func() {
		_, ok := NearDeparture(snap, day.Add(9*time.Hour), 15*time.Minute)
		s.False(ok)
	})

	s.Run("wraps around midnight", func() {
		dep, ok := NearDeparture(snap, day.Add(5*time.Minute), 15*time.Minute)
		s.True(ok)
		s.Equal("23:55", dep.TimeOfDay)
	})

	s.Run("unparseable entries are skipped", func() {
		bad := &Snapshot{Departures: []Departure{{TimeOfDay: "soon"}}}
		_, ok := NearDeparture(bad, day, 15*time.Minute)
		s.False(ok)
	})
}

func (s *ScheduleSuite) TestLoadFile() {
	s.Run("round trip through the provider", func() {
		path := filepath.Join(s.T().TempDir(), "schedule.json")
		payload := `{
			"routes": [{
				"route_id": "route-12",
				"name": "Harbor Line",
				"stops": [
					{"name": "Origin", "sequence": 0, "location": {"latitude": 6.9, "longitude": 79.85}},
					{"name": "Depot", "sequence": 1, "location": {"latitude": 7.0, "longitude": 79.85}}
				],
				"ticket_required": true
			}],
			"departures": [{"route_id": "route-12", "time_of_day": "07:30"}]
		}`
		s.Require().NoError(os.WriteFile(path, []byte(payload), 0o600))

		snap, err := LoadFile(path)
		s.Require().NoError(err)
		SeedProvider(s.provider, snap)

		route, err := s.provider.Route(context.Background(), id.RouteID("route-12"))
		s.Require().NoError(err)
		s.Equal("Harbor Line", route.Name)
		s.Require().NotNil(route.TicketRequired)
		s.True(*route.TicketRequired)
		s.Len(snap.Departures, 1)
	})

	s.Run("missing file", func() {
		_, err := LoadFile(filepath.Join(s.T().TempDir(), "missing.json"))
		s.Error(err)
	})

	s.Run("route without an ID is refused", func() {
		path := filepath.Join(s.T().TempDir(), "bad.json")
		s.Require().NoError(os.WriteFile(path, []byte(`{"routes":[{"name":"anon"}]}`), 0o600))
		_, err := LoadFile(path)
		s.ErrorContains(err, "no route_id")
	})
}
