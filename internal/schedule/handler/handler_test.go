package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/sanjeevantech/bustrack/internal/schedule"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
)

// =============================================================================
// Schedule HTTP Handler Test Suite
// =============================================================================

type ScheduleHandlerSuite struct {
	suite.Suite
	provider *schedule.InMemoryProvider
	router   chi.Router
}

func TestScheduleHandlerSuite(t *testing.T) {
	suite.Run(t, new(ScheduleHandlerSuite))
}

func (s *ScheduleHandlerSuite) SetupTest() {
	s.provider = schedule.NewInMemoryProvider()
	s.provider.SetRoute(schedule.Route{
		ID:   id.RouteID("route-12"),
		Name: "Harbor Line",
		Stops: []schedule.Stop{
			{Name: "Origin", Sequence: 0},
			{Name: "Depot", Sequence: 1},
		},
	})
	s.provider.SetDepartures([]schedule.Departure{
		{RouteID: id.RouteID("route-12"), TimeOfDay: "07:30"},
	})

	s.router = chi.NewRouter()
	New(s.provider, slog.Default()).Register(s.router)
}

func (s *ScheduleHandlerSuite) get(target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func (s *ScheduleHandlerSuite) TestSnapshot() {
	rec := s.get("/schedule")
	s.Equal(http.StatusOK, rec.Code)

	var snap schedule.Snapshot
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &snap))
	s.Require().Len(snap.Routes, 1)
	s.Equal("Harbor Line", snap.Routes[0].Name)
	s.Len(snap.Departures, 1)
}

func (s *ScheduleHandlerSuite) TestNearDeparture() {
	s.Run("inside the window names the departure", func() {
		rec := s.get("/departures/near?at=2026-03-14T07:25:00Z")
		s.Equal(http.StatusOK, rec.Code)

		var resp struct {
			Near      bool                `json:"near"`
			Departure *schedule.Departure `json:"departure"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.True(resp.Near)
		s.Require().NotNil(resp.Departure)
		s.Equal("07:30", resp.Departure.TimeOfDay)
	})

	s.Run("outside the window", func() {
		rec := s.get("/departures/near?at=2026-03-14T09:00:00Z")
		s.Equal(http.StatusOK, rec.Code)

		var resp struct {
			Near bool `json:"near"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.False(resp.Near)
	})

	s.Run("widened tolerance catches it", func() {
		rec := s.get("/departures/near?at=2026-03-14T08:00:00Z&within=45")
		s.Equal(http.StatusOK, rec.Code)

		var resp struct {
			Near bool `json:"near"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.True(resp.Near)
	})

	s.Run("bad query parameters", func() {
		s.Equal(http.StatusBadRequest, s.get("/departures/near?at=lunchtime").Code)
		s.Equal(http.StatusBadRequest, s.get("/departures/near?within=-5").Code)
	})
}

func (s *ScheduleHandlerSuite) TestRoute() {
	s.Run("known route", func() {
		rec := s.get("/routes/route-12")
		s.Equal(http.StatusOK, rec.Code)

		var route schedule.Route
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &route))
		s.Equal(id.RouteID("route-12"), route.ID)
		s.Len(route.Stops, 2)
	})

	s.Run("unknown route", func() {
		rec := s.get("/routes/route-99")
		s.Equal(http.StatusNotFound, rec.Code)

		var envelope map[string]string
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &envelope))
		s.Equal("not_found", envelope["error"])
	})
}
