package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/sanjeevantech/bustrack/internal/trip/models"
	"github.com/sanjeevantech/bustrack/internal/trip/tracker"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
)

// =============================================================================
// Trip HTTP Handler Test Suite
// =============================================================================

// stubService answers each method from pre-set fields so the handler layer
// can be tested without the lifecycle machinery behind it.
type stubService struct {
	trip     *models.Trip
	trips    []*models.Trip
	decision tracker.Decision
	err      error

	lastRouteID   id.RouteID
	lastVehicleID id.VehicleID
	lastTripID    id.TripID
	lastHint      tracker.Hint
	lastLimit     int
}

func (s *stubService) Start(ctx context.Context, routeID id.RouteID, vehicleID id.VehicleID) (*models.Trip, error) {
	s.lastRouteID, s.lastVehicleID = routeID, vehicleID
	return s.trip, s.err
}

func (s *stubService) End(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	s.lastTripID = tripID
	return s.trip, s.err
}

func (s *stubService) Find(ctx context.Context, tripID id.TripID) (*models.Trip, error) {
	s.lastTripID = tripID
	return s.trip, s.err
}

func (s *stubService) CurrentByVehicle(ctx context.Context, vehicleID id.VehicleID) (*models.Trip, error) {
	s.lastVehicleID = vehicleID
	return s.trip, s.err
}

func (s *stubService) CurrentByRoute(ctx context.Context, routeID id.RouteID) (*models.Trip, error) {
	s.lastRouteID = routeID
	return s.trip, s.err
}

func (s *stubService) History(ctx context.Context, limit int) ([]*models.Trip, error) {
	s.lastLimit = limit
	return s.trips, s.err
}

func (s *stubService) RecordProgress(ctx context.Context, vehicleID id.VehicleID, hint tracker.Hint) (*models.Trip, tracker.Decision, error) {
	s.lastVehicleID, s.lastHint = vehicleID, hint
	return s.trip, s.decision, s.err
}

type TripHandlerSuite struct {
	suite.Suite
	service *stubService
	router  chi.Router
}

func TestTripHandlerSuite(t *testing.T) {
	suite.Run(t, new(TripHandlerSuite))
}

func (s *TripHandlerSuite) SetupTest() {
	s.service = &stubService{}
	s.router = chi.NewRouter()
	New(s.service, slog.Default()).Register(s.router)
}

func (s *TripHandlerSuite) sampleTrip() *models.Trip {
	trip := models.NewTrip(
		id.RouteID("route-12"),
		id.VehicleID("bus-07"),
		time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC),
	)
	return trip
}

func (s *TripHandlerSuite) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&reader).Encode(body))
	}
	req := httptest.NewRequest(method, target, &reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *TripHandlerSuite) TestStart() {
	s.Run("created", func() {
		s.service.trip = s.sampleTrip()
		rec := s.do(http.MethodPost, "/trips/start", map[string]any{
			"route_id":   "route-12",
			"vehicle_id": "bus-07",
		})

		s.Equal(http.StatusCreated, rec.Code)
		s.Equal(id.RouteID("route-12"), s.service.lastRouteID)
		s.Equal(id.VehicleID("bus-07"), s.service.lastVehicleID)

		var resp TripResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("active", resp.State)
		s.Equal(-1, resp.CurrentStopSeq)
	})

	s.Run("missing route id", func() {
		rec := s.do(http.MethodPost, "/trips/start", map[string]any{"vehicle_id": "bus-07"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("conflict on a different route", func() {
		s.service.err = dErrors.New(dErrors.CodeTripAlreadyActive, "vehicle already on a trip")
		rec := s.do(http.MethodPost, "/trips/start", map[string]any{
			"route_id":   "route-99",
			"vehicle_id": "bus-07",
		})
		s.Equal(http.StatusConflict, rec.Code)

		var envelope map[string]string
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &envelope))
		s.Equal("trip_already_active", envelope["error"])
	})
}

func (s *TripHandlerSuite) TestEnd() {
	trip := s.sampleTrip()
	endedAt := trip.StartedAt.Add(50 * time.Minute)
	trip.End(models.EndReasonExplicit, endedAt)
	s.service.trip = trip

	s.Run("manifest is returned on end", func() {
		rec := s.do(http.MethodPost, "/trips/"+trip.ID.String()+"/end", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(trip.ID, s.service.lastTripID)

		var resp TripResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("ended", resp.State)
		s.Equal("explicit", resp.EndReason)
	})

	s.Run("malformed trip id", func() {
		rec := s.do(http.MethodPost, "/trips/not-a-uuid/end", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *TripHandlerSuite) TestCurrent() {
	s.service.trip = s.sampleTrip()

	s.Run("by vehicle", func() {
		rec := s.do(http.MethodGet, "/trips/current?vehicle_id=bus-07", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(id.VehicleID("bus-07"), s.service.lastVehicleID)
	})

	s.Run("by route", func() {
		rec := s.do(http.MethodGet, "/trips/current?route_id=route-12", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(id.RouteID("route-12"), s.service.lastRouteID)
	})

	s.Run("no selector", func() {
		rec := s.do(http.MethodGet, "/trips/current", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("no active trip maps to 404", func() {
		s.service.err = dErrors.New(dErrors.CodeNoActiveTrip, "no active trip for vehicle")
		rec := s.do(http.MethodGet, "/trips/current?vehicle_id=bus-07", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *TripHandlerSuite) TestHistory() {
	s.service.trips = []*models.Trip{s.sampleTrip(), s.sampleTrip()}

	s.Run("default limit", func() {
		rec := s.do(http.MethodGet, "/trips", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(0, s.service.lastLimit)

		var body struct {
			Trips []TripResponse `json:"trips"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Len(body.Trips, 2)
	})

	s.Run("explicit limit", func() {
		rec := s.do(http.MethodGet, "/trips?limit=5", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal(5, s.service.lastLimit)
	})

	s.Run("negative limit", func() {
		rec := s.do(http.MethodGet, "/trips?limit=-1", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *TripHandlerSuite) TestProgress() {
	trip := s.sampleTrip()
	trip.CurrentStopSeq = 3
	s.service.trip = trip
	s.service.decision = tracker.Decision{Action: tracker.ActionAdvance}

	s.Run("stop sequence hint", func() {
		rec := s.do(http.MethodPost, "/trips/progress", map[string]any{
			"vehicle_id": "bus-07",
			"stop_seq":   3,
		})
		s.Equal(http.StatusOK, rec.Code)
		s.Require().NotNil(s.service.lastHint.StopSeq)
		s.Equal(3, *s.service.lastHint.StopSeq)

		var body struct {
			Action string       `json:"action"`
			Trip   TripResponse `json:"trip"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal("advance", body.Action)
		s.Equal(3, body.Trip.CurrentStopSeq)
	})

	s.Run("gps hint", func() {
		rec := s.do(http.MethodPost, "/trips/progress", map[string]any{
			"vehicle_id": "bus-07",
			"latitude":   6.9271,
			"longitude":  79.8612,
		})
		s.Equal(http.StatusOK, rec.Code)
		s.Require().NotNil(s.service.lastHint.Location)
		s.InDelta(6.9271, s.service.lastHint.Location.Latitude, 1e-9)
	})

	s.Run("neither hint", func() {
		rec := s.do(http.MethodPost, "/trips/progress", map[string]any{"vehicle_id": "bus-07"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("latitude without longitude", func() {
		rec := s.do(http.MethodPost, "/trips/progress", map[string]any{
			"vehicle_id": "bus-07",
			"latitude":   6.9271,
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
