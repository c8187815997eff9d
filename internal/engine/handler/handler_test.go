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

	"github.com/sanjeevantech/bustrack/internal/engine"
	"github.com/sanjeevantech/bustrack/internal/resolver"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
)

// =============================================================================
// Ingest HTTP Handler Test Suite
// =============================================================================
// Justification: the contract that rejection is a 200 outcome rather than an
// HTTP error is what keeps devices from retry-looping; these tests pin it
// together with the validation envelope.

type stubPipeline struct {
	lastEvent resolver.Event
	result    engine.Result
	err       error
}

func (s *stubPipeline) Ingest(ctx context.Context, ev resolver.Event) (engine.Result, error) {
	s.lastEvent = ev
	return s.result, s.err
}

type IngestHandlerSuite struct {
	suite.Suite
	pipeline *stubPipeline
	router   chi.Router
}

func TestIngestHandlerSuite(t *testing.T) {
	suite.Run(t, new(IngestHandlerSuite))
}

func (s *IngestHandlerSuite) SetupTest() {
	s.pipeline = &stubPipeline{}
	s.router = chi.NewRouter()
	New(s.pipeline, slog.Default()).Register(s.router)
}

func (s *IngestHandlerSuite) post(body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/ingest", &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *IngestHandlerSuite) validBody() map[string]any {
	return map[string]any{
		"device_id":     "cam-front-07",
		"vehicle_id":    "bus-07",
		"timestamp":     time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC).Format(time.RFC3339),
		"direction":     "entry",
		"passenger_key": "p-1",
		"confidence":    0.91,
	}
}

func (s *IngestHandlerSuite) TestIngest() {
	s.Run("boarded outcome passes through", func() {
		s.pipeline.result = engine.Result{
			Outcome:      engine.OutcomeBoarded,
			PassengerKey: id.PassengerKey("p-1"),
		}
		rec := s.post(s.validBody())

		s.Equal(http.StatusOK, rec.Code)
		var result engine.Result
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
		s.Equal(engine.OutcomeBoarded, result.Outcome)
		s.Equal(id.PassengerKey("p-1"), result.PassengerKey)

		s.Equal(id.DeviceID("cam-front-07"), s.pipeline.lastEvent.DeviceID)
		s.Require().NotNil(s.pipeline.lastEvent.Match)
		s.InDelta(0.91, s.pipeline.lastEvent.Match.Confidence, 1e-9)
	})

	s.Run("rejection is still a 200", func() {
		s.pipeline.result = engine.Result{Outcome: engine.OutcomeRejected, Reason: "stale"}
		rec := s.post(s.validBody())

		s.Equal(http.StatusOK, rec.Code)
		var result engine.Result
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
		s.Equal(engine.OutcomeRejected, result.Outcome)
		s.Equal("stale", result.Reason)
	})

	s.Run("gps coordinates travel as a point", func() {
		body := s.validBody()
		body["latitude"] = 6.9271
		body["longitude"] = 79.8612
		s.post(body)

		s.Require().NotNil(s.pipeline.lastEvent.Location)
		s.InDelta(6.9271, s.pipeline.lastEvent.Location.Latitude, 1e-9)
	})
}

func (s *IngestHandlerSuite) TestValidation() {
	cases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing device id", func(b map[string]any) { delete(b, "device_id") }},
		{"missing vehicle id", func(b map[string]any) { delete(b, "vehicle_id") }},
		{"bad direction", func(b map[string]any) { b["direction"] = "sideways" }},
		{"confidence out of range", func(b map[string]any) { b["confidence"] = 1.5 }},
		{"latitude without longitude", func(b map[string]any) { b["latitude"] = 6.9 }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			body := s.validBody()
			tc.mutate(body)
			rec := s.post(body)

			s.Equal(http.StatusBadRequest, rec.Code)
			var envelope map[string]string
			s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &envelope))
			s.Equal("invalid_input", envelope["error"])
		})
	}

	s.Run("malformed json", func() {
		req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewBufferString("{oops"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown fields are rejected", func() {
		body := s.validBody()
		body["firmware"] = "1.4"
		rec := s.post(body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *IngestHandlerSuite) TestPipelineError() {
	s.pipeline.err = context.DeadlineExceeded
	rec := s.post(s.validBody())
	s.Equal(http.StatusInternalServerError, rec.Code)

	var envelope map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &envelope))
	s.Equal("internal_error", envelope["error"])
	s.Empty(envelope["error_description"])
}
