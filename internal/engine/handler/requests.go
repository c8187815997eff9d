package handler

import (
	"strings"
	"time"

	"github.com/sanjeevantech/bustrack/internal/resolver"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
	"github.com/sanjeevantech/bustrack/pkg/geo"
)

// IngestRequest is the HTTP request body for POST /ingest. It mirrors the
// device topic payload, with an RFC 3339 timestamp instead of unix seconds.
type IngestRequest struct {
	DeviceID     string    `json:"device_id"`
	VehicleID    string    `json:"vehicle_id"`
	Timestamp    time.Time `json:"timestamp"`
	Direction    string    `json:"direction"`
	PassengerKey string    `json:"passenger_key,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	StopSeq      *int      `json:"stop_seq,omitempty"`

	// Parsed values (populated by Validate)
	parsedEvent resolver.Event
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *IngestRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	deviceID, err := id.ParseDeviceID(r.DeviceID)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "device_id is required")
	}
	vehicleID, err := id.ParseVehicleID(r.VehicleID)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "vehicle_id is required")
	}

	direction := resolver.Direction(strings.TrimSpace(r.Direction))
	if !direction.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "direction must be entry or exit")
	}

	ev := resolver.Event{
		DeviceID:  deviceID,
		VehicleID: vehicleID,
		Timestamp: r.Timestamp,
		Direction: direction,
		StopHint:  r.StopSeq,
	}

	if r.PassengerKey != "" {
		key, err := id.ParsePassengerKey(r.PassengerKey)
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "passenger_key must not be blank")
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return dErrors.New(dErrors.CodeInvalidInput, "confidence must be between 0 and 1")
		}
		ev.Match = &resolver.Match{PassengerKey: key, Confidence: r.Confidence}
	}

	if (r.Latitude == nil) != (r.Longitude == nil) {
		return dErrors.New(dErrors.CodeInvalidInput, "latitude and longitude must be sent together")
	}
	if r.Latitude != nil {
		ev.Location = &geo.Point{Latitude: *r.Latitude, Longitude: *r.Longitude}
	}

	r.parsedEvent = ev
	return nil
}

// ParsedEvent returns the validated pipeline event.
func (r *IngestRequest) ParsedEvent() resolver.Event {
	return r.parsedEvent
}
