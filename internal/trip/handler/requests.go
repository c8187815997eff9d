package handler

import (
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
	"github.com/sanjeevantech/bustrack/pkg/geo"
)

// StartRequest is the HTTP request body for POST /trips/start.
type StartRequest struct {
	RouteID   string `json:"route_id"`
	VehicleID string `json:"vehicle_id"`

	// Parsed values (populated by Validate)
	parsedRouteID   id.RouteID
	parsedVehicleID id.VehicleID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *StartRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	routeID, err := id.ParseRouteID(r.RouteID)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "route_id is required")
	}
	vehicleID, err := id.ParseVehicleID(r.VehicleID)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "vehicle_id is required")
	}
	r.parsedRouteID = routeID
	r.parsedVehicleID = vehicleID
	return nil
}

// ParsedRouteID returns the validated route ID.
func (r *StartRequest) ParsedRouteID() id.RouteID {
	return r.parsedRouteID
}

// ParsedVehicleID returns the validated vehicle ID.
func (r *StartRequest) ParsedVehicleID() id.VehicleID {
	return r.parsedVehicleID
}

// ProgressRequest is the HTTP request body for POST /trips/progress. GPS-only
// devices report position through here when they have no face event to
// piggyback on.
type ProgressRequest struct {
	VehicleID string   `json:"vehicle_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	StopSeq   *int     `json:"stop_seq,omitempty"`

	parsedVehicleID id.VehicleID
	parsedLocation  *geo.Point
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ProgressRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	vehicleID, err := id.ParseVehicleID(r.VehicleID)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "vehicle_id is required")
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return dErrors.New(dErrors.CodeInvalidInput, "latitude and longitude must be sent together")
	}
	if r.Latitude == nil && r.StopSeq == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "either a GPS fix or a stop_seq is required")
	}
	r.parsedVehicleID = vehicleID
	if r.Latitude != nil {
		r.parsedLocation = &geo.Point{Latitude: *r.Latitude, Longitude: *r.Longitude}
	}
	return nil
}

// ParsedVehicleID returns the validated vehicle ID.
func (r *ProgressRequest) ParsedVehicleID() id.VehicleID {
	return r.parsedVehicleID
}

// ParsedLocation returns the validated GPS fix, nil when absent.
func (r *ProgressRequest) ParsedLocation() *geo.Point {
	return r.parsedLocation
}
