// Package domain holds the typed identifiers and domain primitives shared
// across the tracker. Constructing values through the Parse helpers enforces
// validity at trust boundaries; direct casting bypasses validation.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TripID uniquely identifies one operating session of a vehicle on a route.
type TripID uuid.UUID

// NewTripID generates a fresh trip identifier.
func NewTripID() TripID {
	return TripID(uuid.New())
}

// ParseTripID validates and returns a TripID from its string form.
func ParseTripID(s string) (TripID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TripID{}, fmt.Errorf("invalid trip ID %q: %w", s, err)
	}
	return TripID(u), nil
}

func (t TripID) String() string {
	return uuid.UUID(t).String()
}

// IsNil reports whether the trip ID is the zero value.
func (t TripID) IsNil() bool {
	return uuid.UUID(t) == uuid.Nil
}

// MarshalText serializes the trip ID as its canonical UUID string.
func (t TripID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses a trip ID from its canonical UUID string.
func (t *TripID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("invalid trip ID %q: %w", string(b), err)
	}
	*t = TripID(u)
	return nil
}

// PassengerKey identifies an enrolled passenger. The key is issued by the
// enrollment system and is opaque here; we only require it to be non-empty
// and free of surrounding whitespace.
type PassengerKey string

// ParsePassengerKey validates and returns a PassengerKey.
func ParsePassengerKey(s string) (PassengerKey, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("passenger key cannot be empty")
	}
	return PassengerKey(trimmed), nil
}

func (k PassengerKey) String() string {
	return string(k)
}

// IsNil reports whether the passenger key is empty.
func (k PassengerKey) IsNil() bool {
	return k == ""
}

// DeviceID identifies one onboard ESP32 board. Devices are registered out of
// band; the tracker treats the ID as an opaque non-empty string.
type DeviceID string

// ParseDeviceID validates and returns a DeviceID.
func ParseDeviceID(s string) (DeviceID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("device ID cannot be empty")
	}
	return DeviceID(trimmed), nil
}

func (d DeviceID) String() string {
	return string(d)
}

// IsNil reports whether the device ID is empty.
func (d DeviceID) IsNil() bool {
	return d == ""
}

// RouteID identifies a predefined route with its ordered stop sequence.
type RouteID string

// ParseRouteID validates and returns a RouteID.
func ParseRouteID(s string) (RouteID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("route ID cannot be empty")
	}
	return RouteID(trimmed), nil
}

func (r RouteID) String() string {
	return string(r)
}

// IsNil reports whether the route ID is empty.
func (r RouteID) IsNil() bool {
	return r == ""
}

// VehicleID groups the devices mounted on one bus. A vehicle has at most one
// active trip at a time.
type VehicleID string

// ParseVehicleID validates and returns a VehicleID.
func ParseVehicleID(s string) (VehicleID, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("vehicle ID cannot be empty")
	}
	return VehicleID(trimmed), nil
}

func (v VehicleID) String() string {
	return string(v)
}

// IsNil reports whether the vehicle ID is empty.
func (v VehicleID) IsNil() bool {
	return v == ""
}
