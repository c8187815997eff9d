package handler

import (
	"sort"
	"time"

	"github.com/sanjeevantech/bustrack/internal/trip/models"
)

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	TripID          string             `json:"trip_id"`
	RouteID         string             `json:"route_id"`
	VehicleID       string             `json:"vehicle_id"`
	State           string             `json:"state"`
	StartedAt       time.Time          `json:"started_at"`
	EndedAt         *time.Time         `json:"ended_at,omitempty"`
	EndReason       string             `json:"end_reason,omitempty"`
	CurrentStopSeq  int                `json:"current_stop_seq"`
	AutoEndEligible bool               `json:"auto_end_eligible"`
	BoardingCount   int                `json:"boarding_count"`
	UnknownCount    int                `json:"unknown_count"`
	Onboard         int                `json:"onboard"`
	Boardings       []BoardingResponse `json:"boardings,omitempty"`
	Arrivals        []ArrivalResponse  `json:"arrivals,omitempty"`
}

// BoardingResponse is one passenger record on the manifest.
type BoardingResponse struct {
	PassengerKey string     `json:"passenger_key"`
	TicketStatus string     `json:"ticket_status"`
	Confidence   float64    `json:"confidence"`
	BoardedAt    time.Time  `json:"boarded_at"`
	BoardedSeq   int        `json:"boarded_seq"`
	AlightedAt   *time.Time `json:"alighted_at,omitempty"`
	AlightedSeq  *int       `json:"alighted_seq,omitempty"`
	Fare         *float64   `json:"fare,omitempty"`
}

// ArrivalResponse is one recorded stop arrival.
type ArrivalResponse struct {
	Sequence  int       `json:"sequence"`
	StopName  string    `json:"stop_name"`
	At        time.Time `json:"at"`
	MissedGap int       `json:"missed_gap,omitempty"`
}

// FromTrip converts a trip aggregate to its HTTP form. Boardings come out
// ordered by boarding time so the manifest reads chronologically.
func FromTrip(trip *models.Trip, includeManifest bool) *TripResponse {
	resp := &TripResponse{
		TripID:          trip.ID.String(),
		RouteID:         trip.RouteID.String(),
		VehicleID:       trip.VehicleID.String(),
		State:           string(trip.State),
		StartedAt:       trip.StartedAt,
		EndedAt:         trip.EndedAt,
		EndReason:       string(trip.EndReason),
		CurrentStopSeq:  trip.CurrentStopSeq,
		AutoEndEligible: trip.AutoEndEligible,
		BoardingCount:   trip.BoardingCount,
		UnknownCount:    trip.UnknownCount,
		Onboard:         len(trip.Onboard()),
	}
	if !includeManifest {
		return resp
	}

	for _, b := range trip.Boardings {
		resp.Boardings = append(resp.Boardings, BoardingResponse{
			PassengerKey: b.PassengerKey.String(),
			TicketStatus: string(b.TicketStatus),
			Confidence:   b.Confidence,
			BoardedAt:    b.BoardedAt,
			BoardedSeq:   b.BoardedSeq,
			AlightedAt:   b.AlightedAt,
			AlightedSeq:  b.AlightedSeq,
			Fare:         b.Fare,
		})
	}
	sort.Slice(resp.Boardings, func(i, j int) bool {
		return resp.Boardings[i].BoardedAt.Before(resp.Boardings[j].BoardedAt)
	})

	for _, a := range trip.StopArrivals {
		resp.Arrivals = append(resp.Arrivals, ArrivalResponse{
			Sequence:  a.Sequence,
			StopName:  a.StopName,
			At:        a.At,
			MissedGap: a.MissedGap,
		})
	}
	return resp
}

// FromTrips converts a trip list to summary responses without manifests.
func FromTrips(trips []*models.Trip) []*TripResponse {
	out := make([]*TripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, FromTrip(t, false))
	}
	return out
}
