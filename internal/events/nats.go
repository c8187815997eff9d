// Package events publishes trip lifecycle events over NATS for live
// dashboards. Publishing is fire and forget: a dashboard that misses a
// message catches up from the HTTP API, so no delivery guarantee is needed.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sanjeevantech/bustrack/internal/trip/models"
)

const subjectPrefix = "bustrack.trips"

// Message is the wire envelope for every event.
type Message struct {
	Event        string    `json:"event"`
	TripID       string    `json:"trip_id"`
	RouteID      string    `json:"route_id"`
	VehicleID    string    `json:"vehicle_id"`
	Timestamp    time.Time `json:"timestamp"`
	PassengerKey string    `json:"passenger_key,omitempty"`
	TicketStatus string    `json:"ticket_status,omitempty"`
	StopSeq      *int      `json:"stop_seq,omitempty"`
	StopName     string    `json:"stop_name,omitempty"`
	Fare         *float64  `json:"fare,omitempty"`
	EndReason    string    `json:"end_reason,omitempty"`
	Onboard      int       `json:"onboard,omitempty"`
}

// NATSPublisher emits events on subjects of the form
// bustrack.trips.<route>.<event>.
type NATSPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// Option configures a NATSPublisher.
type Option func(*NATSPublisher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *NATSPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, opts ...Option) (*NATSPublisher, error) {
	p := &NATSPublisher{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	nc, err := nats.Connect(url,
		nats.Name("bustrack-server"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}
	p.nc = nc
	return p, nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
	}
}

func (p *NATSPublisher) TripStarted(ctx context.Context, trip *models.Trip) {
	p.publish("started", baseMessage("trip_started", trip))
}

func (p *NATSPublisher) TripEnded(ctx context.Context, trip *models.Trip) {
	msg := baseMessage("trip_ended", trip)
	msg.EndReason = string(trip.EndReason)
	msg.Onboard = len(trip.Onboard())
	p.publish("ended", msg)
}

func (p *NATSPublisher) PassengerBoarded(ctx context.Context, trip *models.Trip, boarding *models.Boarding) {
	msg := baseMessage("passenger_boarded", trip)
	msg.PassengerKey = boarding.PassengerKey.String()
	msg.TicketStatus = string(boarding.TicketStatus)
	seq := boarding.BoardedSeq
	msg.StopSeq = &seq
	msg.Onboard = len(trip.Onboard())
	p.publish("boarded", msg)
}

func (p *NATSPublisher) PassengerAlighted(ctx context.Context, trip *models.Trip, boarding *models.Boarding) {
	msg := baseMessage("passenger_alighted", trip)
	msg.PassengerKey = boarding.PassengerKey.String()
	msg.TicketStatus = string(boarding.TicketStatus)
	msg.StopSeq = boarding.AlightedSeq
	msg.Fare = boarding.Fare
	msg.Onboard = len(trip.Onboard())
	p.publish("alighted", msg)
}

func (p *NATSPublisher) StopReached(ctx context.Context, trip *models.Trip, arrival models.StopArrival) {
	msg := baseMessage("stop_reached", trip)
	seq := arrival.Sequence
	msg.StopSeq = &seq
	msg.StopName = arrival.StopName
	p.publish("stop", msg)
}

func baseMessage(event string, trip *models.Trip) Message {
	return Message{
		Event:     event,
		TripID:    trip.ID.String(),
		RouteID:   trip.RouteID.String(),
		VehicleID: trip.VehicleID.String(),
		Timestamp: time.Now().UTC(),
	}
}

func (p *NATSPublisher) publish(kind string, msg Message) {
	subject := subjectPrefix + "." + subjectToken(msg.RouteID) + "." + kind
	b, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := p.nc.Publish(subject, b); err != nil {
		p.logger.Error("failed to publish event", "subject", subject, "error", err)
	}
}

// subjectToken sanitizes an ID for use as a NATS subject token.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
