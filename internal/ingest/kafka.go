// Package ingest adapts transport payloads into pipeline events. The Kafka
// handler consumes the raw device topic; onboard firmware publishes there
// and never talks HTTP.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sanjeevantech/bustrack/internal/engine"
	"github.com/sanjeevantech/bustrack/internal/platform/kafka/consumer"
	"github.com/sanjeevantech/bustrack/internal/resolver"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	"github.com/sanjeevantech/bustrack/pkg/geo"
)

// facePayload is the wire format devices publish. Timestamps are unix
// seconds from the board's NTP-synced clock; boards that never got a sync
// report a near-epoch value and the resolver substitutes server time.
type facePayload struct {
	DeviceID     string   `json:"device_id"`
	VehicleID    string   `json:"vehicle_id"`
	Timestamp    int64    `json:"timestamp"`
	Direction    string   `json:"direction"`
	PassengerKey string   `json:"passenger_key,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	StopSeq      *int     `json:"stop_seq,omitempty"`
}

// KafkaHandler turns device topic records into ingest pipeline calls.
type KafkaHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewKafkaHandler constructs a KafkaHandler.
func NewKafkaHandler(eng *engine.Engine, logger *slog.Logger) *KafkaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaHandler{engine: eng, logger: logger}
}

// Handle decodes one record and feeds it to the engine. Malformed payloads
// are logged and dropped without surfacing an error; pipeline errors are
// returned so the consumer logs them with the record's offset.
func (h *KafkaHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var payload facePayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("dropping malformed device event",
			"topic", msg.Topic,
			"error", err,
		)
		return nil
	}

	ev, err := payload.toEvent()
	if err != nil {
		h.logger.Error("dropping invalid device event",
			"topic", msg.Topic,
			"error", err,
		)
		return nil
	}

	result, err := h.engine.Ingest(ctx, ev)
	if err != nil {
		h.logger.Error("ingest failed",
			"vehicle_id", ev.VehicleID,
			"error", err,
		)
		return err
	}

	h.logger.Debug("device event ingested",
		"vehicle_id", ev.VehicleID,
		"direction", ev.Direction,
		"outcome", result.Outcome,
	)
	return nil
}

func (p facePayload) toEvent() (resolver.Event, error) {
	deviceID, err := id.ParseDeviceID(p.DeviceID)
	if err != nil {
		return resolver.Event{}, err
	}
	vehicleID, err := id.ParseVehicleID(p.VehicleID)
	if err != nil {
		return resolver.Event{}, err
	}

	ev := resolver.Event{
		DeviceID:  deviceID,
		VehicleID: vehicleID,
		Timestamp: time.Unix(p.Timestamp, 0).UTC(),
		Direction: resolver.Direction(p.Direction),
		StopHint:  p.StopSeq,
	}
	if p.PassengerKey != "" {
		key, err := id.ParsePassengerKey(p.PassengerKey)
		if err != nil {
			return resolver.Event{}, err
		}
		confidence := 0.0
		if p.Confidence != nil {
			confidence = *p.Confidence
		}
		ev.Match = &resolver.Match{PassengerKey: key, Confidence: confidence}
	}
	if p.Latitude != nil && p.Longitude != nil {
		ev.Location = &geo.Point{Latitude: *p.Latitude, Longitude: *p.Longitude}
	}
	return ev, nil
}
