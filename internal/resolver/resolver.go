package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sanjeevantech/bustrack/internal/resolver/dedupe"
	"github.com/sanjeevantech/bustrack/internal/resolver/watermark"
	id "github.com/sanjeevantech/bustrack/pkg/domain"
	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
)

// Resolver maps face-detection events to passenger identities, enforcing the
// confidence floor, the per-device staleness watermark, and the boarding
// cooldown window.
type Resolver struct {
	watermarks watermark.Store
	dedupe     dedupe.Cache

	confidenceThreshold float64
	skewTolerance       time.Duration
	dedupWindow         time.Duration

	logger *slog.Logger
	clock  func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// Config carries the resolver thresholds.
type Config struct {
	ConfidenceThreshold float64
	SkewTolerance       time.Duration
	DedupWindow         time.Duration
}

// New constructs a Resolver.
func New(cfg Config, watermarks watermark.Store, cache dedupe.Cache, opts ...Option) (*Resolver, error) {
	if watermarks == nil {
		return nil, errors.New("watermark store is required")
	}
	if cache == nil {
		return nil, errors.New("dedupe cache is required")
	}
	if cfg.ConfidenceThreshold <= 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("confidence threshold must be in (0, 1], got %v", cfg.ConfidenceThreshold)
	}
	if cfg.SkewTolerance <= 0 || cfg.DedupWindow <= 0 {
		return nil, errors.New("skew tolerance and dedup window must be positive")
	}

	r := &Resolver{
		watermarks:          watermarks,
		dedupe:              cache,
		confidenceThreshold: cfg.ConfidenceThreshold,
		skewTolerance:       cfg.SkewTolerance,
		dedupWindow:         cfg.DedupWindow,
		logger:              slog.Default(),
		clock:               time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve classifies one event. Side effect: the device watermark advances
// for every admitted event, including unknown faces, so a replayed batch is
// caught regardless of who was in the frame.
func (r *Resolver) Resolve(ctx context.Context, ev Event) (Outcome, error) {
	if ev.DeviceID.IsNil() {
		return Outcome{Kind: KindRejected, Reason: "missing device ID", Code: dErrors.CodeInvalidInput}, nil
	}
	if !ev.Direction.IsValid() {
		return Outcome{Kind: KindRejected, Reason: fmt.Sprintf("unknown direction %q", ev.Direction), Code: dErrors.CodeInvalidInput}, nil
	}

	ts := ev.Timestamp
	if ts.IsZero() || ts.Year() < 2020 {
		// ESP32 boards report epoch-ish timestamps before NTP sync; trust
		// the server clock instead of rejecting the whole report.
		ts = r.clock()
	}

	admitted, err := r.watermarks.Admit(ctx, ev.DeviceID, ts, r.skewTolerance)
	if err != nil {
		return Outcome{}, fmt.Errorf("watermark check: %w", err)
	}
	if !admitted {
		r.logger.InfoContext(ctx, "stale event rejected",
			"device_id", ev.DeviceID,
			"timestamp", ts,
		)
		return Outcome{Kind: KindRejected, Reason: "stale", Code: dErrors.CodeStaleEvent}, nil
	}

	if ev.Match == nil || ev.Match.PassengerKey.IsNil() {
		return Outcome{Kind: KindUnknown}, nil
	}
	if ev.Match.Confidence < r.confidenceThreshold {
		// Never silently promote low-confidence matches.
		r.logger.InfoContext(ctx, "match below confidence threshold",
			"device_id", ev.DeviceID,
			"passenger_key", ev.Match.PassengerKey,
			"confidence", ev.Match.Confidence,
			"threshold", r.confidenceThreshold,
		)
		return Outcome{Kind: KindUnknown, Confidence: ev.Match.Confidence, Code: dErrors.CodeLowConfidence}, nil
	}

	seen, err := r.dedupe.SeenAndRecord(ctx, dedupeKey(ev.VehicleID, ev.Match.PassengerKey, ev.Direction), r.dedupWindow)
	if err != nil {
		return Outcome{}, fmt.Errorf("dedupe check: %w", err)
	}
	if seen {
		return Outcome{
			Kind:         KindDuplicate,
			PassengerKey: ev.Match.PassengerKey,
			Confidence:   ev.Match.Confidence,
		}, nil
	}

	return Outcome{
		Kind:         KindResolved,
		PassengerKey: ev.Match.PassengerKey,
		Confidence:   ev.Match.Confidence,
	}, nil
}

// Unrecord releases the dedup slot for a passenger whose resolved event
// could not be applied, so the next detection is not swallowed as a
// duplicate of a boarding that never happened.
func (r *Resolver) Unrecord(ctx context.Context, vehicleID id.VehicleID, key id.PassengerKey, dir Direction) {
	if err := r.dedupe.Forget(ctx, dedupeKey(vehicleID, key, dir)); err != nil {
		r.logger.WarnContext(ctx, "dedupe forget failed",
			"passenger_key", key,
			"error", err,
		)
	}
}

// dedupeKey scopes the cooldown per vehicle, passenger, and door direction;
// the same rider boarding a different bus inside the window is a real event.
func dedupeKey(vehicleID id.VehicleID, key id.PassengerKey, dir Direction) string {
	return vehicleID.String() + ":" + key.String() + ":" + string(dir)
}
