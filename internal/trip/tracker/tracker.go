// Package tracker turns noisy stop and location hints into monotone route
// progress. It only decides; applying the decision to a trip happens inside
// the lifecycle service under the per-trip lock, keeping a single writer and
// a single termination authority.
package tracker

import (
	"log/slog"
	"time"

	"github.com/sanjeevantech/bustrack/internal/schedule"
	"github.com/sanjeevantech/bustrack/pkg/geo"
)

// Action classifies what the lifecycle service should do with a hint.
type Action string

const (
	// ActionAdvance: record the arrival and move the current stop forward.
	ActionAdvance Action = "advance"
	// ActionDuplicate: hint matches the current stop; nothing to record.
	ActionDuplicate Action = "duplicate"
	// ActionBehind: hint points at an earlier stop; ignored, logged.
	ActionBehind Action = "behind"
	// ActionNoMatch: no stop close enough to the location fix.
	ActionNoMatch Action = "no_match"
)

// Hint is one progress signal from a device: an explicit stop sequence from
// a checkpoint beacon, or a GPS fix to match against the route.
type Hint struct {
	StopSeq  *int
	Location *geo.Point
	At       time.Time
}

// Decision is the tracker's verdict for one hint.
type Decision struct {
	Action Action
	Stop   schedule.Stop
	// MissedGap counts stops skipped since the current index. Skips are
	// accepted and flagged, not rejected: buses legitimately pass silent
	// checkpoints.
	MissedGap int
	// FinalStop is raised when the route's last stop is reached. The
	// lifecycle service marks the trip auto-end eligible; the tracker never
	// ends trips.
	FinalStop bool
}

// Tracker resolves hints against route definitions.
type Tracker struct {
	proximityKm float64
	logger      *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New constructs a Tracker. proximityKm is the radius within which a GPS fix
// counts as being at a stop.
func New(proximityKm float64, opts ...Option) *Tracker {
	t := &Tracker{
		proximityKm: proximityKm,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Evaluate decides how the hint moves progress along the route, given the
// trip's current stop sequence (-1 before the first arrival). Advancement is
// monotone: earlier stops are ignored, equal stops are idempotent.
func (t *Tracker) Evaluate(route *schedule.Route, currentSeq int, hint Hint) Decision {
	stop, ok := t.resolveStop(route, hint)
	if !ok {
		return Decision{Action: ActionNoMatch}
	}

	switch {
	case stop.Sequence < currentSeq:
		t.logger.Info("stop hint behind current progress, ignored",
			"route_id", route.ID,
			"hint_seq", stop.Sequence,
			"current_seq", currentSeq,
		)
		return Decision{Action: ActionBehind, Stop: stop}
	case stop.Sequence == currentSeq:
		return Decision{Action: ActionDuplicate, Stop: stop}
	}

	missed := 0
	if currentSeq >= 0 {
		missed = stop.Sequence - currentSeq - 1
	}
	if missed > 0 {
		t.logger.Warn("possible missed stop",
			"route_id", route.ID,
			"from_seq", currentSeq,
			"to_seq", stop.Sequence,
			"gap", missed,
		)
	}
	return Decision{
		Action:    ActionAdvance,
		Stop:      stop,
		MissedGap: missed,
		FinalStop: stop.Sequence == route.FinalSequence(),
	}
}

// resolveStop maps the hint to a concrete stop. Explicit sequence hints win
// over GPS; GPS fixes match the nearest stop within the proximity radius.
func (t *Tracker) resolveStop(route *schedule.Route, hint Hint) (schedule.Stop, bool) {
	if hint.StopSeq != nil {
		for _, s := range route.Stops {
			if s.Sequence == *hint.StopSeq {
				return s, true
			}
		}
		return schedule.Stop{}, false
	}
	if hint.Location == nil {
		return schedule.Stop{}, false
	}
	stop, dist, ok := route.NearestStop(*hint.Location)
	if !ok || dist > t.proximityKm {
		return schedule.Stop{}, false
	}
	return stop, true
}
